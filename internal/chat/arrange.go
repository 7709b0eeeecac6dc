package chat

// Rearranged moves the last n messages matching pred to the end of the
// returned slice so they sit in the model's immediate context. Relative
// order within both groups is preserved and the input is left untouched.
func Rearranged(messages []Message, pred func(*Message) bool, n int) []Message {
	if n <= 0 || pred == nil || len(messages) == 0 {
		out := make([]Message, len(messages))
		copy(out, messages)
		return out
	}

	var selected, rest []Message
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if len(selected) < n && pred(&m) {
			selected = append(selected, m)
		} else {
			rest = append(rest, m)
		}
	}

	out := make([]Message, 0, len(messages))
	for i := len(rest) - 1; i >= 0; i-- {
		out = append(out, rest[i])
	}
	for i := len(selected) - 1; i >= 0; i-- {
		out = append(out, selected[i])
	}
	return out
}
