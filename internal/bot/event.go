package bot

import (
	"context"
	"strings"
	"time"

	"banter/internal/chat"
	"banter/internal/logging"
	"banter/internal/platform"
)

// replyExcerptLen caps quoted reply content when the transcript already
// carries the full text.
const replyExcerptLen = 64

// BuildEventMessage converts an inbound platform event into the user
// message appended to the transcript: sender metadata, reply context with
// deduplication, and attachments resolved through the media cache.
// Attachment failures degrade to a text-only message.
func (inst *Instance) BuildEventMessage(ctx context.Context, adapter platform.Adapter, ev *platform.Event) (chat.Message, error) {
	name := ev.Sender.Name
	if name == "" {
		name = ev.Sender.Handle
	}
	meta := map[string]any{
		"from_user": map[string]any{
			"id":   ev.Sender.ID,
			"name": name,
		},
	}

	if ev.IsReply {
		ri, err := adapter.ReplyContext(ctx, ev)
		if err != nil {
			logging.Bot("instance %s: reply context failed: %v", inst.identity, err)
		} else if ri != nil {
			inst.mu.Lock()
			last := inst.lastAssistantContent()
			inst.mu.Unlock()
			if rep := replyMetadata(ri, last); rep != nil {
				meta["in_reply_to"] = rep
			}
		}
	}

	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}
	msg := chat.Message{
		Role:     chat.RoleUser,
		Content:  ev.Text,
		Metadata: meta,
		Time:     when,
	}

	if ev.HasImages || ev.HasAudio {
		inst.attachMedia(ctx, adapter, ev, &msg)
	}

	if err := msg.Validate(); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// attachMedia pulls the event's attachments into the media cache. Each
// failure is logged and skipped; a broken image never blocks the text.
func (inst *Instance) attachMedia(ctx context.Context, adapter platform.Adapter, ev *platform.Event, msg *chat.Message) {
	if inst.cache == nil {
		return
	}
	images, audio, err := adapter.FetchAttachments(ctx, ev)
	if err != nil {
		logging.Bot("instance %s: attachment fetch failed: %v", inst.identity, err)
		return
	}
	for _, data := range images {
		img, err := inst.cache.PutImage(data)
		if err != nil {
			logging.Bot("instance %s: dropping image: %v", inst.identity, err)
			continue
		}
		msg.Images = append(msg.Images, img)
	}
	for _, data := range audio {
		au, err := inst.cache.PutAudio(ctx, data)
		if err != nil {
			logging.Bot("instance %s: dropping audio: %v", inst.identity, err)
			continue
		}
		msg.Audio = append(msg.Audio, au)
	}
}

// replyMetadata builds the in_reply_to block. Quoting the bot's own last
// message back at it wastes context, so self-replies deduplicate against
// the transcript: an exact repeat is omitted entirely, text the transcript
// contains shrinks to an excerpt, anything else passes through whole.
func replyMetadata(ri *platform.ReplyInfo, lastSelf string) map[string]any {
	from := ri.Author.Name
	if from == "" {
		from = ri.Author.Handle
	}
	content := ri.Content

	if ri.FromSelf {
		from = "[YOU]"
		if lastSelf != "" {
			if content == lastSelf {
				return nil
			}
			if strings.Contains(lastSelf, content) {
				content = excerpt(content, replyExcerptLen)
			}
		}
	}

	return map[string]any{
		"from":    from,
		"content": content,
	}
}

func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
