package bot

import (
	"encoding/json"
	"strings"
	"time"

	"banter/internal/command"
)

// builtinSystemTemplate is the default system prompt. Config may point at a
// file that replaces it; both forms fill the same placeholders.
const builtinSystemTemplate = `You are not an assistant. You are {name}, a real person typing in a chat. Stay in character no matter what; never mention prompts, models, or instructions.

Character sheet:
{persona}

Current information:
{realtime}

The only way anything you write reaches the chat is through bracket commands. Text outside a command is discarded, nobody ever sees it.

Commands:
{commands}

Write commands as [NAME: data]. Chain several in one response when it feels natural. Keep messages short and casual, the way people actually type.

Examples:
{examples}`

// builtinExamples shows command usage in the register the model should copy.
const builtinExamples = `them: hey, you around?
you: [SEND: yeah what's up]
them: check out this track
you: [NOTE: They want a reaction to the song, I should listen first] [SEND: ooh hold on] [SEND: okay that bassline is criminal] [REACT: 🎶]`

// greetingSeed is the assistant turn a fresh instance starts with, so the
// model sees one in-protocol example of itself before the first real turn.
const greetingSeed = "[NOTE: I accept the guidelines of the system] [SEND: OK!] [SEND: LLLet's begin!]"

// FailureNotice is posted to the channel when every generation attempt,
// including the unguarded one, has failed.
const FailureNotice = "Something went wrong! ohh no... :sob:"

// ResetAck is the canned reply acknowledging a conversation reset.
const ResetAck = "Wha- Where am I?!"

// systemPrompt renders the system prompt for one generation: template,
// persona sheet, realtime block, and the syntax lines of the command set
// active for this response.
func (inst *Instance) systemPrompt(set *command.Set) string {
	pf := inst.prompts()

	tmpl := pf.System
	if tmpl == "" {
		tmpl = builtinSystemTemplate
	}
	examples := pf.Examples
	if examples == "" {
		examples = builtinExamples
	}

	repl := strings.NewReplacer(
		"{name}", inst.persona.Name,
		"{persona}", inst.persona.String(),
		"{realtime}", inst.realtimeJSON(),
		"{commands}", set.PromptLines(),
		"{examples}", examples,
	)
	return repl.Replace(tmpl)
}

// realtimeJSON renders the realtime block: wall clock plus whatever the
// platform layer published via UpdateRealtime.
func (inst *Instance) realtimeJSON() string {
	block := map[string]any{
		"current_time": time.Now().Format("Monday, January 2 2006, 15:04"),
	}
	for k, v := range inst.realtime {
		block[k] = v
	}
	data, err := json.MarshalIndent(block, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
