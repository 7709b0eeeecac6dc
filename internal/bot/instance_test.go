package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter/internal/chat"
	"banter/internal/platform"
)

func TestRespond_StreamedCommands(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[NOTE: sounds friendly] [SEND: hey!!] [SEND: what's up?]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)
	before := inst.Len()

	ev := rec.event("hello there")
	responded, err := inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)
	assert.True(t, responded)

	assert.Equal(t, []string{"hey!!", "what's up?"}, rec.Sends())

	// user message + raw assistant output
	msgs := inst.Messages()
	require.Equal(t, before+2, len(msgs))
	assert.Equal(t, chat.RoleUser, msgs[len(msgs)-2].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[len(msgs)-1].Role)
	assert.Contains(t, msgs[len(msgs)-1].Content, "[SEND: hey!!]")
}

func TestRespond_SystemPromptListsCommands(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, cfg := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[SEND: ok]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ev := rec.event("hi")
	_, err = inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)

	sys := fm.lastSystem()
	assert.Contains(t, sys, cfg.Persona.Name)
	assert.Contains(t, sys, "[SEND:<message>]")
	assert.Contains(t, sys, "[NOTE:<thoughts>]")
	assert.Contains(t, sys, "[REACT:<emoji>]")
	assert.Contains(t, sys, "current_time")
}

func TestRespond_UnknownCommandRollsBack(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[SELFDESTRUCT: now]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)
	before := inst.Len()

	ev := rec.event("hi")
	responded, err := inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.Error(t, err)
	assert.False(t, responded)

	// protocol breach: nothing delivered, transcript back at the checkpoint
	assert.Empty(t, rec.Sends())
	assert.Equal(t, before, inst.Len())
}

func TestRespond_LeftoverTextDelivered(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("sure, sounds good to me")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ev := rec.event("you in?")
	responded, err := inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)
	assert.True(t, responded)
	assert.Equal(t, []string{"sure, sounds good to me"}, rec.Sends())
}

func TestRespond_NoteAndReactOnlyIsNoResponse(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[NOTE: better not to answer that] [REACT: 👀]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)
	before := inst.Len()

	ev := rec.event("so?")
	responded, err := inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)
	assert.False(t, responded)

	assert.Empty(t, rec.Sends())
	assert.Equal(t, []string{"👀"}, rec.reacts)
	assert.Equal(t, before, inst.Len(), "silent attempts roll back")
}

func TestRespond_FirstSendThreadsInChannels(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[SEND: one] [SEND: two]")

	inst, err := reg.GetOrCreate("channel#chan-1")
	require.NoError(t, err)

	ev := rec.channelEvent("hey bot")
	_, err = inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)

	assert.Equal(t, 1, rec.replies, "only the first message threads under the trigger")
}

func TestRespondWithRetry_UnguardedFallback(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	// three guarded attempts break protocol, the unguarded one delivers raw
	fm.reply("[BOGUS: a]")
	fm.reply("[BOGUS: b]")
	fm.reply("[BOGUS: c]")
	fm.reply("fine, plain words then")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ev := rec.event("hello?")
	err = inst.RespondWithRetry(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)
	assert.Equal(t, []string{"fine, plain words then"}, rec.Sends())
}

func TestRespondWithRetry_FailureNotice(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	for i := 0; i < 4; i++ {
		fm.fail(500)
	}

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)
	before := inst.Len()

	ev := rec.event("hi")
	err = inst.RespondWithRetry(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.Error(t, err)

	sends := rec.Sends()
	require.Len(t, sends, 1)
	assert.Equal(t, FailureNotice, sends[0])
	assert.Equal(t, before, inst.Len())
}

func TestRespondWithRetry_CancellationDoesNotRetry(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	hold := fm.replyHeld("[SEND: never arrives]")
	defer close(hold)

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ev := rec.event("hi")
	msg := userMessage(t, inst, rec, ev)

	done := make(chan error, 1)
	go func() { done <- inst.RespondWithRetry(ctx, rec, ev, msg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("RespondWithRetry did not return after cancellation")
	}
	assert.Empty(t, rec.Sends())
}

func TestRespond_SendFailureRollsBack(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, cfg := testRegistry(t, client)
	cfg.Bot.SendRetries = 1
	rec := &recorder{sendErr: errors.New("boom")}

	fm.reply("[SEND: hi]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)
	before := inst.Len()

	ev := rec.event("hi")
	// send retries are exhausted against the persistent failure
	responded, err := inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.Error(t, err)
	assert.False(t, responded)
	assert.Equal(t, before, inst.Len())
}

func TestInstance_ResetReseedsGreeting(t *testing.T) {
	fm, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	fm.reply("[SEND: hi]")

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ev := rec.event("hello")
	_, err = inst.Respond(context.Background(), rec, ev, userMessage(t, inst, rec, ev))
	require.NoError(t, err)
	require.Greater(t, inst.Len(), 1)

	require.NoError(t, inst.Reset())
	msgs := inst.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleAssistant, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "[SEND: OK!]")
}

func TestTypingDelay(t *testing.T) {
	// long generation already covered the pause
	assert.Equal(t, time.Duration(0), typingDelay(40, 30*time.Second))

	// short text, instant generation: a visible but bounded pause
	d := typingDelay(12, 0)
	assert.Greater(t, d, 100*time.Millisecond)
	assert.Less(t, d, 5*time.Second)

	// longer text types longer
	assert.Greater(t, typingDelay(400, 0), typingDelay(12, 0))
}

func TestBuildEventMessage_Metadata(t *testing.T) {
	_, client := newFakeModel(t)
	reg, _ := testRegistry(t, client)
	rec := &recorder{}

	inst, err := reg.GetOrCreate("user#u-1")
	require.NoError(t, err)

	ev := rec.event("hello")
	msg := userMessage(t, inst, rec, ev)

	from, ok := msg.Metadata["from_user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-1", from["id"])
	assert.Equal(t, "Sam", from["name"])
	_, hasReply := msg.Metadata["in_reply_to"]
	assert.False(t, hasReply)
}

func TestBuildEventMessage_ReplyDedup(t *testing.T) {
	long := strings.Repeat("a very long sentence. ", 20)

	cases := []struct {
		name     string
		reply    *platform.ReplyInfo
		lastSelf string
		want     func(t *testing.T, meta map[string]any)
	}{
		{
			name:     "exact self repeat omitted",
			reply:    &platform.ReplyInfo{Content: "hey!!", FromSelf: true},
			lastSelf: "hey!!",
			want: func(t *testing.T, meta map[string]any) {
				assert.Nil(t, meta)
			},
		},
		{
			name:     "contained self text shrinks to excerpt",
			reply:    &platform.ReplyInfo{Content: long, FromSelf: true},
			lastSelf: "[SEND: " + long + "]",
			want: func(t *testing.T, meta map[string]any) {
				require.NotNil(t, meta)
				content := meta["content"].(string)
				assert.True(t, strings.HasSuffix(content, "..."))
				assert.Less(t, len(content), len(long))
				assert.Equal(t, "[YOU]", meta["from"])
			},
		},
		{
			name:     "unrelated self text passes whole",
			reply:    &platform.ReplyInfo{Content: "something older", FromSelf: true},
			lastSelf: "hey!!",
			want: func(t *testing.T, meta map[string]any) {
				require.NotNil(t, meta)
				assert.Equal(t, "something older", meta["content"])
			},
		},
		{
			name:  "other people quoted verbatim",
			reply: &platform.ReplyInfo{Author: platform.UserInfo{Name: "Riley"}, Content: "my take", FromSelf: false},
			want: func(t *testing.T, meta map[string]any) {
				require.NotNil(t, meta)
				assert.Equal(t, "Riley", meta["from"])
				assert.Equal(t, "my take", meta["content"])
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.want(t, replyMetadata(tc.reply, tc.lastSelf))
		})
	}
}
