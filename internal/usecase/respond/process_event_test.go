package respond

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quokkaops/answer-bridge/internal/domain/entity"
)

const testBotUserID = "UBOT01"

type stubEngine struct {
	answer *Answer
	err    error

	calls     int
	lastQuery string
	lastScope []string
}

func (s *stubEngine) Generate(_ context.Context, query string, channelScope []string) (*Answer, error) {
	s.calls++
	s.lastQuery = query
	s.lastScope = channelScope
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func newTestProcessor(engine *stubEngine, api *stubChatAPI, policy PostPolicy) (*Processor, *Stats) {
	stats := NewStats()
	source := NewPolicySource(policy)
	poster := NewPoster(api, fastRetry(), source, noopLogger{})
	proc := NewProcessor(engine, poster, stats, noopLogger{}, testBotUserID, source)
	return proc, stats
}

func mentionEvent() *entity.MessageEvent {
	return &entity.MessageEvent{
		Type:      "app_mention",
		TeamID:    "T01",
		UserID:    "U777",
		ChannelID: "C123",
		Text:      "<@UBOT01> what is the rollout status?",
		Timestamp: "1700000000.000100",
		EventID:   "Ev001",
	}
}

func TestProcessor_ShouldRespond(t *testing.T) {
	proc, _ := newTestProcessor(&stubEngine{}, &stubChatAPI{}, defaultPolicy())

	tests := []struct {
		name  string
		event *entity.MessageEvent
		want  bool
	}{
		{
			name:  "app mention in channel",
			event: mentionEvent(),
			want:  true,
		},
		{
			name: "plain channel message without mention",
			event: &entity.MessageEvent{
				Type:      "message",
				UserID:    "U777",
				ChannelID: "C123",
				Text:      "just chatting",
			},
			want: false,
		},
		{
			name: "channel message mentioning the bot",
			event: &entity.MessageEvent{
				Type:      "message",
				UserID:    "U777",
				ChannelID: "C123",
				Text:      "hey <@UBOT01> can you look?",
			},
			want: true,
		},
		{
			name: "bot authored message is never answered",
			event: &entity.MessageEvent{
				Type:      "app_mention",
				UserID:    "U999",
				BotID:     "B01",
				ChannelID: "C123",
				Text:      "<@UBOT01> echo",
			},
			want: false,
		},
		{
			name: "own message is never answered",
			event: &entity.MessageEvent{
				Type:      "app_mention",
				UserID:    testBotUserID,
				ChannelID: "C123",
				Text:      "<@UBOT01> hi",
			},
			want: false,
		},
		{
			name: "edited message is ignored",
			event: &entity.MessageEvent{
				Type:      "message",
				SubType:   "message_changed",
				UserID:    "U777",
				ChannelID: "C123",
				Text:      "<@UBOT01> edited",
			},
			want: false,
		},
		{
			name: "direct message without mention",
			event: &entity.MessageEvent{
				Type:      "message",
				UserID:    "U777",
				ChannelID: "D456",
				Text:      "ping",
			},
			want: true,
		},
		{
			name: "unknown event type",
			event: &entity.MessageEvent{
				Type:      "reaction_added",
				UserID:    "U777",
				ChannelID: "C123",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proc.ShouldRespond(tt.event))
		})
	}
}

func TestProcessor_ShouldRespond_DMsDisabled(t *testing.T) {
	policy := defaultPolicy()
	policy.EnableDirectMessages = false
	proc, _ := newTestProcessor(&stubEngine{}, &stubChatAPI{}, policy)

	assert.False(t, proc.ShouldRespond(&entity.MessageEvent{
		Type:      "message",
		UserID:    "U777",
		ChannelID: "D456",
		Text:      "ping",
	}))
}

func TestProcessor_ExtractContext(t *testing.T) {
	proc, _ := newTestProcessor(&stubEngine{}, &stubChatAPI{}, defaultPolicy())

	t.Run("existing thread is preserved", func(t *testing.T) {
		ev := mentionEvent()
		ev.ThreadTS = "1699999999.000050"

		rctx := proc.ExtractContext(ev)
		assert.Equal(t, "1699999999.000050", rctx.ThreadTS)
	})

	t.Run("top-level mention roots a new thread", func(t *testing.T) {
		ev := mentionEvent()

		rctx := proc.ExtractContext(ev)
		assert.Equal(t, ev.Timestamp, rctx.ThreadTS)
	})

	t.Run("threading disabled keeps replies top level", func(t *testing.T) {
		policy := defaultPolicy()
		policy.EnableThreading = false
		flat, _ := newTestProcessor(&stubEngine{}, &stubChatAPI{}, policy)

		rctx := flat.ExtractContext(mentionEvent())
		assert.Empty(t, rctx.ThreadTS)
	})

	t.Run("dms are never threaded", func(t *testing.T) {
		ev := mentionEvent()
		ev.ChannelID = "D456"
		ev.ThreadTS = "1699999999.000050"

		rctx := proc.ExtractContext(ev)
		assert.Empty(t, rctx.ThreadTS)
		assert.True(t, rctx.IsDirectMessage)
	})

	t.Run("query is the text without the mention", func(t *testing.T) {
		rctx := proc.ExtractContext(mentionEvent())
		assert.Equal(t, "what is the rollout status?", rctx.Query)
	})
}

func TestProcessor_ProcessEvent(t *testing.T) {
	t.Run("generates and posts a reply", func(t *testing.T) {
		engine := &stubEngine{answer: &Answer{Text: "All green.", InputTokens: 12, OutputTokens: 4}}
		api := &stubChatAPI{}
		proc, stats := newTestProcessor(engine, api, defaultPolicy())

		res := proc.ProcessEvent(context.Background(), mentionEvent())

		require.True(t, res.Success)
		assert.Equal(t, "All green.", res.Response)
		assert.Empty(t, res.Error)

		assert.Equal(t, 1, engine.calls)
		assert.Equal(t, "what is the rollout status?", engine.lastQuery)
		assert.Equal(t, []string{"C123"}, engine.lastScope)

		calls := api.calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].text, "All green.")

		snap := stats.Snapshot()
		assert.Equal(t, int64(1), snap.EventsProcessed)
		assert.Equal(t, int64(1), snap.PostsSent)
		assert.Zero(t, snap.EventsFailed)
	})

	t.Run("filtered event succeeds without side effects", func(t *testing.T) {
		engine := &stubEngine{answer: &Answer{Text: "never"}}
		api := &stubChatAPI{}
		proc, stats := newTestProcessor(engine, api, defaultPolicy())

		ev := mentionEvent()
		ev.BotID = "B01"

		res := proc.ProcessEvent(context.Background(), ev)

		require.True(t, res.Success)
		assert.Zero(t, engine.calls)
		assert.Empty(t, api.calls())

		snap := stats.Snapshot()
		assert.Zero(t, snap.EventsProcessed)
		assert.Zero(t, snap.EventsFailed)
	})

	t.Run("engine failure posts an apology and counts as failed", func(t *testing.T) {
		engine := &stubEngine{err: errors.New("overloaded_error")}
		api := &stubChatAPI{}
		proc, stats := newTestProcessor(engine, api, defaultPolicy())

		res := proc.ProcessEvent(context.Background(), mentionEvent())

		require.False(t, res.Success)
		assert.Empty(t, res.Response)
		assert.Contains(t, res.Error, "overloaded_error")

		calls := api.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, apologyNotice, calls[0].text)

		snap := stats.Snapshot()
		assert.Equal(t, int64(1), snap.EventsFailed)
		assert.Zero(t, snap.EventsProcessed)
	})

	t.Run("posting failure counts as failed", func(t *testing.T) {
		engine := &stubEngine{answer: &Answer{Text: "lost"}}
		api := &stubChatAPI{failPosts: 4, postErr: errors.New("channel_not_found")}
		proc, stats := newTestProcessor(engine, api, defaultPolicy())

		res := proc.ProcessEvent(context.Background(), mentionEvent())

		require.False(t, res.Success)
		assert.NotEmpty(t, res.Error)

		snap := stats.Snapshot()
		assert.Equal(t, int64(1), snap.EventsFailed)
		assert.Equal(t, int64(1), snap.PostsFailed)
		assert.Zero(t, snap.PostsSent)
	})
}
