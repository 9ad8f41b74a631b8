package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageEvent_Predicates(t *testing.T) {
	t.Run("bot authored", func(t *testing.T) {
		assert.True(t, (&MessageEvent{BotID: "B01"}).IsBotAuthored())
		assert.True(t, (&MessageEvent{SubType: "bot_message"}).IsBotAuthored())
		assert.False(t, (&MessageEvent{UserID: "U777"}).IsBotAuthored())
	})

	t.Run("edits", func(t *testing.T) {
		assert.True(t, (&MessageEvent{SubType: "message_changed"}).IsEdit())
		assert.True(t, (&MessageEvent{SubType: "message_deleted"}).IsEdit())
		assert.False(t, (&MessageEvent{SubType: "thread_broadcast"}).IsEdit())
	})

	t.Run("direct message channels", func(t *testing.T) {
		assert.True(t, (&MessageEvent{ChannelID: "D123ABC"}).IsDirectMessage())
		assert.False(t, (&MessageEvent{ChannelID: "C123ABC"}).IsDirectMessage())
		assert.False(t, (&MessageEvent{ChannelID: "G123ABC"}).IsDirectMessage())
	})

	t.Run("thread membership", func(t *testing.T) {
		assert.True(t, (&MessageEvent{ThreadTS: "1700.1"}).IsInThread())
		assert.False(t, (&MessageEvent{}).IsInThread())
	})
}

func TestMessageEvent_DedupKey(t *testing.T) {
	t.Run("vendor event ID scoped by team", func(t *testing.T) {
		ev := &MessageEvent{TeamID: "T01", EventID: "Ev123"}
		assert.Equal(t, "T01:Ev123", ev.DedupKey())
	})

	t.Run("synthetic identity without event ID", func(t *testing.T) {
		ev := &MessageEvent{
			ChannelID: "C123",
			UserID:    "U777",
			Timestamp: "1700000000.000100",
		}
		assert.Equal(t, "C123:U777:1700000000.000100", ev.DedupKey())
	})

	t.Run("same event ID across teams stays distinct", func(t *testing.T) {
		a := &MessageEvent{TeamID: "T01", EventID: "Ev123"}
		b := &MessageEvent{TeamID: "T02", EventID: "Ev123"}
		assert.NotEqual(t, a.DedupKey(), b.DedupKey())
	})
}
