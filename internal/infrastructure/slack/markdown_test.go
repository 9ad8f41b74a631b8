package slack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToMrkdwn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bold",
			in:   "this is **important** stuff",
			want: "this is *important* stuff",
		},
		{
			name: "underscore bold",
			in:   "also __important__",
			want: "also *important*",
		},
		{
			name: "link",
			in:   "see [the docs](https://example.com/docs) for details",
			want: "see <https://example.com/docs|the docs> for details",
		},
		{
			name: "heading",
			in:   "# Summary\nbody text",
			want: "*Summary*\nbody text",
		},
		{
			name: "multiple constructs",
			in:   "**Note**: read [this](https://example.com) first",
			want: "*Note*: read <https://example.com|this> first",
		},
		{
			name: "plain text untouched",
			in:   "nothing special here",
			want: "nothing special here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMrkdwn(tt.in))
		})
	}
}

func TestStripMention(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading mention", "<@U0BOT> what is the deploy process?", "what is the deploy process?"},
		{"mid-text mention", "hey <@U0BOT> can you help", "hey  can you help"},
		{"no mention", "what is the deploy process?", "what is the deploy process?"},
		{"other user kept", "<@U0BOT> ask <@U0HUMAN> about it", "ask <@U0HUMAN> about it"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMention(tt.in, "U0BOT"))
		})
	}
}

func TestContainsMention(t *testing.T) {
	assert.True(t, ContainsMention("<@U0BOT> hello", "U0BOT"))
	assert.False(t, ContainsMention("<@U0HUMAN> hello", "U0BOT"))
	assert.False(t, ContainsMention("no mention at all", "U0BOT"))
}
