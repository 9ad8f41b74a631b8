package entity

import (
	"fmt"
	"strings"
)

// MessageEvent is the normalized form of a single event from the Slack
// Events API envelope. It carries only the fields the response pipeline
// cares about.
type MessageEvent struct {
	// Event type (e.g., "app_mention", "message")
	Type    string
	SubType string

	// Context
	TeamID    string
	UserID    string
	ChannelID string

	// BotID is set when the message was authored by a bot integration.
	BotID string

	// Message content
	Text      string
	Timestamp string // Message timestamp for threading

	// Thread context
	ThreadTS string // Thread timestamp (if in thread)

	// Metadata
	EventID   string // Vendor-assigned event identifier (for deduplication)
	EventTime int64  // Unix timestamp of when the event occurred
}

// IsAppMention returns true if this is an app_mention event.
func (e *MessageEvent) IsAppMention() bool {
	return e.Type == "app_mention"
}

// IsInThread returns true if the event is part of a thread.
func (e *MessageEvent) IsInThread() bool {
	return e.ThreadTS != ""
}

// IsBotAuthored returns true if the message was produced by a bot
// account. Responding to these would let the bot answer its own replies.
func (e *MessageEvent) IsBotAuthored() bool {
	return e.BotID != "" || e.SubType == "bot_message"
}

// IsEdit returns true for edited-message subtypes, which have already
// been answered in their original form.
func (e *MessageEvent) IsEdit() bool {
	return e.SubType == "message_changed" || e.SubType == "message_deleted"
}

// IsDirectMessage returns true if the event originated in a DM channel.
// Slack DM channel IDs start with "D".
func (e *MessageEvent) IsDirectMessage() bool {
	return strings.HasPrefix(e.ChannelID, "D")
}

// DedupKey returns the identity used for duplicate suppression.
// (event_id, team_id) when the platform assigned an event ID; otherwise
// a synthetic identity derived from (channel, user, timestamp) so that
// payloads without a vendor ID are still deduplicated safely.
func (e *MessageEvent) DedupKey() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s:%s", e.TeamID, e.EventID)
	}
	return fmt.Sprintf("%s:%s:%s", e.ChannelID, e.UserID, e.Timestamp)
}

// ResponseContext is the normalized per-event context the poster needs
// to deliver a reply. Derived once per accepted event and never shared
// across events.
type ResponseContext struct {
	ChannelID       string
	ThreadTS        string // Empty when the reply should not be threaded
	UserID          string
	MessageTS       string
	Query           string // Mention text with the bot token stripped
	IsDirectMessage bool
}

// FormattedReply is a reply body ready for delivery: converted to Slack
// mrkdwn, truncated to the configured limit and mention-prefixed.
type FormattedReply struct {
	ChannelID string
	Text      string
	ThreadTS  string
}

// PostResult reports the outcome of one delivery attempt chain.
// Used only for logging and metrics.
type PostResult struct {
	Success   bool
	MessageTS string
	ChannelID string
	ThreadTS  string
	Err       error
}
