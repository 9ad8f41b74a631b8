package dto

import (
	"encoding/json"

	"github.com/quokkaops/answer-bridge/internal/domain/entity"
)

// Envelope types from the Slack Events API.
const (
	EnvelopeURLVerification = "url_verification"
	EnvelopeEventCallback   = "event_callback"
)

// EventEnvelope represents the outer JSON body of a Slack Events API
// callback.
type EventEnvelope struct {
	Type      string          `json:"type"`
	Token     string          `json:"token,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	APIAppID  string          `json:"api_app_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	EventTime int64           `json:"event_time,omitempty"`
	Challenge string          `json:"challenge,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// InnerEvent represents the nested event payload of an event_callback
// envelope.
type InnerEvent struct {
	Type      string `json:"type"`
	SubType   string `json:"subtype,omitempty"`
	User      string `json:"user,omitempty"`
	BotID     string `json:"bot_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"ts,omitempty"`
	ThreadTS  string `json:"thread_ts,omitempty"`
	EventTS   string `json:"event_ts,omitempty"`
}

// ChallengeResponse is the body echoed back for url_verification
// handshakes.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// IsHandshake returns true for url_verification envelopes, which carry
// only a challenge and bypass dedup and processing entirely.
func (e *EventEnvelope) IsHandshake() bool {
	return e.Type == EnvelopeURLVerification
}

// ToMessageEvent converts the envelope and its nested payload to the
// normalized domain event.
func (e *EventEnvelope) ToMessageEvent() (*entity.MessageEvent, error) {
	var inner InnerEvent
	if len(e.Event) > 0 {
		if err := json.Unmarshal(e.Event, &inner); err != nil {
			return nil, err
		}
	}

	return &entity.MessageEvent{
		Type:      inner.Type,
		SubType:   inner.SubType,
		TeamID:    e.TeamID,
		UserID:    inner.User,
		BotID:     inner.BotID,
		ChannelID: inner.Channel,
		Text:      inner.Text,
		Timestamp: inner.Timestamp,
		ThreadTS:  inner.ThreadTS,
		EventID:   e.EventID,
		EventTime: e.EventTime,
	}, nil
}
