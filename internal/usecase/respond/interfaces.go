package respond

import (
	"context"
)

// Logger defines the logging contract for use cases.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Answer is the result of one answer-generation call.
type Answer struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// AnswerEngine is the answer-generation collaborator. It may fail with
// a provider error, which the pipeline surfaces as a posted error
// notice, never a crash.
type AnswerEngine interface {
	Generate(ctx context.Context, query string, channelScope []string) (*Answer, error)
}

// ChatAPI is the platform's read/write API surface consumed by the
// poster. Implemented by the Slack infrastructure client.
type ChatAPI interface {
	// PostMessage posts text to a channel, threaded when threadTS is
	// non-empty. Returns the posted message timestamp.
	PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error)

	// OpenDM opens a direct-message conversation with the user and
	// returns its channel ID.
	OpenDM(ctx context.Context, userID string) (string, error)
}
