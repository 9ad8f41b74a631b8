package slack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/slack-go/slack"

	domainerrors "github.com/quokkaops/answer-bridge/internal/domain/errors"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
)

// Client wraps the Slack Web API with the operations the response
// pipeline needs: posting messages (top-level, threaded, DM), opening
// DM conversations and the read-side lookups.
type Client struct {
	api     *slack.Client
	metrics *observability.Metrics
}

// NewClient creates a new Slack client. An apiURL override is accepted
// for testing against a local mock.
func NewClient(botToken string, apiURL ...string) *Client {
	var api *slack.Client
	if len(apiURL) > 0 && apiURL[0] != "" {
		api = slack.New(botToken, slack.OptionAPIURL(apiURL[0]))
	} else {
		api = slack.New(botToken)
	}

	return &Client{api: api}
}

// WithMetrics attaches delivery metrics recording to the client.
func (c *Client) WithMetrics(metrics *observability.Metrics) *Client {
	c.metrics = metrics
	return c
}

// PostMessage posts text to a channel. A non-empty threadTS makes the
// message a threaded reply. Returns the posted message timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error) {
	options := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	start := time.Now()
	_, timestamp, err := c.api.PostMessageContext(ctx, channelID, options...)
	if c.metrics != nil {
		c.metrics.RecordPost(ctx, threadTS != "", time.Since(start), err == nil)
	}
	if err != nil {
		return "", categorizeSlackError(err, "posting message")
	}

	return timestamp, nil
}

// OpenDM opens (or resumes) a direct-message conversation with the
// given user and returns its channel ID.
func (c *Client) OpenDM(ctx context.Context, userID string) (string, error) {
	channel, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", categorizeSlackError(err, "opening dm conversation")
	}

	return channel.ID, nil
}

// BotUserID resolves the authenticated bot's user ID via auth.test.
// Needed once at startup to recognize mentions of ourselves.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", categorizeSlackError(err, "auth test")
	}

	return resp.UserID, nil
}

// categorizeSlackError wraps Slack API errors as transient or permanent
// domain errors so the retry predicate can tell them apart.
func categorizeSlackError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Rate limits carry a Retry-After and are always worth retrying.
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: rate limited (retry after %s)", operation, rateErr.RetryAfter),
			err,
		)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: network error", operation),
			err,
		)
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch slackErr.Err {
		case "rate_limited", "internal_error", "fatal_error", "service_unavailable":
			return domainerrors.NewTransientError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)

		// Auth and addressing problems will not fix themselves.
		case "invalid_auth", "account_inactive", "token_revoked", "no_permission",
			"channel_not_found", "not_in_channel", "is_archived", "user_not_found",
			"msg_too_long", "restricted_action":
			return domainerrors.NewPermanentError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)

		default:
			return domainerrors.NewPermanentError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: context timeout", operation),
			err,
		)
	}

	return domainerrors.NewPermanentError(
		fmt.Sprintf("%s: %v", operation, err),
		err,
	)
}
