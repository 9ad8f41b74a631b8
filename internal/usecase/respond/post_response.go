package respond

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/quokkaops/answer-bridge/internal/domain/entity"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/resilience"
	infraslack "github.com/quokkaops/answer-bridge/internal/infrastructure/slack"
)

// truncationNotice is appended whenever a reply is cut to fit the
// platform limit.
const truncationNotice = "\n\n_[response truncated]_"

// apologyNotice is the user-visible failure message. The user either
// gets an answer or this; silence is only acceptable when the event was
// deliberately filtered out.
const apologyNotice = "Sorry, I ran into a problem answering that. Please try again in a moment."

// Poster formats answers for Slack and delivers them, degrading to a
// user-visible error notice when delivery ultimately fails. The policy
// is read from the source on every call so reloaded values take effect
// without a restart.
type Poster struct {
	api    ChatAPI
	retry  *resilience.RetryPolicy
	policy *PolicySource
	logger Logger
}

// NewPoster creates a response poster.
func NewPoster(api ChatAPI, retry *resilience.RetryPolicy, policy *PolicySource, logger Logger) *Poster {
	return &Poster{
		api:    api,
		retry:  retry,
		policy: policy,
		logger: logger,
	}
}

// PostResponse formats the raw answer for the context and delivers it.
// Delivery routing: DM contexts take precedence over threading, since
// a DM has no audience to thread for. Threaded contexts keep the
// thread; everything else posts top-level.
func (p *Poster) PostResponse(ctx context.Context, text string, rctx *entity.ResponseContext) entity.PostResult {
	reply := p.Format(text, rctx)

	if rctx.IsDirectMessage && p.policy.Current().EnableDirectMessages {
		return p.postDirectMessage(ctx, reply, rctx)
	}

	return p.post(ctx, reply)
}

// PostError delivers the short apology notice to the original
// channel/thread. Best effort: its own failure is logged, never
// escalated, so a posting outage cannot cascade.
func (p *Poster) PostError(ctx context.Context, rctx *entity.ResponseContext) {
	threadTS := ""
	if p.policy.Current().EnableThreading && !rctx.IsDirectMessage {
		threadTS = rctx.ThreadTS
	}
	p.postNotice(ctx, rctx.ChannelID, threadTS)
}

// postNotice is the single-attempt apology delivery shared by the
// error paths.
func (p *Poster) postNotice(ctx context.Context, channelID, threadTS string) {
	if _, err := p.api.PostMessage(ctx, channelID, apologyNotice, threadTS); err != nil {
		p.logger.Error("failed to deliver error notice",
			"channel", channelID,
			"error", err,
		)
	}
}

// Format converts the answer to Slack mrkdwn, prefixes the actor
// mention for shared-channel replies and truncates to the configured
// limit.
func (p *Poster) Format(text string, rctx *entity.ResponseContext) *entity.FormattedReply {
	policy := p.policy.Current()
	body := infraslack.ToMrkdwn(text)

	// In a shared channel the answer addresses the person who asked;
	// in a DM the mention would be noise.
	if !rctx.IsDirectMessage && rctx.UserID != "" {
		body = infraslack.Mention(rctx.UserID) + " " + body
	}

	body = Truncate(body, policy.MaxResponseLength)

	threadTS := ""
	if policy.EnableThreading && !rctx.IsDirectMessage {
		threadTS = rctx.ThreadTS
	}

	return &entity.FormattedReply{
		ChannelID: rctx.ChannelID,
		Text:      body,
		ThreadTS:  threadTS,
	}
}

// Truncate cuts text to maxLength, preferring a sentence or line break
// near the end so the cut does not look arbitrary, and appends the
// truncation notice. A break is only used when it falls within the
// final 20% of the budget; otherwise the hard cut point wins.
func Truncate(text string, maxLength int) string {
	if maxLength <= 0 || len(text) <= maxLength {
		return text
	}

	cut := maxLength - len(truncationNotice)
	if cut < 0 {
		cut = 0
	}

	// Never split a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	slice := text[:cut]
	floor := cut * 4 / 5

	best := -1
	for _, sep := range []string{"\n", ". ", "! ", "? "} {
		if i := strings.LastIndex(slice, sep); i >= 0 {
			end := i
			if sep != "\n" {
				end = i + 1 // keep the punctuation
			}
			if end > best {
				best = end
			}
		}
	}
	if best >= floor {
		slice = slice[:best]
	}

	return strings.TrimRight(slice, " \n") + truncationNotice
}

// post delivers a formatted reply under the retry policy, attempting
// the apology fallback when delivery ultimately fails.
func (p *Poster) post(ctx context.Context, reply *entity.FormattedReply) entity.PostResult {
	var messageTS string

	err := p.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.policy.Current().PostTimeout)
		defer cancel()

		ts, postErr := p.api.PostMessage(callCtx, reply.ChannelID, reply.Text, reply.ThreadTS)
		if postErr != nil {
			return postErr
		}
		messageTS = ts
		return nil
	})
	if err != nil {
		p.logger.Error("posting reply failed",
			"channel", reply.ChannelID,
			"threadTS", reply.ThreadTS,
			"error", err,
		)

		p.postNotice(ctx, reply.ChannelID, reply.ThreadTS)

		return entity.PostResult{
			Success:   false,
			ChannelID: reply.ChannelID,
			ThreadTS:  reply.ThreadTS,
			Err:       err,
		}
	}

	return entity.PostResult{
		Success:   true,
		MessageTS: messageTS,
		ChannelID: reply.ChannelID,
		ThreadTS:  reply.ThreadTS,
	}
}

// postDirectMessage opens the DM conversation first, then posts there.
func (p *Poster) postDirectMessage(ctx context.Context, reply *entity.FormattedReply, rctx *entity.ResponseContext) entity.PostResult {
	var dmChannel string

	err := p.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.policy.Current().PostTimeout)
		defer cancel()

		ch, openErr := p.api.OpenDM(callCtx, rctx.UserID)
		if openErr != nil {
			return openErr
		}
		dmChannel = ch
		return nil
	})
	if err != nil {
		p.logger.Error("opening dm conversation failed",
			"user", rctx.UserID,
			"error", err,
		)
		return entity.PostResult{
			Success:   false,
			ChannelID: reply.ChannelID,
			Err:       err,
		}
	}

	dmReply := &entity.FormattedReply{
		ChannelID: dmChannel,
		Text:      reply.Text,
	}
	return p.post(ctx, dmReply)
}
