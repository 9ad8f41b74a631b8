package respond

import (
	"context"
	"time"

	"github.com/quokkaops/answer-bridge/internal/domain/entity"
	infraslack "github.com/quokkaops/answer-bridge/internal/infrastructure/slack"
)

// ProcessingResult reports the outcome of one event's processing.
// Response and Error are mutually exclusive.
type ProcessingResult struct {
	Success  bool
	Elapsed  time.Duration
	Response string
	Error    string
}

// Processor decides whether the bot should respond to an event,
// extracts the response context, invokes the answer engine and hands
// the result to the poster.
type Processor struct {
	engine    AnswerEngine
	poster    *Poster
	stats     *Stats
	logger    Logger
	botUserID string
	policy    *PolicySource
}

// NewProcessor creates an event processor. botUserID is the bot's own
// user ID, used to recognize mentions and to never answer itself.
func NewProcessor(engine AnswerEngine, poster *Poster, stats *Stats, logger Logger, botUserID string, policy *PolicySource) *Processor {
	return &Processor{
		engine:    engine,
		poster:    poster,
		stats:     stats,
		logger:    logger,
		botUserID: botUserID,
		policy:    policy,
	}
}

// CanHandle reports whether this processor understands the event type.
func (p *Processor) CanHandle(ev *entity.MessageEvent) bool {
	return ev.Type == "app_mention" || ev.Type == "message"
}

// ShouldRespond applies the response filters:
//   - never answer bot-authored messages (self-message loop prevention)
//   - never answer edits of already-answered messages
//   - outside DMs, only answer when the bot is mentioned
//   - in DMs, answer anything when direct messages are enabled
func (p *Processor) ShouldRespond(ev *entity.MessageEvent) bool {
	if !p.CanHandle(ev) {
		return false
	}
	if ev.IsBotAuthored() || ev.UserID == p.botUserID {
		return false
	}
	if ev.IsEdit() {
		return false
	}

	if ev.IsDirectMessage() {
		return p.policy.Current().EnableDirectMessages
	}

	return ev.IsAppMention() || infraslack.ContainsMention(ev.Text, p.botUserID)
}

// ExtractContext derives the normalized response context for an
// accepted event. If the message is already inside a thread the reply
// stays there; otherwise, when threading is enabled, a new thread is
// rooted at the triggering message. DMs are never threaded.
func (p *Processor) ExtractContext(ev *entity.MessageEvent) *entity.ResponseContext {
	threadTS := ""
	if !ev.IsDirectMessage() && p.policy.Current().EnableThreading {
		if ev.IsInThread() {
			threadTS = ev.ThreadTS
		} else {
			threadTS = ev.Timestamp
		}
	}

	return &entity.ResponseContext{
		ChannelID:       ev.ChannelID,
		ThreadTS:        threadTS,
		UserID:          ev.UserID,
		MessageTS:       ev.Timestamp,
		Query:           infraslack.StripMention(ev.Text, p.botUserID),
		IsDirectMessage: ev.IsDirectMessage(),
	}
}

// ProcessEvent runs the full respond path for one accepted event:
// filter, extract, generate, post. Collaborator failures surface to the
// user as a posted apology, never as a crash or silence.
func (p *Processor) ProcessEvent(ctx context.Context, ev *entity.MessageEvent) *ProcessingResult {
	start := time.Now()

	if !p.ShouldRespond(ev) {
		p.logger.Debug("event filtered out",
			"type", ev.Type,
			"subtype", ev.SubType,
			"channel", ev.ChannelID,
		)
		return &ProcessingResult{Success: true, Elapsed: time.Since(start)}
	}

	rctx := p.ExtractContext(ev)

	answer, err := p.engine.Generate(ctx, rctx.Query, []string{rctx.ChannelID})
	if err != nil {
		elapsed := time.Since(start)
		p.logger.Error("answer generation failed",
			"channel", rctx.ChannelID,
			"user", rctx.UserID,
			"elapsed", elapsed.String(),
			"error", err,
		)

		// The user still gets a visible failure notice, not silence.
		p.poster.PostError(ctx, rctx)
		p.stats.RecordFailed(elapsed)

		return &ProcessingResult{
			Elapsed: elapsed,
			Error:   err.Error(),
		}
	}

	result := p.poster.PostResponse(ctx, answer.Text, rctx)
	elapsed := time.Since(start)
	p.stats.RecordPost(result.Success)

	if !result.Success {
		p.stats.RecordFailed(elapsed)
		return &ProcessingResult{
			Elapsed: elapsed,
			Error:   result.Err.Error(),
		}
	}

	p.stats.RecordProcessed(elapsed)
	p.logger.Info("reply posted",
		"channel", result.ChannelID,
		"threadTS", result.ThreadTS,
		"messageTS", result.MessageTS,
		"elapsedMs", elapsed.Milliseconds(),
		"inputTokens", answer.InputTokens,
		"outputTokens", answer.OutputTokens,
	)

	return &ProcessingResult{
		Success:  true,
		Elapsed:  elapsed,
		Response: answer.Text,
	}
}
