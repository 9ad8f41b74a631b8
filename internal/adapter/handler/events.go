package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/quokkaops/answer-bridge/internal/adapter/dto"
	"github.com/quokkaops/answer-bridge/internal/domain/entity"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/dedup"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
	infraslack "github.com/quokkaops/answer-bridge/internal/infrastructure/slack"
	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

// maxEventBody caps the webhook request body. Slack event payloads are
// small; anything larger is not a legitimate event.
const maxEventBody = 1 << 20

const (
	headerSignature = "X-Slack-Signature"
	headerTimestamp = "X-Slack-Request-Timestamp"
)

// EventsHandler is the webhook gateway for the Slack Events API. It
// acknowledges every accepted delivery immediately and hands the event
// to the processor on a detached goroutine, so slow answer generation
// never stalls the platform's delivery timeout.
type EventsHandler struct {
	verifier  *infraslack.SignatureVerifier
	store     dedup.Store
	processor *respond.Processor
	stats     *respond.Stats
	metrics   *observability.Metrics
	logger    respond.Logger

	verifySignatures  bool
	processingTimeout time.Duration
}

// NewEventsHandler creates the webhook gateway.
func NewEventsHandler(
	verifier *infraslack.SignatureVerifier,
	store dedup.Store,
	processor *respond.Processor,
	stats *respond.Stats,
	metrics *observability.Metrics,
	logger respond.Logger,
	verifySignatures bool,
	processingTimeout time.Duration,
) *EventsHandler {
	return &EventsHandler{
		verifier:          verifier,
		store:             store,
		processor:         processor,
		stats:             stats,
		metrics:           metrics,
		logger:            logger,
		verifySignatures:  verifySignatures,
		processingTimeout: processingTimeout,
	}
}

// ServeHTTP handles POST /webhook/slack/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		h.logger.Error("failed to read event body", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// The signature covers the raw body, so verification happens
	// before any parsing.
	if h.verifySignatures {
		if err := h.verifier.Verify(r.Header.Get(headerTimestamp), body, r.Header.Get(headerSignature)); err != nil {
			h.logger.Warn("rejected unverified event delivery",
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			h.metrics.RecordSignatureRejected(ctx, "invalid_signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var envelope dto.EventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.logger.Error("failed to decode event envelope", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if envelope.IsHandshake() {
		h.serveHandshake(w, &envelope)
		return
	}

	if envelope.Type != dto.EnvelopeEventCallback {
		// Unknown envelope types are acknowledged so the platform
		// does not redeliver them.
		h.logger.Debug("ignoring unknown envelope type", "type", envelope.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := envelope.ToMessageEvent()
	if err != nil {
		h.logger.Error("failed to decode inner event",
			"eventID", envelope.EventID,
			"error", err,
		)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Delivery is at-least-once: the first sighting of an identity
	// wins, every redelivery is acknowledged without processing.
	identity := event.DedupKey()
	lookupStart := time.Now()
	duplicate, err := h.store.Seen(ctx, identity)
	h.metrics.RecordDedupLookup(ctx, h.store.Name(), time.Since(lookupStart), duplicate)
	if err != nil {
		// Fail open: double-answering on a store outage beats
		// going silent.
		h.logger.Warn("dedup lookup failed, processing anyway",
			"identity", identity,
			"error", err,
		)
	} else if duplicate {
		h.logger.Debug("suppressed duplicate delivery",
			"identity", identity,
			"retryNum", r.Header.Get("X-Slack-Retry-Num"),
		)
		h.stats.RecordDuplicate()
		h.metrics.RecordDuplicateBlocked(ctx)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.stats.RecordReceived()
	h.metrics.RecordEventReceived(ctx, event.Type)

	// Acknowledge now; the request context dies with this handler, so
	// processing runs on its own deadline.
	w.WriteHeader(http.StatusOK)

	go h.process(event)
}

func (h *EventsHandler) serveHandshake(w http.ResponseWriter, envelope *dto.EventEnvelope) {
	h.logger.Info("answering url_verification handshake")
	h.stats.RecordHandshake()
	h.metrics.RecordHandshakeServed(context.Background())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dto.ChallengeResponse{Challenge: envelope.Challenge})
}

func (h *EventsHandler) process(event *entity.MessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.processingTimeout)
	defer cancel()

	result := h.processor.ProcessEvent(ctx, event)
	h.metrics.RecordEventProcessed(ctx, event.Type, result.Elapsed, result.Success)

	if !result.Success {
		h.logger.Error("event processing failed",
			"eventID", event.EventID,
			"elapsed", result.Elapsed.String(),
			"error", result.Error,
		)
	}
}
