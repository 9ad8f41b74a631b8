package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/quokkaops/answer-bridge/internal/infrastructure/dedup"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/resilience"
	infraslack "github.com/quokkaops/answer-bridge/internal/infrastructure/slack"
	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

const (
	testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"
	testBotUserID     = "UBOT01"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type stubEngine struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
}

func (s *stubEngine) Generate(_ context.Context, _ string, _ []string) (*respond.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &respond.Answer{Text: s.answer}, nil
}

func (s *stubEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type postCall struct {
	channelID string
	text      string
	threadTS  string
}

type stubChatAPI struct {
	mu    sync.Mutex
	posts []postCall
}

func (s *stubChatAPI) PostMessage(_ context.Context, channelID, text, threadTS string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, postCall{channelID: channelID, text: text, threadTS: threadTS})
	return "1700000000.000200", nil
}

func (s *stubChatAPI) OpenDM(_ context.Context, _ string) (string, error) {
	return "D999", nil
}

func (s *stubChatAPI) calls() []postCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]postCall, len(s.posts))
	copy(out, s.posts)
	return out
}

type gateway struct {
	handler *EventsHandler
	engine  *stubEngine
	api     *stubChatAPI
	stats   *respond.Stats
}

func newTestGateway(t *testing.T, engine *stubEngine, verify bool) *gateway {
	t.Helper()

	metrics, err := observability.NewMetrics(sdkmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	store := dedup.NewMemoryStore(5 * time.Minute)
	t.Cleanup(func() { store.Close() })

	api := &stubChatAPI{}
	stats := respond.NewStats()

	retry := &resilience.RetryPolicy{
		InitialBackoff: time.Millisecond,
		Multiplier:     1.0,
		MaxBackoff:     time.Millisecond,
		MaxAttempts:    2,
		Retryable:      func(error) bool { return true },
	}

	policy := respond.NewPolicySource(respond.PostPolicy{
		EnableThreading:      true,
		EnableDirectMessages: true,
		MaxResponseLength:    4000,
		PostTimeout:          time.Second,
	})

	poster := respond.NewPoster(api, retry, policy, noopLogger{})
	processor := respond.NewProcessor(engine, poster, stats, noopLogger{}, testBotUserID, policy)

	h := NewEventsHandler(
		infraslack.NewSignatureVerifier(testSigningSecret),
		store,
		processor,
		stats,
		metrics,
		noopLogger{},
		verify,
		5*time.Second,
	)

	return &gateway{handler: h, engine: engine, api: api, stats: stats}
}

func mentionPayload(eventID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"type":       "event_callback",
		"team_id":    "T01",
		"event_id":   eventID,
		"event_time": 1700000000,
		"event": map[string]any{
			"type":    "app_mention",
			"user":    "U777",
			"text":    "<@UBOT01> status?",
			"channel": "C123",
			"ts":      "1700000000.000100",
		},
	})
	return body
}

func signedRequest(body []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(body))
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerSignature, infraslack.NewSignatureVerifier(secret).Sign(ts, body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEventsHandler_Handshake(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "never"}, true)

	body, _ := json.Marshal(map[string]any{
		"type":      "url_verification",
		"challenge": "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P",
	})

	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, signedRequest(body, testSigningSecret))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", resp["challenge"])

	assert.Equal(t, int64(1), gw.stats.Snapshot().HandshakesServed)
	assert.Zero(t, gw.engine.callCount(), "handshakes never reach the processor")
}

func TestEventsHandler_SignatureRejection(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "never"}, true)
	body := mentionPayload("Ev001")

	t.Run("wrong secret", func(t *testing.T) {
		w := httptest.NewRecorder()
		gw.handler.ServeHTTP(w, signedRequest(body, "wrong-secret"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(body))
		w := httptest.NewRecorder()
		gw.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	assert.Zero(t, gw.engine.callCount(), "rejected deliveries never reach the processor")
}

func TestEventsHandler_AcceptsAndAnswersMention(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "All green."}, true)

	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, signedRequest(mentionPayload("Ev001"), testSigningSecret))

	// The ack carries no body; processing continues after it.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	require.Eventually(t, func() bool {
		return len(gw.api.calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	calls := gw.api.calls()
	assert.Equal(t, "C123", calls[0].channelID)
	assert.Contains(t, calls[0].text, "All green.")
	assert.Equal(t, "1700000000.000100", calls[0].threadTS)
}

func TestEventsHandler_DuplicateSuppression(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "once"}, false)

	first := httptest.NewRecorder()
	gw.handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(mentionPayload("Ev001"))))
	require.Equal(t, http.StatusOK, first.Code)

	redelivery := httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(mentionPayload("Ev001")))
	redelivery.Header.Set("X-Slack-Retry-Num", "1")
	second := httptest.NewRecorder()
	gw.handler.ServeHTTP(second, redelivery)
	require.Equal(t, http.StatusOK, second.Code, "duplicates are acknowledged, not errored")

	require.Eventually(t, func() bool {
		return len(gw.api.calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give any stray second dispatch a chance to surface.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, gw.api.calls(), 1, "a redelivered event must produce no second reply")

	snap := gw.stats.Snapshot()
	assert.Equal(t, int64(1), snap.DuplicateEventsBlocked)
	assert.Equal(t, int64(1), snap.EventsReceived)
}

func TestEventsHandler_EngineFailureProducesApology(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{err: errors.New("overloaded_error")}, false)

	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(mentionPayload("Ev002"))))
	require.Equal(t, http.StatusOK, w.Code, "collaborator failures never surface as webhook errors")

	require.Eventually(t, func() bool {
		return gw.stats.Snapshot().EventsFailed == 1
	}, 2*time.Second, 10*time.Millisecond)

	calls := gw.api.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].text, "Sorry")
	assert.Zero(t, gw.stats.Snapshot().EventsProcessed)
}

func TestEventsHandler_MalformedPayload(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "never"}, false)

	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHandler_UnknownEnvelopeAcknowledged(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{answer: "never"}, false)

	body, _ := json.Marshal(map[string]any{"type": "app_rate_limited"})
	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/slack/events", bytes.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, gw.engine.callCount())
}

func TestEventsHandler_MethodNotAllowed(t *testing.T) {
	gw := newTestGateway(t, &stubEngine{}, false)

	w := httptest.NewRecorder()
	gw.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook/slack/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
