package respond

import (
	"sync"
	"time"
)

// Stats tracks pipeline counters and a rolling average processing time.
// Mutated by the gateway and the processor on every event; read by the
// health and stats handlers. Readers take the lock but there is no
// cross-counter consistency requirement.
type Stats struct {
	mu sync.Mutex

	eventsReceived    int64
	eventsProcessed   int64
	eventsFailed      int64
	duplicatesBlocked int64
	handshakesServed  int64
	postsSent         int64
	postsFailed       int64

	totalProcessing time.Duration
	timedSamples    int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	EventsReceived          int64   `json:"eventsReceived"`
	EventsProcessed         int64   `json:"eventsProcessed"`
	EventsFailed            int64   `json:"eventsFailed"`
	DuplicateEventsBlocked  int64   `json:"duplicateEventsBlocked"`
	HandshakesServed        int64   `json:"handshakesServed"`
	PostsSent               int64   `json:"postsSent"`
	PostsFailed             int64   `json:"postsFailed"`
	AverageProcessingTimeMs float64 `json:"averageProcessingTimeMs"`
}

// NewStats creates an empty stats collector.
func NewStats() *Stats {
	return &Stats{}
}

// RecordReceived counts an accepted (non-duplicate, non-handshake) event.
func (s *Stats) RecordReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsReceived++
}

// RecordProcessed counts a successfully processed event and its duration.
func (s *Stats) RecordProcessed(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsProcessed++
	s.totalProcessing += elapsed
	s.timedSamples++
}

// RecordFailed counts a failed event (collaborator error, posting
// failure or processing timeout) and its duration.
func (s *Stats) RecordFailed(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsFailed++
	s.totalProcessing += elapsed
	s.timedSamples++
}

// RecordDuplicate counts a suppressed redelivery.
func (s *Stats) RecordDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicatesBlocked++
}

// RecordHandshake counts a served url_verification challenge.
func (s *Stats) RecordHandshake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakesServed++
}

// RecordPost counts one delivery outcome.
func (s *Stats) RecordPost(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.postsSent++
	} else {
		s.postsFailed++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg float64
	if s.timedSamples > 0 {
		avg = float64(s.totalProcessing.Milliseconds()) / float64(s.timedSamples)
	}

	return Snapshot{
		EventsReceived:          s.eventsReceived,
		EventsProcessed:         s.eventsProcessed,
		EventsFailed:            s.eventsFailed,
		DuplicateEventsBlocked:  s.duplicatesBlocked,
		HandshakesServed:        s.handshakesServed,
		PostsSent:               s.postsSent,
		PostsFailed:             s.postsFailed,
		AverageProcessingTimeMs: avg,
	}
}
