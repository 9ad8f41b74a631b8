package slack

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/quokkaops/answer-bridge/internal/domain/errors"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func freshTimestamp() string {
	return fmt.Sprintf("%d", time.Now().Unix())
}

func TestSignatureVerifier_ValidSignature(t *testing.T) {
	v := NewSignatureVerifier(testSecret)

	body := []byte(`{"type":"event_callback","event_id":"Ev123"}`)
	ts := freshTimestamp()
	sig := v.Sign(ts, body)

	require.NoError(t, v.Verify(ts, body, sig))
}

func TestSignatureVerifier_TamperedBody(t *testing.T) {
	v := NewSignatureVerifier(testSecret)

	body := []byte(`{"type":"event_callback","event_id":"Ev123"}`)
	ts := freshTimestamp()
	sig := v.Sign(ts, body)

	// Flip one byte of the body.
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01

	err := v.Verify(ts, tampered, sig)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
}

func TestSignatureVerifier_TamperedSignature(t *testing.T) {
	v := NewSignatureVerifier(testSecret)

	body := []byte(`{"type":"event_callback"}`)
	ts := freshTimestamp()
	sig := v.Sign(ts, body)

	// Flip one hex character of the signature.
	mutated := []byte(sig)
	if mutated[len(mutated)-1] == 'a' {
		mutated[len(mutated)-1] = 'b'
	} else {
		mutated[len(mutated)-1] = 'a'
	}

	err := v.Verify(ts, body, string(mutated))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
}

func TestSignatureVerifier_WrongSecret(t *testing.T) {
	body := []byte(`{"type":"event_callback"}`)
	ts := freshTimestamp()
	sig := NewSignatureVerifier("other-secret").Sign(ts, body)

	err := NewSignatureVerifier(testSecret).Verify(ts, body, sig)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
}

func TestSignatureVerifier_StaleTimestamp(t *testing.T) {
	v := NewSignatureVerifier(testSecret)

	body := []byte(`{"type":"event_callback"}`)
	// 10 minutes old: correct signature, but outside the replay window.
	ts := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	sig := v.Sign(ts, body)

	err := v.Verify(ts, body, sig)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
	assert.Contains(t, err.Error(), "too old")
}

func TestSignatureVerifier_FutureTimestamp(t *testing.T) {
	v := NewSignatureVerifier(testSecret)

	body := []byte(`{"type":"event_callback"}`)
	ts := fmt.Sprintf("%d", time.Now().Add(10*time.Minute).Unix())
	sig := v.Sign(ts, body)

	err := v.Verify(ts, body, sig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestSignatureVerifier_MalformedInput(t *testing.T) {
	v := NewSignatureVerifier(testSecret)
	body := []byte(`{}`)

	tests := []struct {
		name      string
		timestamp string
		signature string
	}{
		{"missing timestamp", "", "v0=deadbeef"},
		{"non-numeric timestamp", "not-a-number", "v0=deadbeef"},
		{"missing version prefix", freshTimestamp(), "deadbeef"},
		{"wrong version prefix", freshTimestamp(), "v1=deadbeef"},
		{"empty signature", freshTimestamp(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.timestamp, body, tt.signature)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
		})
	}
}
