package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainerrors "github.com/quokkaops/answer-bridge/internal/domain/errors"
)

const (
	// SignatureVersion is the Slack signature version prefix
	SignatureVersion = "v0"

	// MaxTimestampAge is the maximum age of a request timestamp (5 minutes)
	MaxTimestampAge = 5 * time.Minute

	// maxFutureSkew tolerates clock drift for timestamps ahead of us
	maxFutureSkew = 1 * time.Minute
)

// SignatureVerifier validates that an inbound callback body was
// produced by Slack, using the shared signing secret and a timestamp
// bound. Malformed or forged input yields an error, never a panic; the
// gateway maps failures to 401.
type SignatureVerifier struct {
	signingSecret string
}

// NewSignatureVerifier creates a new signature verifier. The signing
// secret must be non-empty when verification is enforced; that is a
// configuration error and is checked at startup, not here.
func NewSignatureVerifier(signingSecret string) *SignatureVerifier {
	return &SignatureVerifier{
		signingSecret: signingSecret,
	}
}

// Verify checks a Slack request signature using HMAC-SHA256.
// Per Slack spec: https://api.slack.com/authentication/verifying-requests-from-slack
//
// Parameters:
//   - timestamp: X-Slack-Request-Timestamp header value (Unix timestamp)
//   - body: Raw request body (must not be parsed before verification)
//   - signature: X-Slack-Signature header value (format: "v0=<hex_signature>")
//
// Returns an error wrapping errors.ErrSignatureInvalid if:
//   - Timestamp is missing, non-numeric, or outside the allowed skew
//   - Signature format is invalid
//   - Computed signature doesn't match the provided signature
func (v *SignatureVerifier) Verify(timestamp string, body []byte, signature string) error {
	// Validate timestamp freshness (prevent replay of captured requests)
	if err := v.validateTimestamp(timestamp); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrSignatureInvalid, err)
	}

	if !strings.HasPrefix(signature, SignatureVersion+"=") {
		return fmt.Errorf("%w: expected prefix '%s='", domainerrors.ErrSignatureInvalid, SignatureVersion)
	}

	providedSig := strings.TrimPrefix(signature, SignatureVersion+"=")

	// Signature base string: v0:<timestamp>:<body>
	baseString := fmt.Sprintf("%s:%s:%s", SignatureVersion, timestamp, string(body))
	expectedSig := v.computeSignature(baseString)

	// Constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(expectedSig), []byte(providedSig)) {
		return fmt.Errorf("%w: signature mismatch", domainerrors.ErrSignatureInvalid)
	}

	return nil
}

// Sign computes the signature header value for the given timestamp and
// body. Used by tests and the local development client.
func (v *SignatureVerifier) Sign(timestamp string, body []byte) string {
	baseString := fmt.Sprintf("%s:%s:%s", SignatureVersion, timestamp, string(body))
	return SignatureVersion + "=" + v.computeSignature(baseString)
}

// validateTimestamp checks if the request timestamp is within acceptable range.
func (v *SignatureVerifier) validateTimestamp(timestamp string) error {
	if timestamp == "" {
		return fmt.Errorf("missing timestamp")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp format: %v", err)
	}

	requestTime := time.Unix(ts, 0)
	now := time.Now()

	if requestTime.After(now.Add(maxFutureSkew)) {
		return fmt.Errorf("timestamp is in the future: %s (current: %s)",
			requestTime.Format(time.RFC3339),
			now.Format(time.RFC3339))
	}

	if age := now.Sub(requestTime); age > MaxTimestampAge {
		return fmt.Errorf("timestamp too old: %s (age: %s, max: %s)",
			requestTime.Format(time.RFC3339),
			age.String(),
			MaxTimestampAge.String())
	}

	return nil
}

// computeSignature computes HMAC-SHA256 signature for the given base string.
func (v *SignatureVerifier) computeSignature(baseString string) string {
	h := hmac.New(sha256.New, []byte(v.signingSecret))
	h.Write([]byte(baseString))
	return hex.EncodeToString(h.Sum(nil))
}
