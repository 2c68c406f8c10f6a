package deviceauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names the ESP32 firmware sends with every authenticated request.
const (
	HeaderDispenserID = "X-Dispenser-ID"
	HeaderTimestamp   = "X-Timestamp"
	HeaderSignature   = "X-Signature"
)

var (
	ErrMissingCredentials = errors.New("missing device credentials")
	ErrBadTimestamp       = errors.New("malformed timestamp")
	ErrTimestampSkew      = errors.New("timestamp outside allowed window")
	ErrNotProvisioned     = errors.New("device has no secret")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// Sign computes the hex HMAC-SHA256 signature a device sends: the message is
// the dispenser id concatenated with the unix-seconds timestamp string.
func Sign(secret, dispenserID string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(dispenserID + strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Credentials carries the raw header values of one device request.
type Credentials struct {
	DispenserID string
	Timestamp   string
	Signature   string
}

// Complete reports whether all three headers were supplied.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.DispenserID) != "" &&
		strings.TrimSpace(c.Timestamp) != "" &&
		strings.TrimSpace(c.Signature) != ""
}

// Verify checks the supplied credentials against the stored device secret.
// The comparison is constant time.
func Verify(secret string, creds Credentials, now time.Time, skew time.Duration) error {
	if !creds.Complete() {
		return ErrMissingCredentials
	}
	if secret == "" {
		return ErrNotProvisioned
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(creds.Timestamp), 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}

	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > skew {
		return ErrTimestampSkew
	}

	expected := Sign(secret, creds.DispenserID, ts)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(creds.Signature)))) {
		return ErrSignatureMismatch
	}
	return nil
}

// GenerateSecret returns a hex-encoded random device secret.
func GenerateSecret(bytes int) (string, error) {
	if bytes <= 0 {
		bytes = 32
	}
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
