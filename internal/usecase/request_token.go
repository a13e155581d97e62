package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignRequestToken binds a batch item to its match and season. The token
// is {issuedAtMs}.{hex hmac-sha256 of "match:season:issuedAtMs"}.
func SignRequestToken(secret, matchID, seasonID string, issuedAt time.Time) string {
	issuedAtMs := strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return issuedAtMs + "." + requestTokenSignature(secret, matchID, seasonID, issuedAtMs)
}

// VerifyRequestToken checks the signature and, when maxAge > 0, that the
// token is not older than maxAge at now.
func VerifyRequestToken(secret, token, matchID, seasonID string, now time.Time, maxAge time.Duration) error {
	issuedAtRaw, sig, found := strings.Cut(strings.TrimSpace(token), ".")
	if !found || issuedAtRaw == "" || sig == "" {
		return fmt.Errorf("%w: malformed request token", ErrUnauthorized)
	}
	issuedAtMs, err := strconv.ParseInt(issuedAtRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed request token timestamp", ErrUnauthorized)
	}
	expected := requestTokenSignature(secret, matchID, seasonID, issuedAtRaw)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return fmt.Errorf("%w: request token signature mismatch", ErrUnauthorized)
	}
	if maxAge > 0 && now.Sub(time.UnixMilli(issuedAtMs)) > maxAge {
		return fmt.Errorf("%w: request token expired", ErrUnauthorized)
	}
	return nil
}

func requestTokenSignature(secret, matchID, seasonID, issuedAtMs string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(matchID + ":" + seasonID + ":" + issuedAtMs))
	return hex.EncodeToString(mac.Sum(nil))
}
