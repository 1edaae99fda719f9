// Package token issues the short opaque identifiers that address attempts.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Length is the fixed token length in URL-safe characters.
const Length = 11

// Generator derives unguessable attempt tokens from a server secret.
// Tokens encode nothing and are not reversible; collision handling is the
// caller's job (retry with a fresh call, which re-salts with the clock).
type Generator struct {
	secret []byte
	now    func() time.Time
}

func NewGenerator(secret string) *Generator {
	return &Generator{secret: []byte(secret), now: time.Now}
}

// New produces a token bound to the assignment inputs plus a high-resolution
// timestamp, so repeated calls for the same pair yield fresh tokens.
func (g *Generator) New(examKey string, candidateID uint, phone string) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%s|%d|%s|%d", examKey, candidateID, phone, g.now().UnixNano())
	sum := mac.Sum(nil)
	// 8 bytes -> 11 base64url chars, no padding.
	return base64.RawURLEncoding.EncodeToString(sum[:8])[:Length]
}
