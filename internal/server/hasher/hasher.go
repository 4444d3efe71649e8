// Package hasher turns plaintext secrets into storable verifiers.
//
// A server-wide pepper is mixed in with HMAC-SHA256 before the result is
// hashed with bcrypt, which adds a random per-verifier salt. The HMAC step
// also keeps the bcrypt input at a fixed 44 bytes, below its 72-byte limit.
package hasher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
const DefaultCost = 12

// Config is built once at startup and injected.
type Config struct {
	Pepper []byte
	Cost   int
}

type Hasher struct {
	pepper []byte
	cost   int
}

// New validates the config. A missing pepper is a fatal configuration
// error: the server must not start without it.
func New(cfg Config) (*Hasher, error) {
	if len(cfg.Pepper) == 0 {
		return nil, fmt.Errorf("%w: password pepper is not set", common.ErrConfigurationFatal)
	}
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range", common.ErrConfigurationFatal, cost)
	}
	pepper := make([]byte, len(cfg.Pepper))
	copy(pepper, cfg.Pepper)
	return &Hasher{pepper: pepper, cost: cost}, nil
}

func (h *Hasher) mix(secret string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(secret))
	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

// Hash returns a bcrypt verifier of the peppered secret. Two calls with the
// same secret produce different verifiers.
func (h *Hasher) Hash(secret string) (string, error) {
	mixed := h.mix(secret)
	defer common.WipeByteArray(mixed)

	b, err := bcrypt.GenerateFromPassword(mixed, h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches verifier. The comparison inside
// bcrypt is constant time; malformed verifiers never match.
func (h *Hasher) Verify(secret, verifier string) bool {
	mixed := h.mix(secret)
	defer common.WipeByteArray(mixed)

	return bcrypt.CompareHashAndPassword([]byte(verifier), mixed) == nil
}

// NeedsRehash reports whether verifier was produced with a lower cost than
// the one currently configured.
func (h *Hasher) NeedsRehash(verifier string) bool {
	cost, err := bcrypt.Cost([]byte(verifier))
	if err != nil {
		return false
	}
	return cost < h.cost
}
