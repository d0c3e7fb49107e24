// Package idgen hands out the ids the site stores and logs: visitors,
// submissions, subscriptions, events and mutation batches.
package idgen

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns base-36 ids of the given length. Bytes at or above 252
// are redrawn so every symbol is equally likely.
func NanoID(length int) Generator {
	const limit = 252 // 7 * 36
	return func() string {
		out := make([]byte, 0, length)
		buf := make([]byte, length)
		for len(out) < length {
			rand.Read(buf)
			for _, b := range buf {
				if b < limit && len(out) < length {
					out = append(out, base36[b%36])
				}
			}
		}
		return string(out)
	}
}

// UUIDv7 returns time-ordered RFC 9562 ids.
func UUIDv7() Generator {
	return func() string { return uuid.Must(uuid.NewV7()).String() }
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string { return prefix + gen() }
}

// Default is UUIDv7.
var Default = UUIDv7()

// New returns a Default id.
func New() string { return Default() }

// Scope is a prefixed id family that can check ids it did not mint, such
// as one read back from a cookie.
type Scope struct {
	Prefix string
	gen    Generator
	valid  func(string) bool
}

// New mints an id.
func (s Scope) New() string { return s.Prefix + s.gen() }

// Valid reports whether id carries the prefix and a well-formed body.
func (s Scope) Valid(id string) bool {
	body, ok := strings.CutPrefix(id, s.Prefix)
	return ok && body != "" && s.valid(body)
}

var (
	Visitor      = Scope{Prefix: "vis_", gen: Default, valid: isUUID}
	Submission   = Scope{Prefix: "sub_", gen: Default, valid: isUUID}
	Subscription = Scope{Prefix: "sbs_", gen: NanoID(12), valid: isBase36(12)}
)

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

func isBase36(n int) func(string) bool {
	return func(s string) bool {
		if len(s) != n {
			return false
		}
		for i := 0; i < len(s); i++ {
			if strings.IndexByte(base36, s[i]) < 0 {
				return false
			}
		}
		return true
	}
}
