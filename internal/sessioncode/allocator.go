// Package sessioncode generates short join codes for practice sessions.
package sessioncode

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/example/studysync/internal/apperr"
)

const (
	// Length is the number of characters in a session code
	Length = 6
	// Alphabet is the set of characters a code is drawn from
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// DefaultMaxAttempts bounds retries before reporting exhaustion
	DefaultMaxAttempts = 64
)

// Keyspace is the number of distinct codes (36^6)
const Keyspace = 36 * 36 * 36 * 36 * 36 * 36

// Allocator draws random codes that do not collide with active ones
type Allocator struct {
	rand        io.Reader
	maxAttempts int
}

// NewAllocator creates an allocator backed by crypto/rand
func NewAllocator() *Allocator {
	return &Allocator{rand: rand.Reader, maxAttempts: DefaultMaxAttempts}
}

// NewAllocatorWithSource creates an allocator reading randomness from src
func NewAllocatorWithSource(src io.Reader, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{rand: src, maxAttempts: maxAttempts}
}

// Allocate returns a code not present in active. Codes of ended sessions may be reused,
// so active must hold only codes of active sessions, in canonical form.
func (a *Allocator) Allocate(active map[string]struct{}) (string, error) {
	if len(active) >= Keyspace {
		return "", apperr.ErrCodeSpaceExhausted
	}
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate session code: %w", err)
		}
		if _, taken := active[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%d attempts collided: %w", a.maxAttempts, apperr.ErrCodeSpaceExhausted)
}

// generate draws Length characters by rejection sampling, so every character is equally likely
func (a *Allocator) generate() (string, error) {
	const limit = 256 - 256%len(Alphabet)
	buf := make([]byte, 1)
	code := make([]byte, 0, Length)
	for len(code) < Length {
		if _, err := io.ReadFull(a.rand, buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		code = append(code, Alphabet[int(buf[0])%len(Alphabet)])
	}
	return string(code), nil
}

// Normalize converts user input into the canonical uppercase form
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is exactly Length characters from Alphabet
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
