// Package shortcode allocates short codes and validates custom aliases.
package shortcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
)

// charset is lowercase-only: short codes are case-normalized, so mixed case would
// only shrink the usable space after folding.
const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	DefaultLength      = 8
	DefaultMaxAttempts = 100
)

var aliasPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// ExistenceChecker reports whether a code is already taken, as a short code or as an alias.
type ExistenceChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator produces unique short codes against the existing code space.
type Generator struct {
	checker     ExistenceChecker
	length      int
	maxAttempts int
	random      func(length int) (string, error)
}

// NewGenerator returns a Generator; zero or negative sizes fall back to the defaults.
func NewGenerator(checker ExistenceChecker, length, maxAttempts int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		checker:     checker,
		length:      length,
		maxAttempts: maxAttempts,
		random:      RandomCode,
	}
}

// Generate draws random codes until one is free, at most maxAttempts times.
// A unique index on the store still backs this check: two concurrent callers can
// draw the same free code, and the loser's insert fails.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.random(g.length)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}

		exists, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking short code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}

		logging.Debug().Str("code", code).Int("attempt", attempt).Int("max_attempts", g.maxAttempts).
			Msg("Short code collision, retrying")
	}

	logging.Error().Int("max_attempts", g.maxAttempts).Msg("Short code space exhausted")
	return "", fmt.Errorf("%w after %d attempts", customerrors.ErrGenerationExhausted, g.maxAttempts)
}

// RandomCode returns a cryptographically random code of the given length.
func RandomCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeAlias lowercases and trims a custom alias, then checks its shape.
func NormalizeAlias(alias string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(alias))
	if !IsValidAlias(normalized) {
		return "", fmt.Errorf("%w: %q", customerrors.ErrInvalidAlias, alias)
	}
	return normalized, nil
}

// IsValidAlias reports whether s, already lowercased, is a usable alias.
func IsValidAlias(s string) bool {
	return aliasPattern.MatchString(s)
}
