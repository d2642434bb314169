package models

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSymbolLength bounds the length of an instrument symbol.
const MaxSymbolLength = 32

var (
	ErrSymbolEmpty   = errors.New("symbol is empty")
	ErrSymbolTooLong = fmt.Errorf("symbol exceeds %d characters", MaxSymbolLength)
)

// Symbol is a validated instrument identifier. Use ParseSymbol to build one from
// untrusted input; oversized symbols are rejected, never truncated.
type Symbol string

// -----------------------------------------------------------------------------

// ParseSymbol trims surrounding whitespace and validates the result.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrSymbolEmpty
	}
	if len(s) > MaxSymbolLength {
		return "", fmt.Errorf("%w: %q", ErrSymbolTooLong, s)
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '\\' || r == 0x7f {
			return "", fmt.Errorf("symbol %q contains invalid character %q", s, r)
		}
	}
	return Symbol(s), nil
}

// -----------------------------------------------------------------------------

func (s Symbol) String() string {
	return string(s)
}
