package server

import (
	"fmt"
	"strconv"
)

const (
	defaultBarsLimit = 100
	maxBarsLimit     = 1000
)

// -----------------------------------------------------------------------------

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultBarsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxBarsLimit {
		n = maxBarsLimit
	}
	return n, nil
}
