// Package file replays trades from a JSON-lines file.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/metrics"
	"ohlc-streamer/src/models"
)

const maxLineSize = 64 * 1024

// -----------------------------------------------------------------------------

// Source reads one trade per line and forwards the well-formed ones. The
// caller adds to wg before Start; the reader goroutine calls Done.
type Source struct {
	name string
	path string
	log  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	accepted uint64
	rejected uint64
}

// -----------------------------------------------------------------------------

func NewSource(cfg models.MDataSourceConfig, log *logger.Logger) *Source {
	return &Source{
		name: cfg.Name,
		path: cfg.Path,
		log:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *Source) Name() string {
	return s.name
}

// -----------------------------------------------------------------------------

// Start opens the file and reads it in the background. Sends on outputChan
// block; cancellation abandons the pending send.
func (s *Source) Start(ctx context.Context, outputChan chan<- models.MTrade, wg *sync.WaitGroup) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("source %s: %w", s.name, err)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		f.Close()
		return fmt.Errorf("source %s is already running", s.name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("Reading trades from %s", s.path)

	go func() {
		defer wg.Done()
		defer f.Close()
		defer cancel()

		s.read(runCtx, f, outputChan)
		s.log.Info("Source %s finished: %d trades forwarded, %d rejected", s.name, s.accepted, s.rejected)
	}()
	return nil
}

// -----------------------------------------------------------------------------

// Stop abandons the file; the reader goroutine exits at its next send or line.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Source) read(ctx context.Context, f *os.File, out chan<- models.MTrade) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		trade, err := ParseTrade(line)
		if err != nil {
			s.rejected++
			metrics.TradesRejected.WithLabelValues(s.name).Inc()
			s.log.Warning("%s:%d rejected: %v", s.path, lineNo, err)
			continue
		}

		select {
		case out <- trade:
			s.accepted++
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.log.Error("Reading %s stopped at line %d: %v", s.path, lineNo, err)
	}
}
