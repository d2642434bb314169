package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"
)

// MultiSourceManager merges several ITradeSource instances into one trade channel
type MultiSourceManager struct {
	Sources    map[string]interfaces.ITradeSource
	Logger     *logger.Logger
	mu         sync.RWMutex
	outputChan chan<- models.MTrade // Send-only, managed by parent
	ctx        context.Context      // Lifecycle context (derived)
	cancelFunc context.CancelFunc   // To stop all sources
	wg         *sync.WaitGroup      // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.ITradeSource, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Sources: make(map[string]interfaces.ITradeSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *MultiSourceManager) AddSource(source interfaces.ITradeSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	if m.ctx != nil {
		if err := m.startLocked(source); err != nil {
			delete(m.Sources, name)
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// SourceNames lists the managed sources, sorted.
func (m *MultiSourceManager) SourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedNamesLocked()
}

// -----------------------------------------------------------------------------

// Start starts all sources. Every source signals wg when it is done.
func (m *MultiSourceManager) Start(parentCtx context.Context, outputChan chan<- models.MTrade, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiSourceManager is already running")
	}

	// Derive a context so we can stop the manager independently if needed
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.outputChan = outputChan
	m.wg = wg

	for _, name := range m.sortedNamesLocked() {
		if err := m.startLocked(m.Sources[name]); err != nil {
			cancel()
			m.ctx, m.cancelFunc = nil, nil
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) startLocked(src interfaces.ITradeSource) error {
	m.wg.Add(1)
	if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
		m.wg.Done()
		m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
		return err
	}
	m.Logger.Info("Started source: %s", src.Name())
	return nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) sortedNamesLocked() []string {
	names := make([]string, 0, len(m.Sources))
	for name := range m.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

// Stop stops all sources gracefully by cancelling the internal context
func (m *MultiSourceManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping MultiSourceManager...")
	m.cancelFunc()
	m.cancelFunc = nil
	m.ctx = nil

	m.Logger.Info("MultiSourceManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}
