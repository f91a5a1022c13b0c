package docs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultAutoSaveInterval is the fixed period between auto-save firings.
const DefaultAutoSaveInterval = 30 * time.Second

var (
	errMissingSaveFunc = errors.New("save function is required")

	// ErrSaveInFlight reports that a save was suppressed because another one
	// has not completed yet.
	ErrSaveInFlight = errors.New("docs: save already in flight")
)

// AutoSaverConfig describes the scheduled save policy.
type AutoSaverConfig struct {
	// Interval between firings; DefaultAutoSaveInterval when zero.
	Interval time.Duration
	// Dirty gates each firing; a nil predicate saves on every tick.
	Dirty func() bool
	// Save performs the persistence exactly as a manual save would.
	Save   func(ctx context.Context) error
	Logger *zap.Logger
}

// AutoSaver fires Save on a fixed period while running. At most one save is
// in flight at a time: a firing that lands during an in-flight save is
// suppressed, not queued.
type AutoSaver struct {
	interval time.Duration
	dirty    func() bool
	save     func(ctx context.Context) error
	logger   *zap.Logger

	mu     sync.Mutex
	saving bool
	stop   chan struct{}
	done   chan struct{}
}

// NewAutoSaver validates the configuration and returns a stopped AutoSaver.
func NewAutoSaver(cfg AutoSaverConfig) (*AutoSaver, error) {
	if cfg.Save == nil {
		return nil, errMissingSaveFunc
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &AutoSaver{
		interval: interval,
		dirty:    cfg.Dirty,
		save:     cfg.Save,
		logger:   logger,
	}, nil
}

// Start launches the schedule. Starting an already running AutoSaver is a
// no-op.
func (a *AutoSaver) Start(ctx context.Context) {
	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop, done := a.stop, a.done
	a.mu.Unlock()

	go a.run(ctx, stop, done)
}

// Stop cancels the schedule and waits for the loop to exit. Scheduled saves
// run inside the loop, so Stop blocks until a save the ticker already fired
// has completed. A save in flight through SaveNow is unaffected. Stopping
// twice is a no-op.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// SaveNow performs an immediate save under the same in-flight guard as the
// schedule. It returns ErrSaveInFlight when another save has not completed.
func (a *AutoSaver) SaveNow(ctx context.Context) error {
	if !a.beginSave() {
		return ErrSaveInFlight
	}
	defer a.endSave()
	return a.save(ctx)
}

func (a *AutoSaver) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			a.fire(ctx)
		}
	}
}

func (a *AutoSaver) fire(ctx context.Context) {
	if a.dirty != nil && !a.dirty() {
		return
	}
	if !a.beginSave() {
		return
	}
	defer a.endSave()

	if err := a.save(ctx); err != nil {
		a.logger.Error("auto-save failed", zap.Error(err))
	}
}

func (a *AutoSaver) beginSave() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saving {
		return false
	}
	a.saving = true
	return true
}

func (a *AutoSaver) endSave() {
	a.mu.Lock()
	a.saving = false
	a.mu.Unlock()
}
