package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/grp06/openclaw-studio/internal/clock"
)

// DefaultDebounce is used when SchedulePatch is given a non-positive delay.
const DefaultDebounce = 350 * time.Millisecond

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Debounce time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Coordinator debounces settings edits and writes them through a Store.
// Patches scheduled inside one debounce window coalesce into a single write
// with the last value winning per field.
type Coordinator struct {
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	debounce time.Duration

	// writeMu serializes Store.Apply calls.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending Patch
	timer   *clock.Timer
	closed  bool
}

// NewCoordinator returns a Coordinator writing through store.
func NewCoordinator(store Store, cfg CoordinatorConfig) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		clock:    clock.OrReal(cfg.Clock),
		logger:   logger.With("component", "settings"),
		debounce: cfg.Debounce,
	}
}

// LoadSettings returns the persisted settings, or nil when none exist.
func (c *Coordinator) LoadSettings(ctx context.Context) (*Settings, error) {
	return c.store.Load(ctx)
}

// SchedulePatch merges p into the pending delta and restarts the debounce
// timer. After Close the patch is written immediately.
func (c *Coordinator) SchedulePatch(p Patch, debounce time.Duration) {
	if p.IsEmpty() {
		return
	}
	if debounce <= 0 {
		debounce = c.debounce
	}

	c.mu.Lock()
	c.pending = c.pending.Merge(p)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed {
		c.mu.Unlock()
		c.flushLogged()
		return
	}
	c.timer = c.clock.AfterFunc(debounce, c.flushLogged)
	c.mu.Unlock()
}

// HasPending reports whether a write is waiting for its debounce window.
func (c *Coordinator) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.pending.IsEmpty()
}

func (c *Coordinator) flushLogged() {
	if err := c.FlushPending(context.Background()); err != nil {
		c.logger.Warn("settings write failed", "error", err)
	}
}

// FlushPending writes the pending delta now. When the write fails its
// fields are put back underneath anything scheduled since, so a later
// flush retries them.
func (c *Coordinator) FlushPending(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	p := c.pending
	c.pending = Patch{}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if p.IsEmpty() {
		return nil
	}
	if _, err := c.store.Apply(ctx, p); err != nil {
		c.mu.Lock()
		c.pending = p.Merge(c.pending)
		c.mu.Unlock()
		return err
	}
	c.logger.Debug("settings saved")
	return nil
}

// Close cancels the debounce timer and force-flushes pending edits.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.FlushPending(ctx)
}
