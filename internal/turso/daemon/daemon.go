package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/browser"
	"github.com/tabsync/tabsync/internal/turso/schema"
	tabsync "github.com/tabsync/tabsync/internal/turso/sync"
)

// Reconciler is the part of the sync engine the daemon drives.
type Reconciler interface {
	Run(ctx context.Context, device string, snapshot []schema.Tab) (*tabsync.Result, error)
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerInterval Trigger = "interval"
	TriggerFile     Trigger = "file"
	TriggerManual   Trigger = "manual"
)

// Config holds configuration for the daemon.
type Config struct {
	// Interval between timer-driven runs.
	Interval time.Duration

	// WatchFile, when set, triggers a run after the file changes.
	WatchFile string

	// DebounceInterval is how long the snapshot file must stay quiet
	// before a change triggers a run. Browsers often write it in bursts.
	DebounceInterval time.Duration

	// OnRun, when set, is called after every run attempt.
	OnRun func(trigger Trigger, res *tabsync.Result, err error)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Status describes the daemon's run history.
type Status struct {
	Runs        int             `json:"runs"`
	Failures    int             `json:"failures"`
	LastTrigger Trigger         `json:"last_trigger,omitempty"`
	LastRun     time.Time       `json:"last_run"`
	LastResult  *tabsync.Result `json:"last_result,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

// Daemon keeps one device's tabs reconciled with the store.
//
// Runs happen on start, on every interval tick, after the snapshot file
// changes and on TriggerNow. They never overlap: a trigger that arrives
// during a run waits for it to finish. A failed run is logged and the
// next trigger is the retry.
type Daemon struct {
	reconciler Reconciler
	source     browser.Source
	device     string
	config     *Config

	runMu   sync.Mutex
	trigger chan struct{}

	statusMu sync.Mutex
	status   Status
}

// New creates a Daemon for device.
func New(reconciler Reconciler, source browser.Source, device string, config *Config) (*Daemon, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if device == "" {
		return nil, fmt.Errorf("device name cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	return &Daemon{
		reconciler: reconciler,
		source:     source,
		device:     device,
		config:     config,
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Start runs the daemon until ctx is cancelled.
//
// The first run happens immediately. Its failure is logged like any
// other run failure and does not stop the daemon. Start only returns an
// error when the snapshot watcher cannot be set up.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon for %s (interval %s)", d.device, d.config.Interval)

	var events <-chan FileEvent
	var watchErrs <-chan error
	if d.config.WatchFile != "" {
		sw, err := NewSnapshotWatcher()
		if err != nil {
			return err
		}
		if err := sw.Start(d.config.WatchFile); err != nil {
			sw.Stop()
			return err
		}
		defer sw.Stop()
		events = sw.Events()
		watchErrs = sw.Errors()
		d.config.Logger.Printf("Watching: %s", d.config.WatchFile)
	}

	d.RunOnce(ctx, TriggerStart)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	// debounce is nil while no file change is pending.
	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("Daemon stopped")
			return nil

		case <-ticker.C:
			d.RunOnce(ctx, TriggerInterval)

		case <-d.trigger:
			d.RunOnce(ctx, TriggerManual)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op == OpDelete {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(d.config.DebounceInterval)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(d.config.DebounceInterval)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			d.RunOnce(ctx, TriggerFile)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// TriggerNow requests a run as soon as the daemon loop is free. Requests
// made while one is already pending are merged.
func (d *Daemon) TriggerNow() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// RunOnce reads the current tabs and reconciles them. It is safe to call
// concurrently with a running daemon; runs are serialized.
//
// A snapshot that cannot be read skips the run. Reconciling an empty
// snapshot in its place would delete every record this device owns.
func (d *Daemon) RunOnce(ctx context.Context, trigger Trigger) (*tabsync.Result, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	tabs, err := d.source.Tabs(ctx)
	if err != nil {
		err = &tabsync.RunError{Kind: tabsync.KindPrecondition, Op: "read", Err: err}
		d.record(trigger, nil, err)
		return nil, err
	}

	res, err := d.reconciler.Run(ctx, d.device, tabs)
	d.record(trigger, res, err)
	return res, err
}

// Status returns a copy of the daemon's run history.
func (d *Daemon) Status() Status {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.status
}

func (d *Daemon) record(trigger Trigger, res *tabsync.Result, err error) {
	d.statusMu.Lock()
	d.status.Runs++
	d.status.LastTrigger = trigger
	d.status.LastRun = time.Now()
	d.status.LastResult = res
	d.status.LastError = ""
	if err != nil {
		d.status.Failures++
		d.status.LastError = err.Error()
	}
	d.statusMu.Unlock()

	if err != nil {
		d.config.Logger.Printf("Run (%s) failed: %v", trigger, err)
	}
	if d.config.OnRun != nil {
		d.config.OnRun(trigger, res, err)
	}
}
