// Package scheduler runs the single-threaded cooperative world tick
// that owns the world mutation timeline.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DefaultLoopDelay is the sleep between ticks when the config doesn't
// override it.
const DefaultLoopDelay = 50 * time.Millisecond

// Heartbeat is a periodic per-object callback due on its own interval.
type Heartbeat struct {
	ID       string
	Interval time.Duration
	last     time.Time
	Run      func(ctx context.Context)
}

func (h *Heartbeat) due(now time.Time) bool {
	return h.last.IsZero() || now.Sub(h.last) >= h.Interval
}

// Callout is a one-shot, named, timestamped callback invoked on a target
// object by method name with optional args once its time arrives.
type Callout struct {
	ID     string
	At     time.Time
	Target string
	Method string
	Args   []any
	Run    func(ctx context.Context, target, method string, args []any)
}

// PhaseMetrics records per-phase elapsed nanoseconds for one tick.
type PhaseMetrics map[string]time.Duration

// MetricsSink receives one tick's phase timings.
type MetricsSink interface {
	Record(PhaseMetrics)
}

// Scheduler runs every tick phase, in order, once per tick.
type Scheduler struct {
	LoopDelay time.Duration
	Metrics   MetricsSink

	// AcceptConnections is phase 1: accept pending connections, non-blocking.
	AcceptConnections func(ctx context.Context)

	// Heartbeats and Callouts are drained in registration order each tick
	// (phases 2-3); due ones run, others are left pending.
	Heartbeats []*Heartbeat
	Callouts   []*Callout

	// RunCombatRound is phase 4: one combat round across active pairings.
	RunCombatRound func(ctx context.Context)

	// DispatchInput is phase 5: read at most one input line per connected
	// session and dispatch it through the command registry.
	DispatchInput func(ctx context.Context)

	// DeliverMessages is phase 6: drain the message bus.
	DeliverMessages func(ctx context.Context)

	// PruneSessions is phase 7: drop disconnected sessions.
	PruneSessions func(ctx context.Context)

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler with the default loop delay.
func New() *Scheduler {
	return &Scheduler{LoopDelay: DefaultLoopDelay}
}

// Start launches the tick loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	slog.Info("world tick scheduler started", "loop_delay", s.LoopDelay)
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("world tick scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	delay := s.LoopDelay
	if delay <= 0 {
		delay = DefaultLoopDelay
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Tick runs phases 1-8 once, in order. Exported so tests (and an
// embedding driver that prefers to pump ticks itself) can call it
// synchronously without the background loop.
func (s *Scheduler) Tick(ctx context.Context) {
	metrics := PhaseMetrics{}
	now := time.Now()

	phase(metrics, "connections", func() {
		if s.AcceptConnections != nil {
			s.AcceptConnections(ctx)
		}
	})

	phase(metrics, "heartbeats", func() {
		for _, h := range s.Heartbeats {
			if h.Run == nil || !h.due(now) {
				continue
			}
			h.Run(ctx)
			h.last = now
		}
	})

	phase(metrics, "callouts", func() {
		remaining := s.Callouts[:0]
		for _, c := range s.Callouts {
			if now.Before(c.At) {
				remaining = append(remaining, c)
				continue
			}
			if c.Run != nil {
				c.Run(ctx, c.Target, c.Method, c.Args)
			}
		}
		s.Callouts = remaining
	})

	phase(metrics, "combat", func() {
		if s.RunCombatRound != nil {
			s.RunCombatRound(ctx)
		}
	})

	phase(metrics, "input", func() {
		if s.DispatchInput != nil {
			s.DispatchInput(ctx)
		}
	})

	phase(metrics, "messages", func() {
		if s.DeliverMessages != nil {
			s.DeliverMessages(ctx)
		}
	})

	phase(metrics, "prune", func() {
		if s.PruneSessions != nil {
			s.PruneSessions(ctx)
		}
	})

	if s.Metrics != nil {
		s.Metrics.Record(metrics)
	}
}

// ScheduleCallout registers a one-shot callback for a future tick.
func (s *Scheduler) ScheduleCallout(c *Callout) {
	s.Callouts = append(s.Callouts, c)
}

// RegisterHeartbeat registers a recurring per-object callback.
func (s *Scheduler) RegisterHeartbeat(h *Heartbeat) {
	s.Heartbeats = append(s.Heartbeats, h)
}

func phase(metrics PhaseMetrics, name string, fn func()) {
	start := time.Now()
	fn()
	metrics[name] = time.Since(start)
}
