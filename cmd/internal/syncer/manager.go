package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	MinInterval     = 15 * time.Minute
	defaultBackoff  = 10 * time.Second
	maxBackoff      = 5 * time.Hour
	defaultOffPoll  = time.Minute
	defaultRunLimit = 10 * time.Minute
)

type Runner interface {
	DoWork(ctx context.Context) Result
}

// Manager schedules sync runs: periodically, on demand, and with linear
// backoff after a Retry. Runs happen on a single goroutine and never overlap.
type Manager struct {
	runner      Runner
	interval    time.Duration
	backoffBase time.Duration
	offlinePoll time.Duration
	runLimit    time.Duration
	online      func(ctx context.Context) bool
	after       func(d time.Duration) <-chan time.Time

	immediate chan struct{}

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

func NewManager(runner Runner) *Manager {
	return &Manager{
		runner:      runner,
		interval:    MinInterval,
		backoffBase: defaultBackoff,
		offlinePoll: defaultOffPoll,
		runLimit:    defaultRunLimit,
		online:      func(context.Context) bool { return true },
		after:       time.After,
		immediate:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// WithInterval sets the periodic interval. Values below MinInterval are
// raised to it.
func (m *Manager) WithInterval(d time.Duration) *Manager {
	if d < MinInterval {
		d = MinInterval
	}
	m.interval = d
	return m
}

func (m *Manager) WithBackoff(d time.Duration) *Manager {
	if d > 0 {
		m.backoffBase = d
	}
	return m
}

// WithConnectivity sets the check that must pass before each run.
func (m *Manager) WithConnectivity(online func(ctx context.Context) bool) *Manager {
	if online != nil {
		m.online = online
	}
	return m
}

func (m *Manager) WithOfflinePoll(d time.Duration) *Manager {
	if d > 0 {
		m.offlinePoll = d
	}
	return m
}

func (m *Manager) WithRunLimit(d time.Duration) *Manager {
	if d > 0 {
		m.runLimit = d
	}
	return m
}

// Start launches the schedule. Calling it again while it runs is a no-op and
// reports false.
func (m *Manager) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return false
	}
	m.started = true
	go m.loop(ctx)
	return true
}

// RequestImmediate asks for a run as soon as possible. Requests made before
// the loop picks one up collapse into a single run.
func (m *Manager) RequestImmediate() {
	select {
	case m.immediate <- struct{}{}:
	default:
	}
}

// Done is closed once the loop has exited after its context was cancelled.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	attempt := 0
	var delay time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.immediate:
		case <-m.after(delay):
		}

		if !m.online(ctx) {
			log.Debugf("sync skipped: server unreachable")
			delay = min(m.offlinePoll, m.interval)
			continue
		}

		switch m.run(ctx) {
		case Retry:
			attempt++
			delay = m.backoff(attempt)
		default:
			attempt = 0
			delay = m.interval
		}
	}
}

func (m *Manager) run(ctx context.Context) Result {
	runCtx, cancel := context.WithTimeout(ctx, m.runLimit)
	defer cancel()
	return m.runner.DoWork(runCtx)
}

func (m *Manager) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if time.Duration(attempt) > maxBackoff/m.backoffBase {
		return maxBackoff
	}
	return min(m.backoffBase*time.Duration(attempt), maxBackoff)
}
