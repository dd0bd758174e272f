// Package launcher supervises the AirWave services: the dashboard server
// and the two Pi agents, local or over SSH. Output from every component is
// fanned into one tagged line stream for the console.
package launcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"airwave/internal/logging"
)

// Line is one line of output from a supervised component.
type Line struct {
	Component string
	Text      string
}

// Exit reports a component that stopped.
type Exit struct {
	Component string
	Err       error // nil on clean exit
}

// Manager owns the lifecycle of all supervised processes.
type Manager struct {
	grace time.Duration
	log   *logging.Logger

	mu      sync.Mutex
	procs   map[string]Proc
	stopped bool

	lines chan Line
	exits chan Exit

	g *errgroup.Group
}

// sinkSetter lets the manager wire a proc's output into the shared stream.
type sinkSetter interface {
	setSink(func(string))
}

// NewManager builds a manager. grace is how long StopAll waits between
// SIGTERM and kill.
func NewManager(grace time.Duration) *Manager {
	if grace <= 0 {
		grace = 3 * time.Second
	}
	return &Manager{
		grace: grace,
		log:   logging.Get(logging.CategoryLauncher),
		procs: make(map[string]Proc),
		lines: make(chan Line, 256),
		exits: make(chan Exit, 16),
		g:     &errgroup.Group{},
	}
}

// Lines is the merged output stream of all components.
func (m *Manager) Lines() <-chan Line { return m.lines }

// Exits reports components as they terminate.
func (m *Manager) Exits() <-chan Exit { return m.exits }

// Start launches a component and begins monitoring its exit.
func (m *Manager) Start(ctx context.Context, p Proc) error {
	name := p.Name()
	if s, ok := p.(sinkSetter); ok {
		s.setSink(func(text string) {
			select {
			case m.lines <- Line{Component: name, Text: text}:
			default:
				// A stalled console reader must not block an agent.
			}
		})
	}

	if err := p.Start(ctx); err != nil {
		m.log.Error("start %s: %v", name, err)
		return err
	}

	m.mu.Lock()
	m.procs[name] = p
	m.mu.Unlock()
	m.log.Info("%s started", name)

	m.g.Go(func() error {
		err := p.Wait()
		m.mu.Lock()
		delete(m.procs, name)
		stopped := m.stopped
		m.mu.Unlock()

		if err != nil && !stopped {
			m.log.Error("%s exited: %v", name, err)
		} else {
			m.log.Info("%s exited", name)
		}
		select {
		case m.exits <- Exit{Component: name, Err: err}:
		default:
		}
		return nil
	})
	return nil
}

// Running returns the names of components still alive.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.procs))
	for name := range m.procs {
		names = append(names, name)
	}
	return names
}

// Wait blocks until every started component has exited, then closes the
// line and exit streams.
func (m *Manager) Wait() {
	m.g.Wait()
	close(m.lines)
	close(m.exits)
}

// StopAll terminates all running components, SIGTERM first and a kill after
// the grace period. Exits triggered by StopAll are not logged as errors.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopped = true
	procs := make([]Proc, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p Proc) {
			defer wg.Done()
			m.log.Info("stopping %s", p.Name())
			p.Stop(m.grace)
		}(p)
	}
	wg.Wait()
}
