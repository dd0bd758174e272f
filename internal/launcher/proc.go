package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"airwave/internal/remote"
)

// Proc is one supervised component: the dashboard server, a Pi agent over
// SSH, or an agent run locally with --local.
type Proc interface {
	Name() string
	Start(ctx context.Context) error
	// Wait blocks until the process exits.
	Wait() error
	// Stop asks the process to terminate, escalating to a kill after the
	// grace period.
	Stop(grace time.Duration)
}

// localProc runs a command on this machine with stdout and stderr merged
// into the manager's line sink.
type localProc struct {
	name string
	dir  string
	env  []string
	args []string
	sink func(string)

	mu   sync.Mutex
	cmd  *exec.Cmd
	pw   *io.PipeWriter
	done chan error
	scan sync.WaitGroup
}

// NewLocal builds a local process. env entries are KEY=value pairs appended
// to the inherited environment.
func NewLocal(name string, dir string, env []string, args ...string) Proc {
	return &localProc{name: name, dir: dir, env: env, args: args, sink: func(string) {}}
}

func (p *localProc) Name() string { return p.name }

func (p *localProc) setSink(fn func(string)) { p.sink = fn }

func (p *localProc) Start(ctx context.Context) error {
	if len(p.args) == 0 {
		return fmt.Errorf("%s: empty command", p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.Dir = p.dir
	if len(p.env) > 0 {
		cmd.Env = append(cmd.Environ(), p.env...)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start %s: %w", p.name, err)
	}

	p.cmd = cmd
	p.pw = pw
	p.done = make(chan error, 1)

	p.scan.Add(1)
	go func() {
		defer p.scan.Done()
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			p.sink(scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()
		pw.Close()
		p.done <- err
	}()
	return nil
}

func (p *localProc) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return fmt.Errorf("%s: not started", p.name)
	}
	err := <-done
	p.scan.Wait()
	return err
}

func (p *localProc) Stop(grace time.Duration) {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	cmd.Process.Signal(syscall.SIGTERM)
	select {
	case err := <-done:
		// Wait consumers still need the result.
		done <- err
	case <-time.After(grace):
		cmd.Process.Kill()
	}
}

// sshProc runs an agent script on a Pi through remote.Client.
type sshProc struct {
	name    string
	client  *remote.Client
	command string
	env     map[string]string
	sink    func(string)

	mu   sync.Mutex
	proc *remote.Process
	pw   *io.PipeWriter
	scan sync.WaitGroup
}

// NewSSH builds a remote process. The env map rides along as an inline
// prefix on the remote command line.
func NewSSH(name string, client *remote.Client, command string, env map[string]string) Proc {
	return &sshProc{name: name, client: client, command: command, env: env, sink: func(string) {}}
}

func (p *sshProc) Name() string { return p.name }

func (p *sshProc) setSink(fn func(string)) { p.sink = fn }

func (p *sshProc) Start(ctx context.Context) error {
	pr, pw := io.Pipe()

	proc, err := p.client.Start(ctx, p.command, p.env, pw, pw)
	if err != nil {
		pw.Close()
		return fmt.Errorf("start %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.proc = proc
	p.pw = pw
	p.mu.Unlock()

	p.scan.Add(1)
	go func() {
		defer p.scan.Done()
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			p.sink(scanner.Text())
		}
	}()
	return nil
}

func (p *sshProc) Wait() error {
	p.mu.Lock()
	proc := p.proc
	pw := p.pw
	p.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("%s: not started", p.name)
	}
	err := proc.Wait(context.Background())
	pw.Close()
	p.scan.Wait()
	return err
}

func (p *sshProc) Stop(time.Duration) {
	p.mu.Lock()
	proc := p.proc
	pw := p.pw
	p.mu.Unlock()
	if proc == nil {
		return
	}
	// Tearing down the session kills the remote agent; there is no second
	// escalation step over SSH.
	proc.Kill()
	pw.Close()
}
