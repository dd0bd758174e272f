// Package remote runs commands and copies files on the Raspberry Pis over
// SSH. Password auth covers the stock raspbian setup; key auth is used when
// no password is configured.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"airwave/internal/logging"
)

// DefaultPort is the SSH port used when Target.Port is zero.
const DefaultPort = 22

// Target identifies one Pi.
type Target struct {
	Host           string
	Port           int
	User           string
	Password       string // empty means key-based auth
	ConnectTimeout time.Duration
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, fmt.Sprintf("%d", port))
}

// ExitError reports a remote command that ran but exited non-zero. SSH
// itself reserves 255 for transport failures, so callers can tell a broken
// connection from a failing script.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Code == 255 {
		return fmt.Sprintf("ssh transport failure (exit 255): %s", strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("remote command exited %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

// Probe reports whether a TCP endpoint is reachable within the timeout.
// Used for the setup wizard's broker and SSH reachability checks.
func Probe(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Client executes commands on one target. Each operation opens a fresh
// session on a shared connection.
type Client struct {
	target Target
	log    *logging.Logger

	// dial is swapped in tests to point at an in-process server.
	dial func(ctx context.Context) (net.Conn, error)
}

// New builds a client for the target. No connection is made until the first
// operation.
func New(t Target) *Client {
	c := &Client{
		target: t,
		log:    logging.Get(logging.CategorySSH),
	}
	c.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: c.connectTimeout()}
		return d.DialContext(ctx, "tcp", c.target.addr())
	}
	return c
}

func (c *Client) connectTimeout() time.Duration {
	if c.target.ConnectTimeout > 0 {
		return c.target.ConnectTimeout
	}
	return 5 * time.Second
}

func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	auth, err := c.authMethods()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            c.target.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.connectTimeout(),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.target.addr(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.target.addr(), cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", c.target.addr(), err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// authMethods prefers the configured password, falling back to the default
// key files in ~/.ssh.
func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	if c.target.Password != "" {
		return []ssh.AuthMethod{ssh.Password(c.target.Password)}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("no password configured and no home directory for keys: %w", err)
	}

	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			c.log.Warn("unreadable key %s: %v", name, err)
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no password configured and no usable key in ~/.ssh")
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
}

// Run executes a command and returns its combined output. Env variables are
// passed as an inline prefix because stock sshd rejects Setenv for
// arbitrary names.
func (c *Client) Run(ctx context.Context, command string, env map[string]string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	full := commandWithEnv(command, env)
	c.log.Debug("run on %s: %s", c.target.Host, full)

	done := make(chan error, 1)
	go func() { done <- session.Run(full) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		<-done
		return out.String(), ctx.Err()
	}

	if err != nil {
		if ee, ok := err.(*ssh.ExitError); ok {
			return out.String(), &ExitError{Code: ee.ExitStatus(), Stderr: out.String()}
		}
		return out.String(), fmt.Errorf("run %q: %w", command, err)
	}
	return out.String(), nil
}

// Process is a long-running remote command started with Start.
type Process struct {
	client  *ssh.Client
	session *ssh.Session
	done    chan error
}

// Start launches a command and streams its output to the writers. The
// command keeps running until Wait returns or Kill is called.
func (c *Client) Start(ctx context.Context, command string, env map[string]string, stdout, stderr io.Writer) (*Process, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("new session: %w", err)
	}
	session.Stdout = stdout
	session.Stderr = stderr

	full := commandWithEnv(command, env)
	c.log.Debug("start on %s: %s", c.target.Host, full)

	if err := session.Start(full); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	p := &Process{client: client, session: session, done: make(chan error, 1)}
	go func() { p.done <- session.Wait() }()
	return p, nil
}

// Wait blocks until the remote command exits or ctx is cancelled. On
// cancellation the session is torn down, which kills the remote process on
// any reasonably modern sshd.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case err := <-p.done:
		p.close()
		if err == nil {
			return nil
		}
		if ee, ok := err.(*ssh.ExitError); ok {
			return &ExitError{Code: ee.ExitStatus()}
		}
		return err
	case <-ctx.Done():
		p.Kill()
		<-p.done
		return ctx.Err()
	}
}

// Kill tears down the session and connection.
func (p *Process) Kill() {
	p.session.Signal(ssh.SIGTERM)
	p.close()
}

func (p *Process) close() {
	p.session.Close()
	p.client.Close()
}

// commandWithEnv prefixes the command with KEY=value assignments in sorted
// order so invocations are reproducible.
func commandWithEnv(command string, env map[string]string) string {
	if len(env) == 0 {
		return command
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(shellQuote(env[k]))
		b.WriteString(" ")
	}
	b.WriteString(command)
	return b.String()
}

// shellQuote single-quotes a value for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
