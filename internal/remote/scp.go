package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Copy uploads a local file to remotePath using the scp sink protocol, the
// same wire exchange `scp file user@host:path` performs. The remote end
// only needs the stock scp binary.
func (c *Client) Copy(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: directories not supported", localPath)
	}

	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	c.log.Debug("scp %s -> %s:%s (%d bytes)", localPath, c.target.Host, remotePath, info.Size())

	if err := session.Start("scp -t " + shellQuote(remotePath)); err != nil {
		return fmt.Errorf("start scp: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.sendFile(stdin, stdout, f, info.Size(), filepath.Base(localPath)) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		<-done
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("scp %s: %w", localPath, err)
	}

	if err := session.Wait(); err != nil {
		return fmt.Errorf("scp %s: %w", localPath, err)
	}
	return nil
}

// sendFile drives the scp source side: header, contents, trailing NUL, with
// an ack read after each step.
func (c *Client) sendFile(stdin io.WriteCloser, stdout io.Reader, f io.Reader, size int64, name string) error {
	defer stdin.Close()

	if err := readAck(stdout); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(stdin, "C0644 %d %s\n", size, name); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := readAck(stdout); err != nil {
		return err
	}
	if _, err := io.Copy(stdin, f); err != nil {
		return fmt.Errorf("write contents: %w", err)
	}
	if _, err := stdin.Write([]byte{0}); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return readAck(stdout)
}

// readAck consumes one scp acknowledgement byte. A 1 or 2 is followed by an
// error message line from the remote scp.
func readAck(r io.Reader) error {
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if code[0] == 0 {
		return nil
	}

	msg := make([]byte, 0, 128)
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil || b[0] == '\n' {
			break
		}
		msg = append(msg, b[0])
	}
	return fmt.Errorf("remote scp error %d: %s", code[0], msg)
}
