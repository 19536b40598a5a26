// Package gitio is the read-only git surface the core consumes:
// rev-parse, show, remote get-url. Invocations carry a default 30 s
// timeout; a timed-out call is treated as failed, never retried.
package gitio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every git subprocess.
const DefaultTimeout = 30 * time.Second

// Runner executes git with the given args inside dir. Injectable so tests
// can fake repository state without a working tree.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner shells out to the git binary.
type ExecRunner struct {
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

// Client wraps a Runner with the operations the core needs.
type Client struct {
	Runner Runner
}

// NewClient builds a Client over the real git binary.
func NewClient() *Client {
	return &Client{Runner: ExecRunner{}}
}

// HeadSHA resolves HEAD in the repository at dir.
func (c *Client) HeadSHA(ctx context.Context, dir string) (string, error) {
	out, err := c.Runner.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadCommitTime returns the committer time of HEAD.
func (c *Client) HeadCommitTime(ctx context.Context, dir string) (time.Time, error) {
	out, err := c.Runner.Run(ctx, dir, "show", "-s", "--format=%cI", "HEAD")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(out))
}

// ShowFile returns the full contents of path at the given ref.
func (c *Client) ShowFile(ctx context.Context, dir, ref, path string) (string, error) {
	return c.Runner.Run(ctx, dir, "show", ref+":"+path)
}

// RemoteURL returns the origin remote URL.
func (c *Client) RemoteURL(ctx context.Context, dir string) (string, error) {
	out, err := c.Runner.Run(ctx, dir, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
