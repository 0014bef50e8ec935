package sshsync

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Configuration
// =============================================================================

// Config describes the SSH target.
type Config struct {
	Host           string        // target as "user@host" or bare host
	Port           int           // default 22
	User           string        // login user when Host carries none; default root
	PrivateKey     []byte        // PEM-encoded private key
	CommandTimeout time.Duration // default 30s
	ConnectTimeout time.Duration // default 10s
	UploadTimeout  time.Duration // default 60s
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Port:           22,
		User:           "root",
		CommandTimeout: 30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		UploadTimeout:  60 * time.Second,
	}
}

// =============================================================================
// Client
// =============================================================================

// Client executes commands and uploads files on one remote host. It keeps a
// single SSH connection alive across calls and reconnects when it drops.
type Client struct {
	user           string
	host           string
	port           int
	signer         ssh.Signer
	commandTimeout time.Duration
	connectTimeout time.Duration
	uploadTimeout  time.Duration

	mu   sync.Mutex // protects conn
	conn *ssh.Client
}

// NewClient creates a client for cfg.Host. The private key must be the
// decrypted PEM text.
func NewClient(cfg Config) (*Client, error) {
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, NewSyncError("NewClient", cfg.Host, "failed to parse ssh private key", ErrInvalidKey)
	}

	user, host := SplitHost(cfg.Host)
	if host == "" {
		return nil, NewSyncError("NewClient", "", "ssh host is required", ErrConnectionFailed)
	}
	if user == "" {
		user = cfg.User
	}
	if user == "" {
		user = "root"
	}

	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = 60 * time.Second
	}

	return &Client{
		user:           user,
		host:           host,
		port:           cfg.Port,
		signer:         signer,
		commandTimeout: cfg.CommandTimeout,
		connectTimeout: cfg.ConnectTimeout,
		uploadTimeout:  cfg.UploadTimeout,
	}, nil
}

// Host returns the hostname the client targets, without the user prefix.
func (c *Client) Host() string {
	return c.host
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (c *Client) connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		// Check if the connection is still alive
		_, _, err := c.conn.SendRequest("keepalive@shipway", true, nil)
		if err == nil {
			return nil
		}
		// Connection dead, reconnect
		c.conn.Close()
		c.conn = nil
	}

	config := &ssh.ClientConfig{
		User:            c.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: store and verify host keys
		Timeout:         c.connectTimeout,
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		msg := fmt.Sprintf("ssh dial %s failed: %v", addr, err)
		if hint := hintFor(err.Error()); hint != "" {
			msg += ". " + hint
		}
		return NewSyncError("connect", c.host, msg, ErrConnectionFailed)
	}

	c.conn = conn
	return nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// =============================================================================
// Remote Operations
// =============================================================================

// Check verifies SSH connectivity by running a trivial remote command.
func (c *Client) Check(ctx context.Context) error {
	out, err := c.Run(ctx, "echo SSH_OK")
	if err != nil {
		return fmt.Errorf("ssh connectivity check: %w", err)
	}
	if !strings.Contains(out, "SSH_OK") {
		return NewSyncError("Check", c.host, "unexpected connectivity check output", ErrConnectionFailed)
	}
	return nil
}

// Run executes a command on the remote host and returns its stdout. Failures
// carry the remote stderr and, when recognizable, a hint about the usual
// cause.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	if err := c.connect(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	session, err := c.conn.NewSession()
	c.mu.Unlock()
	if err != nil {
		return "", NewSyncError("Run", c.host, "failed to create ssh session", ErrCommandFailed)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.commandTimeout):
		return "", NewSyncError("Run", c.host,
			fmt.Sprintf("command timed out after %v", c.commandTimeout), ErrCommandFailed)
	case err := <-done:
		if err != nil {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = strings.TrimSpace(stdout.String())
			}
			msg := "command failed"
			if detail != "" {
				msg += ": " + detail
			}
			if hint := hintFor(detail); hint != "" {
				msg += ". " + hint
			}
			return stdout.String(), NewSyncError("Run", c.host, msg, ErrCommandFailed)
		}
	}

	return stdout.String(), nil
}

// Upload writes content to remotePath, creating parent directories. Uploaded
// files are owner-only because they may carry secrets.
func (c *Client) Upload(ctx context.Context, content []byte, remotePath string) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	session, err := c.conn.NewSession()
	c.mu.Unlock()
	if err != nil {
		return NewSyncError("Upload", c.host, "failed to create ssh session", ErrUploadFailed)
	}
	defer session.Close()

	dir := path.Dir(remotePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && chmod 600 %s",
		Quote(dir), Quote(remotePath), Quote(remotePath))
	session.Stdin = bytes.NewReader(content)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.uploadTimeout):
		return NewSyncError("Upload", c.host,
			fmt.Sprintf("upload of %s timed out after %v", remotePath, c.uploadTimeout), ErrUploadFailed)
	case err := <-done:
		if err != nil {
			return NewSyncError("Upload", c.host,
				fmt.Sprintf("failed to upload %d bytes to %s", len(content), remotePath), ErrUploadFailed)
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// SplitHost separates an optional user prefix from a host, so "deploy@web-1"
// yields ("deploy", "web-1") and "web-1" yields ("", "web-1").
func SplitHost(host string) (user, hostname string) {
	if at := strings.Index(host, "@"); at >= 0 {
		return host[:at], host[at+1:]
	}
	return "", host
}

// Quote wraps s in single quotes for safe interpolation into a remote shell
// command.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// hintFor maps common SSH failure text to the usual fix. Returns "" when the
// failure is not one of the recognizable cases.
func hintFor(errText string) string {
	lowered := strings.ToLower(errText)
	switch {
	case strings.Contains(lowered, "no route to host"):
		return "No route to host; check VPN or LAN reachability and the configured host"
	case strings.Contains(lowered, "connection timed out"), strings.Contains(lowered, "i/o timeout"):
		return "SSH timed out; verify the server is online and the SSH port is reachable"
	case strings.Contains(lowered, "connection refused"):
		return "SSH connection refused; confirm sshd is running and the port is open"
	case strings.Contains(lowered, "permission denied"):
		return "SSH authentication failed; verify key access for the configured user"
	case strings.Contains(lowered, "could not resolve hostname"), strings.Contains(lowered, "no such host"):
		return "Host resolution failed; check the host for typos or DNS issues"
	}
	return ""
}
