// Package transport opens authenticated SSH sessions and retrieves the
// remote sshd configuration. It is read-only: the only remote operations
// are commands that dump configuration text to stdout.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultPort is the standard SSH port used when the descriptor
	// leaves it unset.
	DefaultPort = 22

	// DefaultUser is the login user used when the descriptor leaves it unset.
	DefaultUser = "root"

	// DefaultConnectTimeout bounds the TCP dial and SSH handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCommandTimeout bounds a single remote command execution.
	DefaultCommandTimeout = 15 * time.Second
)

// dumpConfigCommand prints the effective sshd configuration, includes
// resolved. configFileFallback covers hosts where the login user may not
// run sshd in test mode.
const (
	dumpConfigCommand  = "sshd -T"
	configFileFallback = "cat /etc/ssh/sshd_config"
)

type credentialKind int

const (
	credentialNone credentialKind = iota
	credentialPassword
	credentialPrivateKey
)

// Credential holds exactly one authentication secret: a password or a path
// to a private key file. The zero value is invalid, which keeps
// "both supplied" and "neither supplied" unrepresentable at the type level.
type Credential struct {
	kind   credentialKind
	secret string
}

// PasswordAuth builds a password credential.
func PasswordAuth(password string) Credential {
	return Credential{kind: credentialPassword, secret: password}
}

// PrivateKeyAuth builds a credential from a private key file path.
func PrivateKeyAuth(path string) Credential {
	return Credential{kind: credentialPrivateKey, secret: path}
}

// IsZero reports whether no credential was supplied.
func (c Credential) IsZero() bool { return c.kind == credentialNone }

// String never exposes the secret.
func (c Credential) String() string {
	switch c.kind {
	case credentialPassword:
		return "password"
	case credentialPrivateKey:
		return "private-key"
	}
	return "none"
}

func (c Credential) authMethod() (ssh.AuthMethod, error) {
	switch c.kind {
	case credentialPassword:
		return ssh.Password(c.secret), nil
	case credentialPrivateKey:
		raw, err := os.ReadFile(c.secret)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return nil, errors.New("no credential supplied")
}

// Descriptor identifies one audit target and how to authenticate to it.
// It is caller-supplied input and never persisted.
type Descriptor struct {
	Host       string
	Port       int
	User       string
	Credential Credential

	// KnownHostsFile enables strict host key verification when set.
	// When empty the host key is not verified, matching the behavior of
	// one-shot audit tooling against freshly provisioned hosts.
	KnownHostsFile string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// withDefaults fills unset fields; the original Descriptor is not modified.
func (d Descriptor) withDefaults() Descriptor {
	if d.Port == 0 {
		d.Port = DefaultPort
	}
	if d.User == "" {
		d.User = DefaultUser
	}
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = DefaultConnectTimeout
	}
	if d.CommandTimeout <= 0 {
		d.CommandTimeout = DefaultCommandTimeout
	}
	return d
}

// Validate checks the descriptor before any network activity.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Host) == "" {
		return errors.New("host is required")
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("port %d out of range", d.Port)
	}
	if d.Credential.IsZero() {
		return errors.New("a password or private key credential is required")
	}
	return nil
}

// Addr returns the dial address with defaults applied.
func (d Descriptor) Addr() string {
	d = d.withDefaults()
	return net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port))
}

// Session is one authenticated connection to a target host. It is created
// per audit invocation and must be closed by the caller; Close is
// idempotent.
type Session struct {
	client         *ssh.Client
	commandTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Open establishes an authenticated SSH connection per the descriptor.
// The dial and handshake are bounded by the descriptor's connect timeout
// and by ctx, whichever ends first.
func Open(ctx context.Context, d Descriptor) (*Session, error) {
	if err := d.Validate(); err != nil {
		return nil, &Error{Kind: KindConnection, Op: "open", Err: err}
	}
	d = d.withDefaults()

	auth, err := d.Credential.authMethod()
	if err != nil {
		return nil, &Error{Kind: KindAuthentication, Op: "open", Err: err}
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() // #nosec G106 -- one-shot audit tooling; strict checking opt-in via KnownHostsFile
	if d.KnownHostsFile != "" {
		cb, err := knownhosts.New(d.KnownHostsFile)
		if err != nil {
			return nil, &Error{Kind: KindConnection, Op: "open", Err: fmt.Errorf("loading known hosts: %w", err)}
		}
		hostKeyCallback = cb
	}

	cfg := &ssh.ClientConfig{
		User:            d.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: d.ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, d.ConnectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", d.Addr())
	if err != nil {
		return nil, classifyDialError(err)
	}

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, d.Addr(), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, classifyHandshakeError(err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Session{
		client:         ssh.NewClient(sshConn, chans, reqs),
		commandTimeout: d.CommandTimeout,
	}, nil
}

// FetchConfig dumps the effective sshd configuration as plain text. It
// first asks sshd itself (`sshd -T`, which resolves Include directives)
// and falls back to reading the main configuration file when test mode is
// unavailable to the login user.
func (s *Session) FetchConfig(ctx context.Context) (string, error) {
	out, err := s.run(ctx, dumpConfigCommand)
	if err == nil {
		return out, nil
	}
	if KindOf(err) == KindTimeout {
		return "", err
	}

	out, fallbackErr := s.run(ctx, configFileFallback)
	if fallbackErr == nil {
		return out, nil
	}
	return "", &Error{
		Kind: KindRemoteCommand,
		Op:   "fetch-config",
		Err:  fmt.Errorf("%s failed (%v); %s failed: %w", dumpConfigCommand, err, configFileFallback, fallbackErr),
	}
}

// run executes one remote command, bounded by the command timeout and ctx.
func (s *Session) run(ctx context.Context, command string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", &Error{Kind: KindConnection, Op: "exec", Err: err}
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	type execResult struct {
		out []byte
		err error
	}
	done := make(chan execResult, 1)
	go func() {
		out, err := sess.Output(command)
		done <- execResult{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		// Tearing down the session unblocks the Output goroutine.
		_ = sess.Close()
		return "", &Error{Kind: KindTimeout, Op: "exec", Err: fmt.Errorf("%q: %w", command, ctx.Err())}
	case res := <-done:
		if res.err != nil {
			return "", &Error{Kind: KindRemoteCommand, Op: "exec", Err: fmt.Errorf("%q: %w", command, res.err)}
		}
		return string(res.out), nil
	}
}

// Close tears down the connection. Safe to call multiple times and on a
// session whose open already failed.
func (s *Session) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func classifyDialError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Op: "dial", Err: err}
	}
	return &Error{Kind: KindConnection, Op: "dial", Err: err}
}

func classifyHandshakeError(err error) *Error {
	var keyErr *knownhosts.KeyError
	msg := err.Error()
	switch {
	case errors.As(err, &keyErr), strings.Contains(msg, "knownhosts"), strings.Contains(msg, "host key"):
		return &Error{Kind: KindAuthentication, Op: "handshake", Err: fmt.Errorf("host key verification failed: %w", err)}
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods"):
		return &Error{Kind: KindAuthentication, Op: "handshake", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: "handshake", Err: err}
	}
	return &Error{Kind: KindConnection, Op: "handshake", Err: err}
}
