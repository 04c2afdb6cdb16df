package executor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
)

var _ Dialer = (*SSHDialer)(nil)

// SSHDialer opens interactive PTY shells on network devices.
type SSHDialer struct {
	logger lg.Logger
	// HostKeyCallback defaults to accepting any key, devices are addressed by IP
	// from an operator supplied list.
	HostKeyCallback ssh.HostKeyCallback
}

func NewSSHDialer(logger lg.Logger) *SSHDialer {
	if logger == nil {
		logger = lg.Discard
	}
	return &SSHDialer{logger: logger, HostKeyCallback: ssh.InsecureIgnoreHostKey()}
}

func clientConfig(creds Credentials, profile Profile, hostKey ssh.HostKeyCallback) *ssh.ClientConfig {
	password := creds.Password
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// many network OSes only offer keyboard-interactive
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         profile.ConnectTimeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}
}

// hostPort appends the profile port unless address already carries one.
func hostPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// Open dials the device, requests a PTY, starts the shell and waits for the
// first prompt.
func (d *SSHDialer) Open(ctx context.Context, address string, creds Credentials, profile Profile) (Session, error) {
	target := hostPort(address, profile.Port)
	logger := d.logger.With(lg.String("address", address))

	dialCtx := ctx
	if profile.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, profile.ConnectTimeout)
		defer cancel()
	}

	var nd net.Dialer
	conn, err := nd.DialContext(dialCtx, "tcp", target)
	if err != nil {
		return nil, newConnectError(address, fmt.Errorf("failed to dial: %w", err))
	}
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target, clientConfig(creds, profile, d.HostKeyCallback))
	if err != nil {
		conn.Close()
		return nil, newConnectError(address, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sess, err := startShell(ctx, client, address, profile, logger)
	if err != nil {
		client.Close()
		return nil, newConnectError(address, err)
	}
	logger.Debug("Shell session opened", lg.String("prompt", sess.prompt))
	return sess, nil
}

func newSendBreaker(address string, profile Profile) *gobreaker.CircuitBreaker {
	maxFailures := profile.MaxSendFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ssh-send:" + address,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     profile.ReadTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
}
