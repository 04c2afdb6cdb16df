package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
)

var (
	promptPattern = regexp.MustCompile(`^\S+[>#\]$%]\s*$`)
	pagerPattern  = regexp.MustCompile(`(?i)-{2,}\s*more\s*-{2,}`)

	errNotReady = errors.New("prompt not seen yet")
)

// shellBuffer collects everything the remote shell prints.
type shellBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *shellBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *shellBuffer) markClosed() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *shellBuffer) snapshot() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String(), b.closed
}

func (b *shellBuffer) consume() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

// cutPager removes a trailing pager marker and reports whether one was found.
func (b *shellBuffer) cutPager() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := b.buf.String()
	locs := pagerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return false
	}
	last := locs[len(locs)-1]
	if strings.TrimSpace(text[last[1]:]) != "" {
		return false
	}
	b.buf.Reset()
	b.buf.WriteString(text[:last[0]])
	return true
}

type shellSession struct {
	client    *ssh.Client
	session   *ssh.Session
	stdin     io.WriteCloser
	out       *shellBuffer
	prompt    string
	address   string
	profile   Profile
	breaker   *gobreaker.CircuitBreaker
	logger    lg.Logger
	closeOnce sync.Once
}

func startShell(ctx context.Context, client *ssh.Client, address string, profile Profile, logger lg.Logger) (*shellSession, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,     // disable echoing
		ssh.TTY_OP_ISPEED: 14400, // input speed = 14.4kbaud
		ssh.TTY_OP_OSPEED: 14400, // output speed = 14.4kbaud
	}
	// wide terminal keeps long table rows on one line
	if err := session.RequestPty("vt100", 200, 511, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request for pseudo terminal failed: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	s := &shellSession{
		client:  client,
		session: session,
		stdin:   stdin,
		out:     &shellBuffer{},
		address: address,
		profile: profile,
		breaker: newSendBreaker(address, profile),
		logger:  logger,
	}
	go func() {
		_, _ = io.Copy(s.out, stdout)
		s.out.markClosed()
	}()

	banner, err := s.readUntil(ctx, func(text string) bool {
		return promptPattern.MatchString(lastLine(text))
	})
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("waiting for initial prompt: %w", err)
	}
	s.prompt = strings.TrimSpace(lastLine(banner))
	return s, nil
}

// Send runs one command and returns its output without the echoed command
// line and the trailing prompt.
func (s *shellSession) Send(ctx context.Context, command string) (string, error) {
	res, err := s.breaker.Execute(func() (any, error) {
		return s.send(ctx, command)
	})
	if err != nil {
		return "", fmt.Errorf("send %q: %w", command, err)
	}
	return res.(string), nil
}

func (s *shellSession) send(ctx context.Context, command string) (string, error) {
	if stale := s.out.consume(); stale != "" {
		s.logger.Debug("Discarding unread shell output", lg.Int("bytes", len(stale)))
	}
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}
	if !s.profile.FastCLI {
		if err := pause(ctx, s.profile.pollInterval()); err != nil {
			return "", err
		}
	}
	raw, err := s.readUntil(ctx, s.atPrompt)
	if err != nil {
		return "", err
	}
	return stripEcho(normalize(raw), command, s.prompt), nil
}

func (s *shellSession) atPrompt(text string) bool {
	return strings.HasSuffix(strings.TrimRight(normalize(text), " \n"), s.prompt)
}

// readUntil polls the shell buffer until done accepts it, answering pagers on
// the way. The wait is bounded by the profile read timeout.
func (s *shellSession) readUntil(ctx context.Context, done func(string) bool) (string, error) {
	if s.profile.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.profile.ReadTimeout)
		defer cancel()
	}

	var result string
	operation := func() error {
		if s.out.cutPager() {
			if _, err := io.WriteString(s.stdin, " "); err != nil {
				return backoff.Permanent(fmt.Errorf("answer pager: %w", err))
			}
			return errNotReady
		}
		text, closed := s.out.snapshot()
		if done(text) {
			result = s.out.consume()
			return nil
		}
		if closed {
			return backoff.Permanent(ErrSessionClosed)
		}
		return errNotReady
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(s.profile.pollInterval()), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errNotReady) {
			return "", fmt.Errorf("%w after %s", ErrReadTimeout, s.profile.ReadTimeout)
		}
		return "", err
	}
	return result, nil
}

func (s *shellSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_, _ = io.WriteString(s.stdin, "exit\n")
		_ = s.session.Close()
		err = s.client.Close()
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			err = nil
		}
	})
	return err
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "")
}

func lastLine(text string) string {
	text = normalize(text)
	if i := strings.LastIndex(text, "\n"); i >= 0 {
		return text[i+1:]
	}
	return text
}

func stripEcho(text, command, prompt string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.Contains(lines[0], strings.TrimSpace(command)) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && strings.HasSuffix(strings.TrimSpace(lines[n-1]), prompt) {
		lines = lines[:n-1]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n ")
}
