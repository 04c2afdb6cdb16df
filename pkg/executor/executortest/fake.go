// Package executortest provides scripted in-memory sessions for tests of code
// built on executor.Dialer.
package executortest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andrej220/netsurvey/pkg/executor"
)

// Host scripts one address: the credentials it accepts and its replies.
// A command without a reply gets Default. Commands listed in Fail return an
// error instead.
type Host struct {
	Accept    executor.Credentials
	Replies   map[string]string
	Default   string
	Fail      map[string]error
	OpenError error
}

// Dialer hands out Sessions for scripted hosts and records every call.
type Dialer struct {
	mu     sync.Mutex
	hosts  map[string]*Host
	opens  []Open
	sent   map[string][]string
	active int
}

type Open struct {
	Address     string
	Credentials executor.Credentials
}

func NewDialer() *Dialer {
	return &Dialer{hosts: make(map[string]*Host), sent: make(map[string][]string)}
}

func (d *Dialer) Add(address string, h *Host) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hosts[address] = h
	return d
}

func (d *Dialer) Open(ctx context.Context, address string, creds executor.Credentials, _ executor.Profile) (executor.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, Open{Address: address, Credentials: creds})
	if err := ctx.Err(); err != nil {
		return nil, &executor.ConnectError{Kind: executor.KindTimeout, Address: address, Err: err}
	}
	h, ok := d.hosts[address]
	if !ok {
		return nil, &executor.ConnectError{Kind: executor.KindUnreachable, Address: address, Err: errors.New("no route to host")}
	}
	if h.OpenError != nil {
		return nil, h.OpenError
	}
	if creds != h.Accept {
		return nil, &executor.ConnectError{Kind: executor.KindAuthFailure, Address: address, Err: errors.New("ssh: unable to authenticate")}
	}
	d.active++
	return &Session{dialer: d, address: address, host: h}, nil
}

// Opens returns every Open call in order.
func (d *Dialer) Opens() []Open {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Open(nil), d.opens...)
}

// Sent returns the commands sent to address across all its sessions.
func (d *Dialer) Sent(address string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent[address]...)
}

// Active is the number of sessions opened and not yet closed.
func (d *Dialer) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

type Session struct {
	dialer  *Dialer
	address string
	host    *Host
	closed  bool
}

func (s *Session) Send(ctx context.Context, command string) (string, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	if s.closed {
		return "", executor.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.dialer.sent[s.address] = append(s.dialer.sent[s.address], command)
	if err, ok := s.host.Fail[command]; ok {
		return "", fmt.Errorf("send %q: %w", command, err)
	}
	if out, ok := s.host.Replies[command]; ok {
		return out, nil
	}
	return s.host.Default, nil
}

func (s *Session) Close() error {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.dialer.active--
	}
	return nil
}
