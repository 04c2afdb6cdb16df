package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	ErrReadTimeout   = errors.New("timed out waiting for device prompt")
	ErrSessionClosed = errors.New("session closed by remote device")
)

// Kind classifies why a session could not be opened.
type Kind int

const (
	KindOther Kind = iota
	KindAuthFailure
	KindTimeout
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailure:
		return "auth_failure"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	default:
		return "other"
	}
}

type ConnectError struct {
	Kind    Kind
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Kind == KindAuthFailure {
		return fmt.Sprintf("authentication failed for %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("failed to connect to %s (%s): %v", e.Address, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func newConnectError(address string, err error) *ConnectError {
	return &ConnectError{Kind: classify(err), Address: address, Err: err}
}

// KindOf returns the Kind carried by err, or KindOther.
func KindOf(err error) Kind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindOther
}

func classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	// x/crypto/ssh does not export a typed auth error
	if strings.Contains(err.Error(), "unable to authenticate") {
		return KindAuthFailure
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrReadTimeout) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return KindUnreachable
	}
	return KindOther
}
