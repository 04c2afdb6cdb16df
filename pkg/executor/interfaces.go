package executor

import (
	"context"
	"time"
)

// Session is an open interactive shell on one device. Commands are sent one
// at a time; Send blocks until the device prompt returns or the read timeout
// of the profile expires.
type Session interface {
	Send(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens authenticated sessions. Failures are reported as *ConnectError.
type Dialer interface {
	Open(ctx context.Context, address string, creds Credentials, profile Profile) (Session, error)
}

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// Profile is the fixed connection profile applied to every device.
type Profile struct {
	Port           int
	ConnectTimeout time.Duration
	// ReadTimeout bounds a single Send, slow vendor CLIs need a generous value.
	ReadTimeout time.Duration
	// LoopDelay is the polling interval of the shell reader, multiplied by DelayFactor.
	LoopDelay   time.Duration
	DelayFactor float64
	// FastCLI skips the initial settle delay after each command.
	FastCLI bool
	// MaxSendFailures consecutive failed commands open the session breaker.
	MaxSendFailures uint32
}

func DefaultProfile() Profile {
	return Profile{
		Port:            22,
		ConnectTimeout:  30 * time.Second,
		ReadTimeout:     100 * time.Second,
		LoopDelay:       200 * time.Millisecond,
		DelayFactor:     2,
		FastCLI:         false,
		MaxSendFailures: 3,
	}
}

func (p Profile) pollInterval() time.Duration {
	d := time.Duration(float64(p.LoopDelay) * p.DelayFactor)
	if d <= 0 {
		return p.LoopDelay
	}
	return d
}
