// Package device drives one network device through its session lifecycle:
// connect, detect the vendor, run commands, disconnect.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/executor"
)

var (
	ErrNoSession    = errors.New("no active connection to execute commands")
	ErrBlankCommand = errors.New("blank command")
)

type Device struct {
	Address     string
	Credentials executor.Credentials

	vendor  catalog.Vendor
	session executor.Session
	dialer  executor.Dialer
	profile executor.Profile
	logger  lg.Logger
}

func New(address string, creds executor.Credentials, dialer executor.Dialer, profile executor.Profile, logger lg.Logger) *Device {
	if logger == nil {
		logger = lg.Discard
	}
	return &Device{
		Address:     address,
		Credentials: creds,
		dialer:      dialer,
		profile:     profile,
		logger:      logger.With(lg.String("address", address)),
	}
}

// Vendor is empty until DetectVendor has run.
func (d *Device) Vendor() catalog.Vendor { return d.vendor }

func (d *Device) Connected() bool { return d.session != nil }

// Connect opens a session with the current credentials. An already open
// session is closed first. Failures are *executor.ConnectError.
func (d *Device) Connect(ctx context.Context) error {
	if d.session != nil {
		_ = d.Disconnect()
	}
	sess, err := d.dialer.Open(ctx, d.Address, d.Credentials, d.profile)
	if err != nil {
		var ce *executor.ConnectError
		if !errors.As(err, &ce) {
			ce = &executor.ConnectError{Kind: executor.KindOf(err), Address: d.Address, Err: err}
		}
		if ce.Kind == executor.KindAuthFailure {
			d.logger.Warn("Authentication failed", lg.String("username", d.Credentials.Username))
		} else {
			d.logger.Warn("Failed to connect", lg.String("kind", ce.Kind.String()), lg.Err(ce.Err))
		}
		return ce
	}
	d.session = sess
	d.logger.Info("Connected")
	return nil
}

// DetectVendor sends the detection probes in order and stops at the first
// response that identifies a vendor. A probe that fails counts as no match.
func (d *Device) DetectVendor(ctx context.Context) error {
	if d.session == nil {
		return ErrNoSession
	}
	d.vendor = catalog.Unknown
	for _, probe := range catalog.Probes {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := d.session.Send(ctx, probe)
		if err != nil {
			d.logger.Debug("Probe failed", lg.String("probe", probe), lg.Err(err))
			continue
		}
		if v := catalog.MatchVendor(out); v != catalog.Unknown {
			d.vendor = v
			break
		}
	}
	d.logger.Info("Vendor detected", lg.String("vendor", string(d.vendor)))
	return nil
}

// ExecuteCommands runs every command once, in order, and returns every output
// keyed by command. A blank command rejects the whole list before anything is
// sent; the first failing command aborts the call.
func (d *Device) ExecuteCommands(ctx context.Context, commands []string) (*Results, error) {
	if d.session == nil {
		return nil, ErrNoSession
	}
	for i, cmd := range commands {
		if strings.TrimSpace(cmd) == "" {
			return nil, fmt.Errorf("command %d on %s: %w", i+1, d.Address, ErrBlankCommand)
		}
	}
	res := NewResults()
	for _, cmd := range commands {
		out, err := d.session.Send(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("command %q on %s: %w", cmd, d.Address, err)
		}
		res.Set(cmd, out)
	}
	d.logger.Debug("Commands executed", lg.Int("count", res.Len()))
	return res, nil
}

// Disconnect closes the session if one is open. It is safe to call repeatedly.
func (d *Device) Disconnect() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	if err != nil {
		return fmt.Errorf("disconnect %s: %w", d.Address, err)
	}
	d.logger.Info("Disconnected")
	return nil
}
