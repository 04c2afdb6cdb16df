// Package collect walks the device list one address at a time and accumulates
// every device's cleaned and signal output into an Aggregate.
package collect

import (
	"context"
	"errors"
	"strings"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/device"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/andrej220/netsurvey/pkg/router"
)

type Action int

const (
	ActionRetry Action = iota
	ActionSkip
)

// Recovery is the operator's answer to a failed connect. Credentials replace
// the device's credentials when not empty.
type Recovery struct {
	Action      Action
	Credentials executor.Credentials
}

// Prompter decides how to continue after a failed connect.
type Prompter interface {
	Recover(ctx context.Context, address string, cause error) (Recovery, error)
}

// SkipAll is a Prompter that skips every unreachable device.
type SkipAll struct{}

func (SkipAll) Recover(context.Context, string, error) (Recovery, error) {
	return Recovery{Action: ActionSkip}, nil
}

type Collector struct {
	dialer   executor.Dialer
	profile  executor.Profile
	catalog  catalog.Catalog
	router   *router.Router
	prompter Prompter
	logger   lg.Logger
}

type Option func(*Collector)

func WithProfile(p executor.Profile) Option { return func(c *Collector) { c.profile = p } }

func WithCatalog(cat catalog.Catalog) Option { return func(c *Collector) { c.catalog = cat } }

func WithPrompter(p Prompter) Option { return func(c *Collector) { c.prompter = p } }

func WithLogger(l lg.Logger) Option { return func(c *Collector) { c.logger = l } }

func New(dialer executor.Dialer, r *router.Router, opts ...Option) *Collector {
	c := &Collector{
		dialer:   dialer,
		profile:  executor.DefaultProfile(),
		catalog:  catalog.Default(),
		router:   r,
		prompter: SkipAll{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// loggerFor returns the logger set with WithLogger, or the one carried by ctx.
func (c *Collector) loggerFor(ctx context.Context) lg.Logger {
	if c.logger != nil {
		return c.logger
	}
	return lg.FromContext(ctx)
}

// Run processes addresses in order with creds as the starting credentials of
// every device. Blank addresses are ignored. Per-device failures never end
// the run; only context cancellation does, between devices.
func (c *Collector) Run(ctx context.Context, addresses []string, creds executor.Credentials) (*Aggregate, error) {
	agg := NewAggregate()
	for _, raw := range addresses {
		if err := ctx.Err(); err != nil {
			return agg, err
		}
		address := strings.TrimSpace(raw)
		if address == "" {
			continue
		}
		res, ok := c.ProcessDevice(ctx, address, creds)
		if ok {
			agg.Merge(res)
		}
	}
	return agg, nil
}

// ProcessDevice connects to one device, retrying as the prompter says, then
// detects the vendor and runs its command set. ok is false when the device
// contributes nothing.
func (c *Collector) ProcessDevice(ctx context.Context, address string, creds executor.Credentials) (DeviceResult, bool) {
	base := c.loggerFor(ctx)
	logger := base.With(lg.String("address", address))
	logger.Info("Processing device")
	dev := device.New(address, creds, c.dialer, c.profile, base)

	for {
		err := dev.Connect(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return DeviceResult{}, false
		}
		rec, perr := c.prompter.Recover(ctx, address, err)
		if perr != nil {
			logger.Warn("Recovery prompt failed, skipping device", lg.Err(perr))
			return DeviceResult{}, false
		}
		if rec.Action == ActionSkip {
			logger.Info("Device skipped")
			return DeviceResult{}, false
		}
		if !rec.Credentials.Empty() {
			dev.Credentials = rec.Credentials
		}
	}
	defer func() {
		if err := dev.Disconnect(); err != nil {
			logger.Warn("Disconnect failed", lg.Err(err))
		}
	}()

	if err := dev.DetectVendor(ctx); err != nil {
		logger.Error("Vendor detection failed", lg.Err(err))
		return DeviceResult{}, false
	}
	vendor := dev.Vendor()
	logger = logger.With(lg.String("vendor", string(vendor)))

	cmds, ok := c.catalog.Commands(vendor)
	if !ok {
		logger.Warn("No command set for vendor")
		return DeviceResult{}, false
	}
	results, err := dev.ExecuteCommands(ctx, catalog.Texts(cmds))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Command execution failed", lg.Err(err))
		}
		return DeviceResult{}, false
	}

	contrib := c.router.Route(vendor, cmds, results)
	logger.Info("Logs collected and cleaned")
	return DeviceResult{
		Address: address,
		Vendor:  vendor,
		Cleaned: contrib.Cleaned,
		Signal:  contrib.Signal,
	}, true
}
