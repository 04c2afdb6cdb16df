// Package pipeline runs one survey: read the address list, collect every
// device, flush the results to the sinks, parse them and write the report.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/internal/parser"
	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoAddresses      = errors.New("no IP addresses found")
	ErrNothingCollected = errors.New("no logs were collected")
	ErrNothingParsed    = errors.New("no data was parsed from logs")
)

// Sink receives the aggregate of a finished collection.
type Sink interface {
	Name() string
	Flush(ctx context.Context, runID uuid.UUID, agg *collect.Aggregate) error
}

// Reporter writes the comparison report and returns its location.
type Reporter interface {
	PopulateAndCompare(runID uuid.UUID, neighbors []parser.NeighborRecord, signals []parser.SignalRecord) (string, error)
}

type Pipeline struct {
	Collector   *collect.Collector
	Sinks       []Sink
	Reporter    Reporter
	Credentials executor.Credentials
	Logger      lg.Logger
}

type Result struct {
	RunID      uuid.UUID
	Aggregate  *collect.Aggregate
	Neighbors  []parser.NeighborRecord
	Signals    []parser.SignalRecord
	ReportPath string
}

// ReadAddresses returns the non-blank lines of path, trimmed.
func ReadAddresses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address list: %w", err)
	}
	defer f.Close()
	return readAddresses(f)
}

func readAddresses(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read address list: %w", err)
	}
	return out, nil
}

func hasAddress(addresses []string) bool {
	for _, a := range addresses {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

// RunFile surveys the addresses listed in path.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	addresses, err := ReadAddresses(path)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, addresses)
}

// Run surveys addresses. The result is returned with whatever was produced
// up to a failure.
func (p *Pipeline) Run(ctx context.Context, addresses []string) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = lg.FromContext(ctx)
	}
	res := &Result{RunID: uuid.New()}
	logger = logger.With(lg.String("run_id", res.RunID.String()))

	if !hasAddress(addresses) {
		return res, ErrNoAddresses
	}
	logger.Info("Run started", lg.Int("addresses", len(addresses)))

	agg, err := p.Collector.Run(ctx, addresses, p.Credentials)
	res.Aggregate = agg
	if err != nil {
		return res, fmt.Errorf("collect: %w", err)
	}
	if agg.Empty() {
		return res, ErrNothingCollected
	}

	if err := p.flush(ctx, res.RunID, agg, logger); err != nil {
		return res, err
	}

	res.Neighbors, res.Signals = Parse(agg, logger)
	if len(res.Neighbors) == 0 {
		return res, ErrNothingParsed
	}

	if p.Reporter != nil {
		logger.Info("Populating Excel file and comparing rows")
		path, err := p.Reporter.PopulateAndCompare(res.RunID, res.Neighbors, res.Signals)
		if err != nil {
			return res, fmt.Errorf("report: %w", err)
		}
		res.ReportPath = path
	}
	logger.Info("Run finished",
		lg.Int("devices", len(agg.Results())),
		lg.Int("neighbors", len(res.Neighbors)),
		lg.Int("signals", len(res.Signals)),
	)
	return res, nil
}

func (p *Pipeline) flush(ctx context.Context, runID uuid.UUID, agg *collect.Aggregate, logger lg.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range p.Sinks {
		g.Go(func() error {
			if err := s.Flush(ctx, runID, agg); err != nil {
				logger.Error("Sink failed", lg.String("sink", s.Name()), lg.Err(err))
				return fmt.Errorf("sink %s: %w", s.Name(), err)
			}
			logger.Debug("Sink flushed", lg.String("sink", s.Name()))
			return nil
		})
	}
	return g.Wait()
}

// Parse extracts neighbor records from the cleaned logs of every vendor and
// signal records from the signal logs, using the vendor recorded for each
// address.
func Parse(agg *collect.Aggregate, logger lg.Logger) ([]parser.NeighborRecord, []parser.SignalRecord) {
	var neighbors []parser.NeighborRecord
	for _, v := range agg.Vendors() {
		for _, addr := range agg.Addresses(v) {
			text, _ := agg.Cleaned(addr)
			neighbors = append(neighbors, parser.ParseNeighbors(v, addr, text)...)
		}
	}

	var signals []parser.SignalRecord
	for _, addr := range agg.SignalAddresses() {
		v, ok := agg.VendorOf(addr)
		if !ok {
			logger.Warn("Vendor not found, skipping signal logs", lg.String("address", addr))
			continue
		}
		text, _ := agg.Signal(addr)
		signals = append(signals, parser.ParseSignals(v, addr, text)...)
	}
	return neighbors, signals
}
