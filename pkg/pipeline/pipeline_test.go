package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/internal/parser"
	"github.com/andrej220/netsurvey/internal/persistence"
	"github.com/andrej220/netsurvey/internal/processor"
	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/andrej220/netsurvey/pkg/executor/executortest"
	"github.com/andrej220/netsurvey/pkg/report"
	"github.com/andrej220/netsurvey/pkg/router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = executor.Credentials{Username: "login", Password: "password"}

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Flush(context.Context, uuid.UUID, *collect.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type recordingReporter struct {
	neighbors []parser.NeighborRecord
	signals   []parser.SignalRecord
}

func (r *recordingReporter) PopulateAndCompare(_ uuid.UUID, n []parser.NeighborRecord, s []parser.SignalRecord) (string, error) {
	r.neighbors, r.signals = n, s
	return "report.xlsx", nil
}

func lab() *executortest.Dialer {
	return executortest.NewDialer().
		Add("10.0.0.1", &executortest.Host{
			Accept: creds,
			Replies: map[string]string{
				"show version":                        "Huawei Versatile Routing Platform Software",
				"display sysname":                     "CE1",
				"display lldp neighbor brief":         "Local Intf  Neighbor Dev  Neighbor Intf  Exptime(s)\n10GE1/0/1  LEAF1  xe49  104",
				"display interface transceiver brief": "Port  RxPower(dBm)  TxPower(dBm)\n-------\n10GE1/0/1  -2.5  -1.5",
			},
		}).
		Add("10.0.0.2", &executortest.Host{
			Accept: creds,
			Replies: map[string]string{
				"show version":                               "OcNOS BCOM",
				"show hostname":                              "LEAF1",
				"show lldp neighbors brief | include bridge": "xe49  CE1  bridge  10GE1/0/1",
				"sh int transceiver | exclude Codes":         "xe49  31.0  3.3  6.9  -1.1  -3.2",
			},
		})
}

func newCollector(d executor.Dialer) *collect.Collector {
	return collect.New(d, router.New(processor.NewCleaner()))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cleaner := processor.NewCleaner()
	p := &Pipeline{
		Collector:   collect.New(lab(), router.New(cleaner)),
		Sinks:       []Sink{persistence.NewTextSink(filepath.Join(dir, "logs"), cleaner)},
		Reporter:    report.New(filepath.Join(dir, "com_table.xlsx"), dir, lg.Discard),
		Credentials: creds,
		Logger:      lg.Discard,
	}

	res, err := p.Run(context.Background(), []string{"10.0.0.1", "", "10.0.0.2", "10.0.0.3"})
	require.NoError(t, err)

	assert.Equal(t, []parser.NeighborRecord{
		{Device: "CE1", Address: "10.0.0.1", LocalPort: "10GE1/0/1", RemoteDevice: "LEAF1", RemotePort: "xe49"},
		{Device: "LEAF1", Address: "10.0.0.2", LocalPort: "xe49", RemoteDevice: "CE1", RemotePort: "10GE1/0/1"},
	}, res.Neighbors)
	assert.Equal(t, []parser.SignalRecord{
		{Device: "CE1", Address: "10.0.0.1", Port: "10GE1/0/1", RxPower: -2.5, TxPower: -1.5},
		{Device: "LEAF1", Address: "10.0.0.2", Port: "xe49", RxPower: -3.2, TxPower: -1.1},
	}, res.Signals)

	assert.Equal(t, filepath.Join(dir, "comparison_"+res.RunID.String()+".xlsx"), res.ReportPath)
	_, err = os.Stat(res.ReportPath)
	assert.NoError(t, err)

	cleaned, err := os.ReadFile(filepath.Join(dir, "logs", persistence.CleanedLogsFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(cleaned), "Vendor: Huawei\nDevice IP: 10.0.0.1\nCE1\n"))
	assert.Contains(t, string(cleaned), "Vendor: B4COM\nDevice IP: 10.0.0.2\nLEAF1\n")
}

type recordingLogger struct {
	mu   *sync.Mutex
	msgs *[]string
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, msgs: new([]string)}
}

func (r recordingLogger) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.msgs = append(*r.msgs, msg)
}

func (r recordingLogger) Info(msg string, _ ...lg.Field)  { r.record(msg) }
func (r recordingLogger) Debug(msg string, _ ...lg.Field) { r.record(msg) }
func (r recordingLogger) Warn(msg string, _ ...lg.Field)  { r.record(msg) }
func (r recordingLogger) Error(msg string, _ ...lg.Field) { r.record(msg) }
func (r recordingLogger) With(...lg.Field) lg.Logger      { return r }
func (r recordingLogger) Sync() error                     { return nil }

func TestRunLogsThroughContextLogger(t *testing.T) {
	rec := newRecordingLogger()
	ctx := lg.Attach(context.Background(), rec)
	p := &Pipeline{Collector: newCollector(lab()), Credentials: creds}

	_, err := p.Run(ctx, []string{"10.0.0.1"})
	require.NoError(t, err)
	assert.Contains(t, *rec.msgs, "Run started")
	assert.Contains(t, *rec.msgs, "Processing device")
	assert.Contains(t, *rec.msgs, "Run finished")
}

func TestRunNoAddresses(t *testing.T) {
	sink := &recordingSink{name: "s"}
	p := &Pipeline{Collector: newCollector(lab()), Sinks: []Sink{sink}}
	for _, in := range [][]string{nil, {"", "   "}} {
		_, err := p.Run(context.Background(), in)
		assert.ErrorIs(t, err, ErrNoAddresses)
	}
	assert.Zero(t, sink.calls)
}

func TestRunNothingCollectedWritesNothing(t *testing.T) {
	sink := &recordingSink{name: "s"}
	rep := &recordingReporter{}
	p := &Pipeline{Collector: newCollector(executortest.NewDialer()), Sinks: []Sink{sink}, Reporter: rep, Credentials: creds}

	res, err := p.Run(context.Background(), []string{"10.0.0.8", "10.0.0.9"})
	assert.ErrorIs(t, err, ErrNothingCollected)
	assert.True(t, res.Aggregate.Empty())
	assert.Zero(t, sink.calls)
	assert.Nil(t, rep.neighbors)
}

func TestRunSinkFailure(t *testing.T) {
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("broker down")}
	rep := &recordingReporter{}
	p := &Pipeline{Collector: newCollector(lab()), Sinks: []Sink{good, bad}, Reporter: rep, Credentials: creds}

	_, err := p.Run(context.Background(), []string{"10.0.0.1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink bad")
	assert.Equal(t, 1, good.calls)
	assert.Nil(t, rep.neighbors)
}

func TestRunNothingParsed(t *testing.T) {
	d := executortest.NewDialer().Add("10.0.0.1", &executortest.Host{
		Accept:  creds,
		Replies: map[string]string{"show version": "Cisco IOS", "show hostname": "SW1"},
	})
	p := &Pipeline{Collector: newCollector(d), Credentials: creds}
	res, err := p.Run(context.Background(), []string{"10.0.0.1"})
	assert.ErrorIs(t, err, ErrNothingParsed)
	assert.False(t, res.Aggregate.Empty())
}

func TestParseSkipsSignalsWithoutParser(t *testing.T) {
	agg := collect.NewAggregate()
	agg.Merge(collect.DeviceResult{Address: "10.0.0.5", Vendor: catalog.Cisco, Cleaned: "SW1\nSW2  Gi1/0/1  120  B  Eth1/1", Signal: "SW1\nGi1/0/1 -1 -2"})

	neighbors, signals := Parse(agg, lg.Discard)
	assert.Len(t, neighbors, 1)
	assert.Empty(t, signals)
}

func TestReadAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ip.txt")
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.1\n\n  10.0.0.2  \r\n\t\n10.0.0.3"), 0600))

	got, err := ReadAddresses(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, got)

	_, err = ReadAddresses(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ip.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0600))
	p := &Pipeline{Collector: newCollector(lab())}
	_, err := p.RunFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoAddresses)
}
