package persistence

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/google/uuid"
)

const (
	CleanedLogsFile = "cleaned_logs.txt"
	SignalLogsFile  = "signal_logs.txt"
	SnapshotFile    = "aggregate.json"
)

var separator = "\n" + strings.Repeat("-", 40) + "\n"

// SignalCleaner re-applies signal cleanup when signal logs are written.
type SignalCleaner interface {
	CleanSignal(v catalog.Vendor, raw string) string
}

// FormatCleanedLogs renders the cleaned logs grouped by vendor.
func FormatCleanedLogs(agg *collect.Aggregate) []byte {
	var b bytes.Buffer
	for _, v := range agg.Vendors() {
		fmt.Fprintf(&b, "Vendor: %s\n", v)
		for _, addr := range agg.Addresses(v) {
			text, _ := agg.Cleaned(addr)
			fmt.Fprintf(&b, "Device IP: %s\n", addr)
			b.WriteString(text)
			b.WriteString(separator)
		}
	}
	return b.Bytes()
}

// FormatSignalLogs renders the signal logs by address, cleaning each one again
// with its vendor's profile.
func FormatSignalLogs(agg *collect.Aggregate, cleaner SignalCleaner) []byte {
	var b bytes.Buffer
	for _, addr := range agg.SignalAddresses() {
		text, _ := agg.Signal(addr)
		if v, ok := agg.VendorOf(addr); ok && cleaner != nil {
			text = cleaner.CleanSignal(v, text)
		}
		fmt.Fprintf(&b, "Device IP: %s\n", addr)
		b.WriteString(text)
		b.WriteString("\n")
		b.WriteString(separator)
	}
	return b.Bytes()
}

type snapshotDevice struct {
	Address string         `json:"address"`
	Vendor  catalog.Vendor `json:"vendor"`
	Cleaned string         `json:"cleaned"`
	Signal  string         `json:"signal"`
}

type snapshot struct {
	RunID   string           `json:"run_id"`
	Devices []snapshotDevice `json:"devices"`
}

func newSnapshot(runID uuid.UUID, agg *collect.Aggregate) snapshot {
	s := snapshot{RunID: runID.String(), Devices: []snapshotDevice{}}
	for _, r := range agg.Results() {
		s.Devices = append(s.Devices, snapshotDevice(r))
	}
	return s
}

// TextSink writes the cleaned logs, signal logs and a JSON snapshot of the
// aggregate into Dir.
type TextSink struct {
	Dir        string
	Writer     Writer
	Serializer Serializer
	Cleaner    SignalCleaner
}

func NewTextSink(dir string, cleaner SignalCleaner) *TextSink {
	return &TextSink{
		Dir:        dir,
		Writer:     FileWriter{Overwrite: true},
		Serializer: JSONSerializer{Prefix: prefix, Indent: indent},
		Cleaner:    cleaner,
	}
}

func (s *TextSink) Name() string { return "files" }

func (s *TextSink) Flush(ctx context.Context, runID uuid.UUID, agg *collect.Aggregate) error {
	if err := s.Writer.Write(filepath.Join(s.Dir, CleanedLogsFile), FormatCleanedLogs(agg)); err != nil {
		return fmt.Errorf("write cleaned logs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Writer.Write(filepath.Join(s.Dir, SignalLogsFile), FormatSignalLogs(agg, s.Cleaner)); err != nil {
		return fmt.Errorf("write signal logs: %w", err)
	}
	return WriteJSONToFile(newSnapshot(runID, agg), filepath.Join(s.Dir, SnapshotFile), s.Serializer, s.Writer)
}
