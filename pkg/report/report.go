// Package report writes the comparison workbook of one run.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrej220/netsurvey/internal/lg"
	"github.com/andrej220/netsurvey/internal/parser"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	SheetNeighbors = "Neighbors"
	SheetMissing   = "Missing"
	SheetSignal    = "Signal"

	StatusOK  = "OK"
	StatusNew = "NEW"
)

var (
	neighborHeader = []any{"Local Device", "Local IP", "Local Port", "Remote Device", "Remote Port", "Rx Power (dBm)", "Tx Power (dBm)", "Status"}
	missingHeader  = []any{"Local Device", "Local Port", "Remote Device", "Remote Port"}
	signalHeader   = []any{"Device", "IP", "Port", "Rx Power (dBm)", "Tx Power (dBm)"}
)

// Link is one row of the reference table.
type Link struct {
	LocalDevice  string
	LocalPort    string
	RemoteDevice string
	RemotePort   string
}

func (l Link) key() string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(l.LocalDevice),
		strings.TrimSpace(l.LocalPort),
		strings.TrimSpace(l.RemoteDevice),
		strings.TrimSpace(l.RemotePort),
	}, "\x00"))
}

func linkOf(n parser.NeighborRecord) Link {
	return Link{LocalDevice: n.Device, LocalPort: n.LocalPort, RemoteDevice: n.RemoteDevice, RemotePort: n.RemotePort}
}

// NeighborRow is one collected link with its local port optics and status.
type NeighborRow struct {
	Neighbor parser.NeighborRecord
	Signal   *parser.SignalRecord
	Status   string
}

// Compare marks each neighbor OK when the reference holds the same link and
// NEW otherwise, and returns the reference links that were not collected.
func Compare(reference []Link, neighbors []parser.NeighborRecord, signals []parser.SignalRecord) ([]NeighborRow, []Link) {
	known := make(map[string]bool, len(reference))
	for _, l := range reference {
		known[l.key()] = true
	}
	optics := make(map[string]*parser.SignalRecord, len(signals))
	for i := range signals {
		s := &signals[i]
		optics[portKey(s.Address, s.Port)] = s
	}

	seen := make(map[string]bool, len(neighbors))
	rows := make([]NeighborRow, 0, len(neighbors))
	for _, n := range neighbors {
		k := linkOf(n).key()
		status := StatusNew
		if known[k] {
			status = StatusOK
		}
		seen[k] = true
		rows = append(rows, NeighborRow{Neighbor: n, Signal: optics[portKey(n.Address, n.LocalPort)], Status: status})
	}

	var missing []Link
	for _, l := range reference {
		if !seen[l.key()] {
			missing = append(missing, l)
		}
	}
	return rows, missing
}

func portKey(address, port string) string {
	return address + "\x00" + strings.ToLower(port)
}

// ReadReference loads the links from the first sheet of path. The first row is
// a header; rows with fewer than four cells are skipped.
func ReadReference(path string) ([]Link, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("reference %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", path, err)
	}
	var links []Link
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		links = append(links, Link{LocalDevice: row[0], LocalPort: row[1], RemoteDevice: row[2], RemotePort: row[3]})
	}
	return links, nil
}

type Reporter struct {
	ReferencePath string
	OutputDir     string
	logger        lg.Logger
}

func New(referencePath, outputDir string, logger lg.Logger) *Reporter {
	if logger == nil {
		logger = lg.Discard
	}
	return &Reporter{ReferencePath: referencePath, OutputDir: outputDir, logger: logger}
}

// PopulateAndCompare writes comparison_<runID>.xlsx into OutputDir and returns
// its path. A missing reference file marks every link NEW.
func (r *Reporter) PopulateAndCompare(runID uuid.UUID, neighbors []parser.NeighborRecord, signals []parser.SignalRecord) (string, error) {
	reference, err := ReadReference(r.ReferencePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("load reference table: %w", err)
		}
		r.logger.Warn("Reference table not found, every link is reported as new", lg.String("path", r.ReferencePath))
	}
	rows, missing := Compare(reference, neighbors, signals)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetNeighbors); err != nil {
		return "", err
	}
	for _, name := range []string{SheetMissing, SheetSignal} {
		if _, err := f.NewSheet(name); err != nil {
			return "", err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", err
	}

	neighborRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		n := row.Neighbor
		rx, tx := any(""), any("")
		if row.Signal != nil {
			rx, tx = row.Signal.RxPower, row.Signal.TxPower
		}
		neighborRows = append(neighborRows, []any{n.Device, n.Address, n.LocalPort, n.RemoteDevice, n.RemotePort, rx, tx, row.Status})
	}
	missingRows := make([][]any, 0, len(missing))
	for _, l := range missing {
		missingRows = append(missingRows, []any{l.LocalDevice, l.LocalPort, l.RemoteDevice, l.RemotePort})
	}
	signalRows := make([][]any, 0, len(signals))
	for _, s := range signals {
		signalRows = append(signalRows, []any{s.Device, s.Address, s.Port, s.RxPower, s.TxPower})
	}

	for _, sheet := range []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetNeighbors, neighborHeader, neighborRows},
		{SheetMissing, missingHeader, missingRows},
		{SheetSignal, signalHeader, signalRows},
	} {
		if err := writeSheet(f, sheet.name, bold, sheet.header, sheet.rows); err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(r.OutputDir, fmt.Sprintf("comparison_%s.xlsx", runID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	r.logger.Info("Report written",
		lg.String("path", path),
		lg.Int("links", len(rows)),
		lg.Int("missing", len(missing)),
		lg.Int("signals", len(signals)),
	)
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
