package persistence_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrej220/netsurvey/internal/persistence"
	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = "{\n    \"key\": \"value\"\n}"

var rule = strings.Repeat("-", 40)

type MockSerializer struct {
	Bytes []byte
	Err   error
}

func (s MockSerializer) Marshal(data any) ([]byte, error) {
	return s.Bytes, s.Err
}

type MockWriter struct {
	Data map[string][]byte
	Err  error
}

func (w *MockWriter) Write(filename string, data []byte) error {
	if w.Data == nil {
		w.Data = make(map[string][]byte)
	}
	w.Data[filename] = data
	return w.Err
}

// upperCleaner makes write-time signal cleanup visible.
type upperCleaner struct{}

func (upperCleaner) CleanSignal(v catalog.Vendor, raw string) string { return strings.ToUpper(raw) }

func TestWriteJSONToFile(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		serializer  persistence.Serializer
		writer      persistence.Writer
		expectedErr bool
	}{
		{
			name:       "valid input",
			filename:   filepath.Join(t.TempDir(), "output.json"),
			serializer: MockSerializer{Bytes: []byte(sampleJSON)},
			writer:     &MockWriter{},
		},
		{
			name:        "empty filename",
			filename:    "",
			serializer:  MockSerializer{Bytes: []byte(sampleJSON)},
			writer:      &MockWriter{},
			expectedErr: true,
		},
		{
			name:        "serializer error",
			filename:    "test.json",
			serializer:  MockSerializer{Err: fmt.Errorf("serialization failed")},
			writer:      &MockWriter{},
			expectedErr: true,
		},
		{
			name:        "writer error",
			filename:    "test.json",
			serializer:  MockSerializer{Bytes: []byte(sampleJSON)},
			writer:      &MockWriter{Err: fmt.Errorf("write failed")},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := persistence.WriteJSONToFile(map[string]string{"key": "value"}, tt.filename, tt.serializer, tt.writer)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if writer, ok := tt.writer.(*MockWriter); ok {
				assert.Equal(t, sampleJSON, string(writer.Data[tt.filename]))
			}
		})
	}
}

func TestWriteJSONDefaultSerializer(t *testing.T) {
	writer := &MockWriter{}
	err := persistence.WriteJSONToFile(map[string]string{"key": "value"}, "output.json", nil, writer)
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(writer.Data["output.json"]))
}

func TestFileWriter(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nested", "out.txt")
	require.NoError(t, persistence.FileWriter{}.Write(name, []byte("one")))
	assert.ErrorIs(t, persistence.FileWriter{}.Write(name, []byte("two")), os.ErrExist)
	require.NoError(t, persistence.FileWriter{Overwrite: true}.Write(name, []byte("three")))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
	assert.ErrorIs(t, persistence.FileWriter{}.Write("", nil), os.ErrInvalid)
}

func sampleAggregate() *collect.Aggregate {
	agg := collect.NewAggregate()
	agg.Merge(collect.DeviceResult{Address: "10.0.0.1", Vendor: catalog.Huawei, Cleaned: "CE1\nlldp-a", Signal: "CE1\noptics-a"})
	agg.Merge(collect.DeviceResult{Address: "10.0.0.2", Vendor: catalog.B4COM, Cleaned: "LEAF1\nlldp-b", Signal: "LEAF1\noptics-b"})
	agg.Merge(collect.DeviceResult{Address: "10.0.0.3", Vendor: catalog.Huawei, Cleaned: "CE3", Signal: "CE3"})
	return agg
}

func TestFormatCleanedLogs(t *testing.T) {
	want := "Vendor: Huawei\n" +
		"Device IP: 10.0.0.1\nCE1\nlldp-a\n" + rule + "\n" +
		"Device IP: 10.0.0.3\nCE3\n" + rule + "\n" +
		"Vendor: B4COM\n" +
		"Device IP: 10.0.0.2\nLEAF1\nlldp-b\n" + rule + "\n"
	assert.Equal(t, want, string(persistence.FormatCleanedLogs(sampleAggregate())))
}

func TestFormatSignalLogs(t *testing.T) {
	want := "Device IP: 10.0.0.1\nCE1\noptics-a\n\n" + rule + "\n" +
		"Device IP: 10.0.0.2\nLEAF1\noptics-b\n\n" + rule + "\n" +
		"Device IP: 10.0.0.3\nCE3\n\n" + rule + "\n"
	assert.Equal(t, want, string(persistence.FormatSignalLogs(sampleAggregate(), nil)))

	cleaned := string(persistence.FormatSignalLogs(sampleAggregate(), upperCleaner{}))
	assert.Contains(t, cleaned, "Device IP: 10.0.0.1\nCE1\nOPTICS-A\n")
}

func TestTextSinkFlush(t *testing.T) {
	dir := t.TempDir()
	runID := uuid.New()
	sink := persistence.NewTextSink(dir, upperCleaner{})
	assert.Equal(t, "files", sink.Name())

	require.NoError(t, sink.Flush(context.Background(), runID, sampleAggregate()))

	cleaned, err := os.ReadFile(filepath.Join(dir, persistence.CleanedLogsFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(cleaned), "Vendor: Huawei\nDevice IP: 10.0.0.1\n"))

	signal, err := os.ReadFile(filepath.Join(dir, persistence.SignalLogsFile))
	require.NoError(t, err)
	assert.Contains(t, string(signal), "LEAF1\nOPTICS-B\n")

	raw, err := os.ReadFile(filepath.Join(dir, persistence.SnapshotFile))
	require.NoError(t, err)
	var snap struct {
		RunID   string `json:"run_id"`
		Devices []struct {
			Address string `json:"address"`
			Vendor  string `json:"vendor"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, runID.String(), snap.RunID)
	require.Len(t, snap.Devices, 3)
	assert.Equal(t, "10.0.0.3", snap.Devices[1].Address)
	assert.Equal(t, "B4COM", snap.Devices[2].Vendor)
}

func TestTextSinkWriterError(t *testing.T) {
	sink := persistence.NewTextSink("out", nil)
	sink.Writer = &MockWriter{Err: fmt.Errorf("disk full")}
	err := sink.Flush(context.Background(), uuid.New(), sampleAggregate())
	assert.ErrorContains(t, err, "write cleaned logs")
}
