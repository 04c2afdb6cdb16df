// Package parser turns cleaned device logs into neighbor and signal records.
package parser

import (
	"strconv"
	"strings"

	"github.com/andrej220/netsurvey/pkg/catalog"
)

type NeighborRecord struct {
	Device       string `json:"device"`
	Address      string `json:"address"`
	LocalPort    string `json:"local_port"`
	RemoteDevice string `json:"remote_device"`
	RemotePort   string `json:"remote_port"`
}

type SignalRecord struct {
	Device  string  `json:"device"`
	Address string  `json:"address"`
	Port    string  `json:"port"`
	RxPower float64 `json:"rx_power"`
	TxPower float64 `json:"tx_power"`
}

// layout places the columns of one vendor's neighbor table. A negative
// remotePort means the last field.
type layout struct {
	header     string
	local      int
	remote     int
	remotePort int
	minFields  int
}

var neighborLayouts = map[catalog.Vendor]layout{
	catalog.Cisco:  {header: "Device ID", local: 1, remote: 0, remotePort: -1, minFields: 4},
	catalog.Huawei: {header: "Local Intf", local: 0, remote: 1, remotePort: 2, minFields: 3},
	catalog.B4COM:  {header: "Loc PortID", local: 0, remote: 1, remotePort: 3, minFields: 4},
	catalog.B4TECH: {header: "Neighbor Device", local: 0, remote: 1, remotePort: 2, minFields: 3},
}

type signalLayout struct {
	port      int
	rx        int
	tx        int
	minFields int
}

var signalLayouts = map[catalog.Vendor]signalLayout{
	catalog.Huawei: {port: 0, rx: 1, tx: 2, minFields: 3},
	catalog.B4COM:  {port: 0, tx: 4, rx: 5, minFields: 6},
}

// SupportsNeighbors reports whether v has a neighbor table layout.
func SupportsNeighbors(v catalog.Vendor) bool {
	_, ok := neighborLayouts[v]
	return ok
}

// SupportsSignals reports whether v has a transceiver table layout.
func SupportsSignals(v catalog.Vendor) bool {
	_, ok := signalLayouts[v]
	return ok
}

// maxIdentityFields bounds the identity line: "SW1" or "hostname SW1".
const maxIdentityFields = 2

// identity splits off the first line as the device name when it is short and
// does not parse as a table row. The name is the line's last field, so
// "hostname SW1" gives SW1. Otherwise the device is named by its address and
// every line stays a row candidate.
func identity(lines []string, address string, isRow func(fields []string) bool) (string, []string) {
	if len(lines) == 0 {
		return address, lines
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 || len(fields) > maxIdentityFields || isRow(fields) {
		return address, lines
	}
	return fields[len(fields)-1], lines[1:]
}

func (l layout) parse(address, device string, f []string) (NeighborRecord, bool) {
	if len(f) < l.minFields {
		return NeighborRecord{}, false
	}
	rp := l.remotePort
	if rp < 0 {
		rp = len(f) - 1
	}
	return NeighborRecord{
		Device:       device,
		Address:      address,
		LocalPort:    f[l.local],
		RemoteDevice: f[l.remote],
		RemotePort:   f[rp],
	}, true
}

// ParseNeighbors parses the cleaned log of one device.
func ParseNeighbors(v catalog.Vendor, address, log string) []NeighborRecord {
	l, ok := neighborLayouts[v]
	if !ok {
		return nil
	}
	device, rows := identity(splitLines(log), address, func(f []string) bool {
		_, ok := l.parse(address, address, f)
		return ok
	})

	var out []NeighborRecord
	for _, row := range rows {
		if strings.Contains(row, l.header) {
			continue
		}
		if rec, ok := l.parse(address, device, strings.Fields(row)); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (l signalLayout) parse(address, device string, f []string) (SignalRecord, bool) {
	if len(f) < l.minFields {
		return SignalRecord{}, false
	}
	rx, err := strconv.ParseFloat(f[l.rx], 64)
	if err != nil {
		return SignalRecord{}, false
	}
	tx, err := strconv.ParseFloat(f[l.tx], 64)
	if err != nil {
		return SignalRecord{}, false
	}
	return SignalRecord{
		Device:  device,
		Address: address,
		Port:    f[l.port],
		RxPower: rx,
		TxPower: tx,
	}, true
}

// ParseSignals parses the signal log of one device. Rows whose power columns
// are not numbers are skipped.
func ParseSignals(v catalog.Vendor, address, log string) []SignalRecord {
	l, ok := signalLayouts[v]
	if !ok {
		return nil
	}
	device, rows := identity(splitLines(log), address, func(f []string) bool {
		_, ok := l.parse(address, address, f)
		return ok
	})

	var out []SignalRecord
	for _, row := range rows {
		if rec, ok := l.parse(address, device, strings.Fields(row)); ok {
			out = append(out, rec)
		}
	}
	return out
}

func splitLines(log string) []string {
	log = strings.TrimSpace(strings.ReplaceAll(log, "\r\n", "\n"))
	if log == "" {
		return nil
	}
	return strings.Split(log, "\n")
}
