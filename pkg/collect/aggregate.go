package collect

import "github.com/andrej220/netsurvey/pkg/catalog"

// DeviceResult is what one successfully processed device contributes.
type DeviceResult struct {
	Address string
	Vendor  catalog.Vendor
	Cleaned string
	Signal  string
}

// Aggregate accumulates device results for one run. Vendors, addresses
// within a vendor and signal logs all keep first-merge order.
type Aggregate struct {
	vendors  []catalog.Vendor
	byVendor map[catalog.Vendor][]string
	cleaned  map[string]string
	signals  []string
	signal   map[string]string
	vendorOf map[string]catalog.Vendor
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		byVendor: make(map[catalog.Vendor][]string),
		cleaned:  make(map[string]string),
		signal:   make(map[string]string),
		vendorOf: make(map[string]catalog.Vendor),
	}
}

// Merge records r in both logs and the vendor index. Merging an address again
// replaces its earlier contribution.
func (a *Aggregate) Merge(r DeviceResult) {
	prev, seen := a.vendorOf[r.Address]
	if seen && prev != r.Vendor {
		a.removeFromVendor(prev, r.Address)
	}
	if !seen || prev != r.Vendor {
		if _, ok := a.byVendor[r.Vendor]; !ok {
			a.vendors = append(a.vendors, r.Vendor)
		}
		a.byVendor[r.Vendor] = append(a.byVendor[r.Vendor], r.Address)
	}
	a.cleaned[r.Address] = r.Cleaned

	if !seen {
		a.signals = append(a.signals, r.Address)
	}
	a.signal[r.Address] = r.Signal
	a.vendorOf[r.Address] = r.Vendor
}

func (a *Aggregate) removeFromVendor(v catalog.Vendor, address string) {
	addrs := a.byVendor[v]
	for i, addr := range addrs {
		if addr == address {
			addrs = append(addrs[:i:i], addrs[i+1:]...)
			break
		}
	}
	if len(addrs) > 0 {
		a.byVendor[v] = addrs
		return
	}
	delete(a.byVendor, v)
	for i, vendor := range a.vendors {
		if vendor == v {
			a.vendors = append(a.vendors[:i:i], a.vendors[i+1:]...)
			break
		}
	}
}

// Empty reports whether no device has been merged.
func (a *Aggregate) Empty() bool { return len(a.vendorOf) == 0 }

func (a *Aggregate) Vendors() []catalog.Vendor {
	return append([]catalog.Vendor(nil), a.vendors...)
}

// Addresses returns the addresses collected for v in merge order.
func (a *Aggregate) Addresses(v catalog.Vendor) []string {
	return append([]string(nil), a.byVendor[v]...)
}

func (a *Aggregate) Cleaned(address string) (string, bool) {
	s, ok := a.cleaned[address]
	return s, ok
}

// SignalAddresses returns the addresses with a signal log in merge order.
func (a *Aggregate) SignalAddresses() []string {
	return append([]string(nil), a.signals...)
}

func (a *Aggregate) Signal(address string) (string, bool) {
	s, ok := a.signal[address]
	return s, ok
}

// VendorOf returns the vendor recorded for address in the same merge as its
// logs.
func (a *Aggregate) VendorOf(address string) (catalog.Vendor, bool) {
	v, ok := a.vendorOf[address]
	return v, ok
}

// Results returns every merged device in vendor then address order.
func (a *Aggregate) Results() []DeviceResult {
	out := make([]DeviceResult, 0, len(a.vendorOf))
	for _, v := range a.vendors {
		for _, addr := range a.byVendor[v] {
			out = append(out, DeviceResult{
				Address: addr,
				Vendor:  v,
				Cleaned: a.cleaned[addr],
				Signal:  a.signal[addr],
			})
		}
	}
	return out
}
