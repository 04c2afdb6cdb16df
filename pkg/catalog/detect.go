package catalog

import "strings"

// Probes are sent in order until one response identifies the vendor.
var Probes = []string{
	"show version",
	"show ver | i BCOM",
	"dis version | i HUAWEI",
}

type signature struct {
	marker string
	vendor Vendor
}

// signatures are checked in priority order against every probe response.
var signatures = []signature{
	{"Huawei", Huawei},
	{"Cisco", Cisco},
	{"BCOM", B4COM},
	{"B4TECH", B4TECH},
}

// MatchVendor returns the highest priority vendor whose marker occurs in
// response, or Unknown.
func MatchVendor(response string) Vendor {
	for _, s := range signatures {
		if strings.Contains(response, s.marker) {
			return s.vendor
		}
	}
	return Unknown
}

// Detect applies MatchVendor to responses in probe order and returns the first
// match.
func Detect(responses []string) Vendor {
	for _, r := range responses {
		if v := MatchVendor(r); v != Unknown {
			return v
		}
	}
	return Unknown
}
