package processor

import (
	"strings"

	"github.com/andrej220/netsurvey/pkg/catalog"
)

var baseOutput = []string{
	ProcessorTypeStripANSI,
	ProcessorTypeStripPager,
	ProcessorTypeTrimRight,
	ProcessorTypeDropPrompt,
}

// vendorNoise lists the per-vendor lines that carry no data.
var vendorNoise = map[catalog.Vendor][]string{
	catalog.Cisco: {
		"Capability codes",
		"(R) Router",
		"(W) WLAN",
		"Total entries displayed",
	},
	catalog.Huawei: {
		"Info:",
		"Warning:",
	},
	catalog.B4COM: {
		"Codes:",
	},
}

// Cleaner normalizes raw command output per vendor. Both cleanups are
// idempotent.
type Cleaner struct {
	chain  *ProcessorChain
	output map[catalog.Vendor][]string
	signal map[catalog.Vendor][]string
}

func NewCleaner() *Cleaner {
	c := &Cleaner{
		chain:  NewProcessorChain(),
		output: make(map[catalog.Vendor][]string),
		signal: make(map[catalog.Vendor][]string),
	}
	for v, prefixes := range vendorNoise {
		p := &DropPrefixProcessor{Label: strings.ToLower(string(v)), Prefixes: prefixes}
		c.chain.Register(p)
		c.output[v] = profile(baseOutput, p.Name(), ProcessorTypeDropBlank)
		c.signal[v] = profile(baseOutput, p.Name(), ProcessorTypeDropRules, ProcessorTypeDropBlank)
	}
	return c
}

func profile(base []string, extra ...string) []string {
	return append(append([]string(nil), base...), extra...)
}

func (c *Cleaner) outputProfile(v catalog.Vendor) []string {
	if names, ok := c.output[v]; ok {
		return names
	}
	return profile(baseOutput, ProcessorTypeDropBlank)
}

func (c *Cleaner) signalProfile(v catalog.Vendor) []string {
	if names, ok := c.signal[v]; ok {
		return names
	}
	return profile(baseOutput, ProcessorTypeDropRules, ProcessorTypeDropBlank)
}

// CleanOutput returns raw with escapes, pager remnants, prompts, vendor noise
// and blank lines removed.
func (c *Cleaner) CleanOutput(v catalog.Vendor, raw string) string {
	return c.run(raw, c.outputProfile(v))
}

// CleanSignal is CleanOutput plus removal of table separator rules.
func (c *Cleaner) CleanSignal(v catalog.Vendor, raw string) string {
	return c.run(raw, c.signalProfile(v))
}

func (c *Cleaner) run(raw string, names []string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out, err := c.chain.Process(lines, names...)
	if err != nil {
		// every profile name is registered in NewCleaner
		panic(err)
	}
	return strings.Join(out, "\n")
}
