// Package router splits one device's command results into its cleaned-log
// and signal-log contributions.
package router

import (
	"strings"

	"github.com/andrej220/netsurvey/pkg/catalog"
	"github.com/andrej220/netsurvey/pkg/device"
)

// Cleaner is the per-vendor output normalization used by Router.
type Cleaner interface {
	CleanOutput(v catalog.Vendor, raw string) string
	CleanSignal(v catalog.Vendor, raw string) string
}

type Contribution struct {
	Cleaned string
	Signal  string
}

type Router struct {
	cleaner Cleaner
}

func New(cleaner Cleaner) *Router {
	return &Router{cleaner: cleaner}
}

// Route builds the contribution of one device. Commands flagged Cleaned are
// cleaned one by one and joined in catalog order. Raw outputs of commands
// flagged Signal are joined in catalog order and cleaned once. Commands
// missing from results are skipped.
func (r *Router) Route(v catalog.Vendor, cmds []catalog.Command, results *device.Results) Contribution {
	var cleaned, signal []string
	for _, cmd := range cmds {
		out, ok := results.Get(cmd.Text)
		if !ok {
			continue
		}
		if cmd.Cleaned {
			cleaned = append(cleaned, r.cleaner.CleanOutput(v, out))
		}
		if cmd.Signal {
			signal = append(signal, out)
		}
	}
	return Contribution{
		Cleaned: strings.Join(cleaned, "\n"),
		Signal:  r.cleaner.CleanSignal(v, strings.Join(signal, "\n")),
	}
}
