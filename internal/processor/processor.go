// Package processor provides a modular framework for cleaning terminal output
// with configurable processor chains.
package processor

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ProcessorTypeStripANSI  string = "strip_ansi"
	ProcessorTypeStripPager string = "strip_pager"
	ProcessorTypeTrimRight  string = "trim_right"
	ProcessorTypeTrim       string = "trim"
	ProcessorTypeDropPrompt string = "drop_prompt"
	ProcessorTypeDropBlank  string = "drop_blank"
	ProcessorTypeDropRules  string = "drop_rules"
)

// Processor defines the interface for processing line slices.
type Processor interface {
	// Process applies the processor's logic to the input lines.
	Process([]string) ([]string, error)
	Name() string
}

// ProcessorChain manages a collection of processors and applies them in sequence.
type ProcessorChain struct {
	processors        map[string]Processor
	allowEmptyResults bool
}

func NewProcessorChain() *ProcessorChain {
	pc := &ProcessorChain{
		processors:        make(map[string]Processor),
		allowEmptyResults: true,
	}
	pc.registerDefaults()
	return pc
}

func (pc *ProcessorChain) registerDefaults() {
	pc.Register(&StripANSIProcessor{})
	pc.Register(&StripPagerProcessor{})
	pc.Register(&TrimRightProcessor{})
	pc.Register(&TrimProcessor{})
	pc.Register(&DropPromptProcessor{})
	pc.Register(&DropBlankProcessor{})
	pc.Register(&DropRulesProcessor{})
}

// Register adds a processor to the chain, replacing one with the same name.
func (pc *ProcessorChain) Register(p Processor) {
	pc.processors[p.Name()] = p
}

// Process applies the named processors to the input lines in order.
func (pc *ProcessorChain) Process(lines []string, processorNames ...string) ([]string, error) {
	for _, name := range processorNames {
		if _, exists := pc.processors[name]; !exists {
			return nil, fmt.Errorf("processor %q not registered", name)
		}
	}
	if len(lines) == 0 {
		return lines, nil
	}
	result := lines
	for _, name := range processorNames {
		var err error
		result, err = pc.processors[name].Process(result)
		if err != nil {
			return nil, fmt.Errorf("%s processor failed: %w", name, err)
		}
		if len(result) == 0 && !pc.allowEmptyResults {
			break
		}
	}
	return result, nil
}

//Processor Implementations

var (
	ansiPattern   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[()][0-9A-Za-z]|\x08`)
	pagerPattern  = regexp.MustCompile(`(?i)-{2,}\s*more\s*-{2,}\s*`)
	promptPattern = regexp.MustCompile(`^\s*(<[^<>\s]+>|\[~?\*?[^\[\]\s]+\]|[\w./:@()-]+[#>])\s*$`)
	rulePattern   = regexp.MustCompile(`^\s*[-=_*+ ]{4,}\s*$`)
)

// StripANSIProcessor removes terminal escape sequences and backspaces.
type StripANSIProcessor struct{}

func (p *StripANSIProcessor) Name() string { return ProcessorTypeStripANSI }
func (p *StripANSIProcessor) Process(lines []string) ([]string, error) {
	return mapLines(lines, func(s string) string { return ansiPattern.ReplaceAllString(s, "") }), nil
}

// StripPagerProcessor removes pager markers left in the output.
type StripPagerProcessor struct{}

func (p *StripPagerProcessor) Name() string { return ProcessorTypeStripPager }
func (p *StripPagerProcessor) Process(lines []string) ([]string, error) {
	return mapLines(lines, func(s string) string { return pagerPattern.ReplaceAllString(s, "") }), nil
}

// TrimRightProcessor trims trailing whitespace from each line.
type TrimRightProcessor struct{}

func (p *TrimRightProcessor) Name() string { return ProcessorTypeTrimRight }
func (p *TrimRightProcessor) Process(lines []string) ([]string, error) {
	return mapLines(lines, func(s string) string { return strings.TrimRight(s, " \t\r") }), nil
}

// TrimProcessor trims whitespace from each line in the input.
type TrimProcessor struct{}

func (p *TrimProcessor) Name() string { return ProcessorTypeTrim }
func (p *TrimProcessor) Process(lines []string) ([]string, error) {
	return mapLines(lines, strings.TrimSpace), nil
}

// DropPromptProcessor drops lines that are only a CLI prompt.
type DropPromptProcessor struct{}

func (p *DropPromptProcessor) Name() string { return ProcessorTypeDropPrompt }
func (p *DropPromptProcessor) Process(lines []string) ([]string, error) {
	return filterLines(lines, func(s string) bool { return !promptPattern.MatchString(s) }), nil
}

// DropBlankProcessor drops empty and whitespace-only lines.
type DropBlankProcessor struct{}

func (p *DropBlankProcessor) Name() string { return ProcessorTypeDropBlank }
func (p *DropBlankProcessor) Process(lines []string) ([]string, error) {
	return filterLines(lines, func(s string) bool { return strings.TrimSpace(s) != "" }), nil
}

// DropRulesProcessor drops table separator lines such as "-----" or "=====".
type DropRulesProcessor struct{}

func (p *DropRulesProcessor) Name() string { return ProcessorTypeDropRules }
func (p *DropRulesProcessor) Process(lines []string) ([]string, error) {
	return filterLines(lines, func(s string) bool {
		return !rulePattern.MatchString(s) || strings.Trim(s, " ") == ""
	}), nil
}

// DropPrefixProcessor drops lines starting with any of Prefixes once leading
// space is trimmed.
type DropPrefixProcessor struct {
	Label    string
	Prefixes []string
}

func (p *DropPrefixProcessor) Name() string { return "drop_prefix_" + p.Label }
func (p *DropPrefixProcessor) Process(lines []string) ([]string, error) {
	return filterLines(lines, func(s string) bool {
		t := strings.TrimSpace(s)
		for _, prefix := range p.Prefixes {
			if strings.HasPrefix(t, prefix) {
				return false
			}
		}
		return true
	}), nil
}

func mapLines(lines []string, f func(string) string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = f(line)
	}
	return out
}

func filterLines(lines []string, keep func(string) bool) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if keep(line) {
			out = append(out, line)
		}
	}
	return out
}
