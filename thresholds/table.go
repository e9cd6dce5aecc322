package thresholds

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"sort"

	"github.com/TwiN/deepmerge"
	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var defaultTableYAML []byte

const (
	IssueGap     = "gap"
	IssueOverlap = "overlap"
)

// Issue is a part of an indicator's domain that is covered by no band (gap)
// or by more than one band (overlap).
type Issue struct {
	Group     Group     `json:"group"`
	Indicator Indicator `json:"indicator"`
	Kind      string    `json:"kind"`
	Interval  Interval  `json:"interval"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s %s %s", i.Group, i.Indicator, i.Kind, i.Interval)
}

// Table maps every (group, indicator) pair to its bands. It is immutable once loaded.
type Table struct {
	profiles map[Group]Profile
}

type document struct {
	Groups map[Group]Profile `yaml:"groups"`
}

// Default returns the built in clinical table.
func Default() (*Table, error) {
	return Parse(defaultTableYAML)
}

// Load merges an optional override document onto the built in table. In strict
// mode any gap or overlap in the resulting bands is a configuration error.
func Load(override []byte, strict bool) (*Table, error) {
	data := defaultTableYAML
	if len(bytes.TrimSpace(override)) > 0 {
		merged, err := deepmerge.YAML(defaultTableYAML, override, deepmerge.Config{
			PreventMultipleDefinitionsOfKeysWithPrimitiveValue: false,
		})
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unable to merge override: %v", err)}
		}
		data = merged
	}

	table, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if strict {
		if issues := table.Coverage(); len(issues) > 0 {
			first := issues[0]
			return nil, &ConfigurationError{
				Group:     first.Group,
				Indicator: first.Indicator,
				Reason:    fmt.Sprintf("bands do not partition the domain (%d issues, first %s %s)", len(issues), first.Kind, first.Interval),
			}
		}
	}

	return table, nil
}

// Parse decodes and validates a complete table document.
func Parse(data []byte) (*Table, error) {
	doc := document{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unable to decode table: %v", err)}
	}

	table := &Table{profiles: doc.Groups}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that every group declares every indicator with well formed bands.
func (t *Table) Validate() error {
	for _, group := range Groups {
		profile, ok := t.profiles[group]
		if !ok {
			return &ConfigurationError{Group: group, Reason: "missing group"}
		}
		if profile.Limits.IntakeMl <= 0 || profile.Limits.OutputMl <= 0 {
			return &ConfigurationError{Group: group, Reason: "daily limits must be positive"}
		}
		for _, indicator := range Indicators {
			rng, ok := profile.Indicators[indicator]
			if !ok {
				return &ConfigurationError{Group: group, Indicator: indicator, Reason: "missing indicator"}
			}
			for name, interval := range map[string]Interval{"normal": rng.Normal, "risk": rng.Risk, "emergency": rng.Emergency} {
				if !interval.Valid() {
					return &ConfigurationError{Group: group, Indicator: indicator, Reason: fmt.Sprintf("%s band %s is empty", name, interval)}
				}
			}
		}
	}
	for group := range t.profiles {
		if !group.Valid() {
			return &ConfigurationError{Group: group, Reason: "unknown group"}
		}
	}
	return nil
}

func (t *Table) Lookup(group Group, indicator Indicator) (Range, error) {
	profile, ok := t.profiles[group]
	if !ok {
		return Range{}, &ConfigurationError{Group: group, Reason: "unknown group"}
	}
	rng, ok := profile.Indicators[indicator]
	if !ok {
		return Range{}, &ConfigurationError{Group: group, Indicator: indicator, Reason: "missing indicator"}
	}
	return rng, nil
}

func (t *Table) Limits(group Group) (Limits, error) {
	profile, ok := t.profiles[group]
	if !ok {
		return Limits{}, &ConfigurationError{Group: group, Reason: "unknown group"}
	}
	return profile.Limits, nil
}

// Coverage lists the gaps and overlaps of every range against its indicator domain.
func (t *Table) Coverage() []Issue {
	var issues []Issue
	for _, group := range Groups {
		for _, indicator := range Indicators {
			rng, err := t.Lookup(group, indicator)
			if err != nil {
				continue
			}
			for _, issue := range coverage(indicator.Domain(), rng) {
				issue.Group = group
				issue.Indicator = indicator
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

func coverage(domain Interval, rng Range) []Issue {
	bands := []Interval{rng.Emergency, rng.Risk, rng.Normal}
	sort.Slice(bands, func(i, j int) bool {
		return bands[i].Min < bands[j].Min
	})

	var issues []Issue
	cursor := domain.Min
	for _, band := range bands {
		if band.Min > cursor {
			issues = append(issues, Issue{Kind: IssueGap, Interval: Interval{Min: cursor, Max: band.Min}})
		} else if band.Min < cursor {
			issues = append(issues, Issue{Kind: IssueOverlap, Interval: Interval{Min: band.Min, Max: math.Min(cursor, band.Max)}})
		}
		cursor = math.Max(cursor, band.Max)
	}
	if cursor < domain.Max {
		issues = append(issues, Issue{Kind: IssueGap, Interval: Interval{Min: cursor, Max: domain.Max}})
	}
	return issues
}
