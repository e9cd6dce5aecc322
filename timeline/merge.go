package timeline

import (
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

type DiscardReason string

const (
	DiscardBelowMinimum DiscardReason = "below_minimum"
	DiscardAboveMaximum DiscardReason = "above_maximum"
	DiscardEmpty        DiscardReason = "empty"
	DiscardParseError   DiscardReason = "parse_error"
	DiscardStale        DiscardReason = "stale"
	DiscardNoise        DiscardReason = "noise"

	// DiscardMalformed is reported for records normalization rejected before merging.
	DiscardMalformed DiscardReason = "malformed"
)

const (
	DefaultMinVolumeMl    = 5.0
	DefaultMaxVolumeMl    = 5000.0
	DefaultNoiseWindow    = 30 * time.Second
	DefaultNoiseTolerance = 0.2
)

type Options struct {
	// Single event volumes outside [MinVolumeMl, MaxVolumeMl] are sensor noise or faults.
	MinVolumeMl float64
	MaxVolumeMl float64

	// Readings of the same automated source closer than NoiseWindow whose values
	// differ by less than NoiseTolerance (relative) describe one physical event.
	NoiseWindow    time.Duration
	NoiseTolerance float64

	// Timestamped entries before SessionStart are dropped. Zero disables the filter.
	SessionStart time.Time
}

func DefaultOptions() Options {
	return Options{
		MinVolumeMl:    DefaultMinVolumeMl,
		MaxVolumeMl:    DefaultMaxVolumeMl,
		NoiseWindow:    DefaultNoiseWindow,
		NoiseTolerance: DefaultNoiseTolerance,
	}
}

type Result struct {
	Entries   []Entry               `json:"entries"`
	Rollup    Rollup                `json:"rollup"`
	Discarded map[DiscardReason]int `json:"discarded,omitempty"`
}

func (r Result) DiscardedCount() int {
	count := 0
	for _, c := range r.Discarded {
		count += c
	}
	return count
}

type Merger struct {
	Options Options
}

func NewMerger(options Options) *Merger {
	return &Merger{Options: options}
}

type candidate struct {
	entry   Entry
	index   int
	fixture bool
}

// Merge reconciles the stored timeline with a newly delivered batch. Seed entries
// are added only when their id is not already known. Merge never fails and is
// idempotent: merging the same batch into its own result changes nothing.
func (m *Merger) Merge(existing, incoming, seed []Entry) Result {
	discarded := map[DiscardReason]int{}
	union := unionById(existing, incoming)

	// Seed entries from an earlier merge are only sanity checked, as on first insertion.
	fixtures := mapset.NewThreadUnsafeSet[string]()
	for _, entry := range seed {
		if entry.Id != "" {
			fixtures.Add(entry.Id)
		}
	}

	candidates := make([]candidate, 0, len(union))
	for i, entry := range union {
		fixture := fixtures.Contains(entry.Id)
		check := m.check
		if fixture {
			check = m.sane
		}
		if reason, ok := check(entry); !ok {
			discarded[reason]++
			continue
		}
		candidates = append(candidates, candidate{entry: entry, index: i, fixture: fixture})
	}

	var collapsed int
	candidates, collapsed = m.collapseNoise(candidates)
	if collapsed > 0 {
		discarded[DiscardNoise] += collapsed
	}

	if len(seed) > 0 {
		known := mapset.NewThreadUnsafeSet[string]()
		for _, entry := range union {
			if entry.Id != "" {
				known.Add(entry.Id)
			}
		}
		for i, entry := range seed {
			if entry.Id != "" && known.Contains(entry.Id) {
				continue
			}
			if reason, ok := m.sane(entry); !ok {
				discarded[reason]++
				continue
			}
			known.Add(entry.Id)
			candidates = append(candidates, candidate{entry: entry, index: len(union) + i, fixture: true})
		}
	}

	sortCandidates(candidates)

	entries := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, c.entry)
	}

	return Result{
		Entries:   entries,
		Rollup:    ComputeRollup(entries),
		Discarded: discarded,
	}
}

// unionById keeps the first position of every id and the content of its last delivery.
func unionById(existing, incoming []Entry) []Entry {
	union := make([]Entry, 0, len(existing)+len(incoming))
	positions := make(map[string]int, len(existing)+len(incoming))
	for _, batch := range [][]Entry{existing, incoming} {
		for _, entry := range batch {
			if entry.Id == "" {
				union = append(union, entry)
				continue
			}
			if i, ok := positions[entry.Id]; ok {
				union[i] = entry
				continue
			}
			positions[entry.Id] = len(union)
			union = append(union, entry)
		}
	}
	return union
}

func (m *Merger) check(entry Entry) (DiscardReason, bool) {
	if reason, ok := m.sane(entry); !ok {
		return reason, false
	}
	if !m.Options.SessionStart.IsZero() && entry.HasTimestamp() && entry.Timestamp.Before(m.Options.SessionStart) {
		return DiscardStale, false
	}
	return "", true
}

// Faulty reports whether the entry comes from the parse error channel or has a
// volume outside the sanity band. Annotations without a volume are not faulty.
func (m *Merger) Faulty(entry Entry) bool {
	reason, ok := m.sane(entry)
	return !ok && reason != DiscardEmpty
}

func (m *Merger) sane(entry Entry) (DiscardReason, bool) {
	switch {
	case entry.Source == SourceParseError:
		return DiscardParseError, false
	case entry.ValueMl == 0:
		// Titled entries without a volume are annotations, for example a meal photo
		// that has not been estimated yet.
		if strings.TrimSpace(entry.Title) == "" {
			return DiscardEmpty, false
		}
	case entry.ValueMl < m.Options.MinVolumeMl:
		return DiscardBelowMinimum, false
	case entry.ValueMl > m.Options.MaxVolumeMl:
		return DiscardAboveMaximum, false
	}
	return "", true
}

// Timestamped entries first, most recent first. Ties and untimestamped entries
// keep their insertion order, then id order.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aTimed, bTimed := a.entry.HasTimestamp(), b.entry.HasTimestamp()
		if aTimed != bTimed {
			return aTimed
		}
		if aTimed && !a.entry.Timestamp.Equal(*b.entry.Timestamp) {
			return a.entry.Timestamp.After(*b.entry.Timestamp)
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return a.entry.Id < b.entry.Id
	})
}
