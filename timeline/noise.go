package timeline

import (
	"errors"
	"math"
	"sort"

	"github.com/dominikbraun/graph"
)

type channel struct {
	patientId string
	source    Source
	kind      Kind
}

// collapseNoise links readings of the same automated channel that are close in
// time and value. Readings are then visited from the most recent one and a reading
// is kept only when it is not linked to an already kept reading. The kept set
// only depends on the kept readings, so merging a result again keeps it unchanged.
func (m *Merger) collapseNoise(candidates []candidate) ([]candidate, int) {
	if m.Options.NoiseWindow <= 0 || m.Options.NoiseTolerance <= 0 {
		return candidates, 0
	}

	links := graph.New(func(c candidate) int { return c.index })
	channels := map[channel][]candidate{}
	var automated []candidate
	for _, c := range candidates {
		if c.fixture || !c.entry.Source.Automated() || !c.entry.HasTimestamp() {
			continue
		}
		if err := links.AddVertex(c); err != nil {
			return candidates, 0
		}
		key := channel{patientId: c.entry.PatientId, source: c.entry.Source, kind: c.entry.Kind}
		channels[key] = append(channels[key], c)
		automated = append(automated, c)
	}

	for _, members := range channels {
		sort.Slice(members, func(i, j int) bool {
			return members[i].entry.Timestamp.Before(*members[j].entry.Timestamp)
		})
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				if members[j].entry.Timestamp.Sub(*members[i].entry.Timestamp) > m.Options.NoiseWindow {
					break
				}
				if !m.similar(members[i].entry.ValueMl, members[j].entry.ValueMl) {
					continue
				}
				if err := links.AddEdge(members[i].index, members[j].index); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return candidates, 0
				}
			}
		}
	}

	adjacencyMap, err := links.AdjacencyMap()
	if err != nil {
		return candidates, 0
	}

	sort.Slice(automated, func(i, j int) bool {
		return moreRecent(automated[i], automated[j])
	})

	kept := map[int]struct{}{}
	dropped := map[int]struct{}{}
	for _, c := range automated {
		duplicate := false
		for neighbour := range adjacencyMap[c.index] {
			if _, ok := kept[neighbour]; ok {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped[c.index] = struct{}{}
		} else {
			kept[c.index] = struct{}{}
		}
	}

	if len(dropped) == 0 {
		return candidates, 0
	}

	result := make([]candidate, 0, len(candidates)-len(dropped))
	for _, c := range candidates {
		if _, ok := dropped[c.index]; !ok {
			result = append(result, c)
		}
	}
	return result, len(dropped)
}

func (m *Merger) similar(a, b float64) bool {
	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return true
	}
	return math.Abs(a-b)/largest < m.Options.NoiseTolerance
}

// moreRecent orders by timestamp, then by id so that equal timestamps resolve
// the same way regardless of delivery order.
func moreRecent(a, b candidate) bool {
	if !a.entry.Timestamp.Equal(*b.entry.Timestamp) {
		return a.entry.Timestamp.After(*b.entry.Timestamp)
	}
	if a.entry.Id != b.entry.Id {
		return a.entry.Id > b.entry.Id
	}
	return a.index > b.index
}
