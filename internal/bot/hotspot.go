package bot

import (
	"sort"

	"github.com/freeeve/colony-agent/pkg/colony"
)

const hotspotLinkRange = 3

// Hotspot is a cluster of nearby resources with their combined calorie value.
type Hotspot struct {
	Center   colony.Hex   `json:"center"`
	Members  []colony.Hex `json:"members"`
	Calories int          `json:"calories"`
}

// FindHotspots merges resources that lie within hotspotLinkRange of any other
// member into a single cluster. The center is the most valuable member.
// Clusters are returned richest first.
func FindHotspots(resources []ResourceInfo) []Hotspot {
	n := len(resources)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if colony.Distance(resources[i].Pos, resources[j].Pos) <= hotspotLinkRange {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	out := make([]Hotspot, 0, len(roots))
	for _, root := range roots {
		var hs Hotspot
		best := -1
		for _, idx := range groups[root] {
			r := resources[idx]
			hs.Members = append(hs.Members, r.Pos)
			hs.Calories += r.Value
			if best < 0 || r.Value > resources[best].Value {
				best = idx
			}
		}
		hs.Center = resources[best].Pos
		out = append(out, hs)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Calories > out[j].Calories
	})
	return out
}
