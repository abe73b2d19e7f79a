package maintenance

import (
	"github.com/MrWong99/tieredmem/internal/model"
)

// distanceDiscount implements §4.8's "distance discount: {1:1.0, 2:0.5}".
var distanceDiscount = map[int]float64{1: 1.0, 2: 0.5}

// neighborInfo is one (weight, distance) pair recorded for a 2-hop expansion
// from some entity.
type neighborInfo struct {
	weight   float64
	distance int
}

// buildAdjacency builds, for every entity touched by edges, the set of
// neighbors reachable within 2 hops. An entity reached at distance 1 through
// one edge is never re-added at distance 2 through another — "entities
// visited more than once at the shortest distance are not re-added".
func buildAdjacency(edges []model.GraphEdge) map[string]map[string]neighborInfo {
	touching := make(map[string][]model.GraphEdge)
	for _, e := range edges {
		touching[e.Subject] = append(touching[e.Subject], e)
		touching[e.Object] = append(touching[e.Object], e)
	}

	adjacency := make(map[string]map[string]neighborInfo)
	for entity := range touching {
		visited := map[string]bool{entity: true}
		neighbors := make(map[string]neighborInfo)
		frontier := []string{entity}

		for distance := 1; distance <= 2; distance++ {
			var next []string
			for _, node := range frontier {
				for _, e := range touching[node] {
					other := otherEndpoint(e.Subject, e.Object, node)
					if visited[other] {
						continue
					}
					visited[other] = true
					neighbors[other] = neighborInfo{weight: e.Weight, distance: distance}
					next = append(next, other)
				}
			}
			frontier = next
		}
		adjacency[entity] = neighbors
	}
	return adjacency
}

// averageConfidenceByKey computes, for a set of non-meta active items, the
// average confidence of all items sharing each canonical key.
func averageConfidenceByKey(items []model.Item) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, it := range items {
		k := it.CanonicalKey()
		if k == "" {
			continue
		}
		sums[k] += it.Confidence
		counts[k]++
	}
	avg := make(map[string]float64, len(sums))
	for k, sum := range sums {
		avg[k] = sum / float64(counts[k])
	}
	return avg
}

// neighborSignal computes §4.8's weighted neighbor average for key k:
// Σ w·discount·entity_confidence[n] / Σ w·discount, over neighbors that have
// at least one item. ok is false when no neighbor qualifies, in which case
// the caller must leave the item's confidence untouched.
func neighborSignal(adjacency map[string]map[string]neighborInfo, entityConfidence map[string]float64, key string) (float64, bool) {
	var numerator, denominator float64
	for neighbor, info := range adjacency[key] {
		conf, ok := entityConfidence[neighbor]
		if !ok {
			continue
		}
		w := info.weight * distanceDiscount[info.distance]
		numerator += w * conf
		denominator += w
	}
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}
