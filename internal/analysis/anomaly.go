package analysis

import (
	"fmt"
	"math"
	"sort"

	"alertgraph/pkg/models"
)

const (
	anomalyZThreshold = 2.5
	anomalyMinExcess  = 5.0
	maxAnomalies      = 20
)

// DetectAnomalies flags source hosts whose alert volume is a statistical
// outlier. A host qualifies when z > 2.5 and its count exceeds mean + 5.
func DetectAnomalies(events []models.AlertEvent) []models.AnomalyScore {
	counts := countBy(events, (*models.AlertEvent).Source)
	if len(counts.order) == 0 {
		return []models.AnomalyScore{}
	}

	n := float64(len(counts.order))
	var sum float64
	for _, ip := range counts.order {
		sum += float64(counts.byKey[ip])
	}
	mean := sum / n

	var variance float64
	for _, ip := range counts.order {
		d := float64(counts.byKey[ip]) - mean
		variance += d * d
	}
	variance /= n
	std := 1.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}

	out := make([]models.AnomalyScore, 0)
	for _, ip := range counts.order {
		cnt := float64(counts.byKey[ip])
		z := (cnt - mean) / std
		if z > anomalyZThreshold && cnt > mean+anomalyMinExcess {
			out = append(out, models.AnomalyScore{
				EntityID: ip,
				Score:    z,
				Reason:   fmt.Sprintf("High alert volume: %d vs mean %.1f", counts.byKey[ip], mean),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxAnomalies {
		out = out[:maxAnomalies]
	}
	return out
}

// hostCounts is an insertion-ordered counter.
type hostCounts struct {
	order []string
	byKey map[string]int
}

func countBy(events []models.AlertEvent, key func(*models.AlertEvent) (string, bool)) hostCounts {
	c := hostCounts{byKey: make(map[string]int)}
	for i := range events {
		k, ok := key(&events[i])
		if !ok {
			continue
		}
		if _, seen := c.byKey[k]; !seen {
			c.order = append(c.order, k)
		}
		c.byKey[k]++
	}
	return c
}
