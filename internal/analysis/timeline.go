package analysis

import (
	"sort"
	"time"

	"alertgraph/pkg/models"
)

// Timeline defaults.
const (
	DefaultTimelineGap = 60 * time.Second
	DefaultTimelineMax = 200
)

type burstKey struct {
	src, dst       string
	hasSrc, hasDst bool
	signature      string
}

func keyOf(e *models.AlertEvent) burstKey {
	src, hasSrc := e.Source()
	dst, hasDst := e.Destination()
	return burstKey{src: src, dst: dst, hasSrc: hasSrc, hasDst: hasDst, signature: e.Signature}
}

// BuildTimeline collapses chronologically sorted events into bursts of
// identical (source, destination, signature) alerts separated by at most
// gap. At most maxEntries bursts are returned; once full, remaining events
// are not consumed.
func BuildTimeline(events []models.AlertEvent, gap time.Duration, maxEntries int) []models.TimelineEntry {
	if gap <= 0 {
		gap = DefaultTimelineGap
	}
	if maxEntries <= 0 {
		maxEntries = DefaultTimelineMax
	}

	sorted := make([]*models.AlertEvent, len(events))
	for i := range events {
		sorted[i] = &events[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]models.TimelineEntry, 0)
	var open *models.TimelineEntry
	var openKey burstKey

	for _, e := range sorted {
		k := keyOf(e)
		if open != nil && k == openKey && e.Timestamp.Sub(open.End) <= gap {
			if e.Timestamp.After(open.End) {
				open.End = e.Timestamp
			}
			open.Count++
			continue
		}
		if open != nil {
			out = append(out, *open)
			open = nil
			if len(out) >= maxEntries {
				break
			}
		}
		open = &models.TimelineEntry{
			Start:     e.Timestamp,
			End:       e.Timestamp,
			SrcIP:     e.SrcIP,
			DstIP:     e.DstIP,
			Signature: e.Signature,
			Count:     1,
		}
		openKey = k
	}
	if open != nil && len(out) < maxEntries {
		out = append(out, *open)
	}
	return out
}
