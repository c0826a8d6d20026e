package analysis

import "alertgraph/pkg/models"

// Summary holds the most active attacker and most targeted defender.
type Summary struct {
	Attacker      *string
	AttackerCount int
	Defender      *string
	DefenderCount int
}

// Summarize finds the top source and destination hosts. Ties go to the host
// seen first in event order.
func Summarize(events []models.AlertEvent) Summary {
	var s Summary
	s.Attacker, s.AttackerCount = top(countBy(events, (*models.AlertEvent).Source))
	s.Defender, s.DefenderCount = top(countBy(events, (*models.AlertEvent).Destination))
	return s
}

func top(c hostCounts) (*string, int) {
	var best *string
	bestCount := 0
	for _, k := range c.order {
		if cnt := c.byKey[k]; cnt > bestCount {
			host := k
			best, bestCount = &host, cnt
		}
	}
	return best, bestCount
}
