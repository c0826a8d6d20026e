package models

import "time"

// AnomalyScore flags a source host with unusual alert volume.
type AnomalyScore struct {
	EntityID string  `json:"entity_id"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// TimelineEntry is a burst of same-key alerts close together in time.
type TimelineEntry struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	SrcIP     *string   `json:"src_ip"`
	DstIP     *string   `json:"dst_ip"`
	Signature string    `json:"signature"`
	Count     int       `json:"count"`
}

// AnalysisResult is the full payload of one analysis run.
type AnalysisResult struct {
	Graph                       NetworkGraph    `json:"graph"`
	Anomalies                   []AnomalyScore  `json:"anomalies"`
	RecentEvents                []AlertEvent    `json:"recent_events"`
	MostAggressiveAttacker      *string         `json:"most_aggressive_attacker"`
	MostAggressiveAttackerCount int             `json:"most_aggressive_attacker_count"`
	MostAttackedDefender        *string         `json:"most_attacked_defender"`
	MostAttackedDefenderCount   int             `json:"most_attacked_defender_count"`
	Timeline                    []TimelineEntry `json:"timeline"`
}
