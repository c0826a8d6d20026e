package analysis

import (
	"fmt"
	"testing"
	"time"

	"alertgraph/pkg/models"
)

func sp(s string) *string { return &s }

func alert(ts time.Time, src, dst, sig string) models.AlertEvent {
	e := models.AlertEvent{Timestamp: ts, Signature: sig}
	if src != "" {
		e.SrcIP = sp(src)
	}
	if dst != "" {
		e.DstIP = sp(dst)
	}
	return e
}

func TestDetectAnomaliesFlagsHeavyHitter(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []models.AlertEvent
	for i := 0; i < 9; i++ {
		events = append(events, alert(t0, fmt.Sprintf("10.0.0.%d", i+1), "10.0.1.1", "S"))
	}
	for i := 0; i < 50; i++ {
		events = append(events, alert(t0, "10.9.9.9", "10.0.1.1", "S"))
	}

	got := DetectAnomalies(events)
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	if got[0].EntityID != "10.9.9.9" {
		t.Fatalf("expected 10.9.9.9 first, got %s", got[0].EntityID)
	}
	if got[0].Reason != "High alert volume: 50 vs mean 5.9" {
		t.Fatalf("unexpected reason: %q", got[0].Reason)
	}
	if got[0].Score < 2.99 || got[0].Score > 3.01 {
		t.Fatalf("expected z-score near 3, got %f", got[0].Score)
	}
}

func TestDetectAnomaliesUniformPopulationIsEmpty(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []models.AlertEvent
	for h := 0; h < 6; h++ {
		for i := 0; i < 5; i++ {
			events = append(events, alert(t0, fmt.Sprintf("10.0.0.%d", h), "", "S"))
		}
	}
	if got := DetectAnomalies(events); len(got) != 0 {
		t.Fatalf("expected no anomalies, got %+v", got)
	}
}

func TestDetectAnomaliesWithoutSources(t *testing.T) {
	got := DetectAnomalies([]models.AlertEvent{alert(time.Now(), "", "10.0.0.1", "S")})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %+v", got)
	}
}

func TestDetectAnomaliesCapsAndSorts(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []models.AlertEvent
	for h := 0; h < 2000; h++ {
		events = append(events, alert(t0, fmt.Sprintf("quiet-%d", h), "", "S"))
	}
	for h := 0; h < 25; h++ {
		for i := 0; i < 100+h; i++ {
			events = append(events, alert(t0, fmt.Sprintf("loud-%d", h), "", "S"))
		}
	}
	got := DetectAnomalies(events)
	if len(got) != maxAnomalies {
		t.Fatalf("expected %d anomalies, got %d", maxAnomalies, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("anomalies not sorted at %d", i)
		}
	}
	if got[0].EntityID != "loud-24" {
		t.Fatalf("expected loud-24 first, got %s", got[0].EntityID)
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize([]models.AlertEvent{
		alert(t0, "A", "X", "S"),
		alert(t0, "A", "Y", "S"),
		alert(t0, "B", "X", "S"),
	})
	if s.Attacker == nil || *s.Attacker != "A" || s.AttackerCount != 2 {
		t.Fatalf("unexpected attacker: %v %d", s.Attacker, s.AttackerCount)
	}
	if s.Defender == nil || *s.Defender != "X" || s.DefenderCount != 2 {
		t.Fatalf("unexpected defender: %v %d", s.Defender, s.DefenderCount)
	}
}

func TestSummarizeTieGoesToFirstSeen(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize([]models.AlertEvent{
		alert(t0, "B", "Y", "S"),
		alert(t0, "A", "X", "S"),
	})
	if *s.Attacker != "B" || *s.Defender != "Y" {
		t.Fatalf("expected first-seen hosts, got %s %s", *s.Attacker, *s.Defender)
	}
}

func TestBuildTimelineSplitsOnGap(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := BuildTimeline([]models.AlertEvent{
		alert(t0.Add(300*time.Second), "A", "B", "S"),
		alert(t0, "A", "B", "S"),
		alert(t0.Add(30*time.Second), "A", "B", "S"),
	}, 60*time.Second, 200)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].Start.Equal(t0) || !got[0].End.Equal(t0.Add(30*time.Second)) || got[0].Count != 2 {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if !got[1].Start.Equal(t0.Add(300*time.Second)) || !got[1].End.Equal(got[1].Start) || got[1].Count != 1 {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
	if *got[0].SrcIP != "A" || *got[0].DstIP != "B" || got[0].Signature != "S" {
		t.Fatalf("unexpected entry key: %+v", got[0])
	}
}

func TestBuildTimelineKeyChangeOpensEntry(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := BuildTimeline([]models.AlertEvent{
		alert(t0, "A", "B", "S"),
		alert(t0.Add(time.Second), "A", "C", "S"),
		alert(t0.Add(2*time.Second), "A", "B", "S"),
		alert(t0.Add(3*time.Second), "", "", "S"),
		alert(t0.Add(4*time.Second), "", "", "S"),
	}, 0, 0)
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	if got[3].SrcIP != nil || got[3].Count != 2 {
		t.Fatalf("expected endpointless burst of 2, got %+v", got[3])
	}
}

func TestBuildTimelineStopsAtMax(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []models.AlertEvent
	for i := 0; i < 10; i++ {
		events = append(events, alert(t0.Add(time.Duration(i)*time.Hour), "A", "B", "S"))
	}
	got := BuildTimeline(events, time.Minute, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if !got[2].Start.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("expected oldest bursts kept, got %v", got[2].Start)
	}
}

func TestRunEmpty(t *testing.T) {
	res := Run(nil, Options{})
	if len(res.Graph.Nodes) != 0 || len(res.Graph.Edges) != 0 || len(res.Anomalies) != 0 || len(res.Timeline) != 0 || len(res.RecentEvents) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.MostAggressiveAttacker != nil || res.MostAttackedDefender != nil {
		t.Fatalf("expected null attacker/defender")
	}
	if res.MostAggressiveAttackerCount != 0 || res.MostAttackedDefenderCount != 0 {
		t.Fatalf("expected zero counts")
	}
}

func TestRunWindowsToLatestDay(t *testing.T) {
	latest := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var events []models.AlertEvent
	for d := 9; d >= 1; d-- {
		events = append(events, alert(latest.Add(-time.Duration(d)*24*time.Hour-time.Minute), "old", "victim", "OLD"))
	}
	for i := 0; i < 150; i++ {
		events = append(events, alert(latest.Add(-time.Duration(i)*time.Minute), "new", "victim", "NEW"))
	}

	res := Run(events, Options{})
	if *res.MostAggressiveAttacker != "new" || res.MostAggressiveAttackerCount != 150 {
		t.Fatalf("expected only windowed events, got %s=%d", *res.MostAggressiveAttacker, res.MostAggressiveAttackerCount)
	}
	for _, n := range res.Graph.Nodes {
		if n.ID == "old" {
			t.Fatalf("did not expect node for host outside window")
		}
	}
	if len(res.RecentEvents) != 100 {
		t.Fatalf("expected 100 recent events, got %d", len(res.RecentEvents))
	}
	if !res.RecentEvents[0].Timestamp.Equal(latest) {
		t.Fatalf("expected newest first, got %v", res.RecentEvents[0].Timestamp)
	}
	for i := 1; i < len(res.RecentEvents); i++ {
		if res.RecentEvents[i].Timestamp.After(res.RecentEvents[i-1].Timestamp) {
			t.Fatalf("recent events not newest first at %d", i)
		}
	}
	if len(res.Timeline) != 1 || res.Timeline[0].Count != 150 {
		t.Fatalf("expected one 150-event burst, got %+v", res.Timeline)
	}
}

func TestWindowIncludesBoundary(t *testing.T) {
	latest := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := Window([]models.AlertEvent{
		alert(latest.Add(-24*time.Hour), "a", "", "S"),
		alert(latest, "b", "", "S"),
		alert(latest.Add(-24*time.Hour-time.Microsecond), "c", "", "S"),
	}, 24*time.Hour)
	if len(got) != 2 {
		t.Fatalf("expected 2 events in window, got %d", len(got))
	}
}
