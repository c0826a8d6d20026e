package snapshot

import (
	"testing"
	"time"

	"alertgraph/internal/graph/adjacency"
	"alertgraph/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestAttackerMembersCountsAlertsPerSource(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []models.AlertEvent{
		{Timestamp: ts, Signature: "A", SrcIP: strPtr("10.0.0.1"), DstIP: strPtr("10.0.0.2")},
		{Timestamp: ts, Signature: "B", SrcIP: strPtr("10.0.0.1"), DstIP: strPtr("10.0.0.3")},
		{Timestamp: ts, Signature: "A", SrcIP: strPtr("10.0.0.2"), DstIP: strPtr("10.0.0.1")},
		{Timestamp: ts, Signature: "A"},
	}

	members := attackerMembers(adjacency.Build(events))
	if len(members) != 2 {
		t.Fatalf("expected 2 attackers, got %d", len(members))
	}
	if members[0].Member != "10.0.0.1" || members[0].Score != 2 {
		t.Fatalf("unexpected first attacker: %+v", members[0])
	}
	if members[1].Member != "10.0.0.2" || members[1].Score != 1 {
		t.Fatalf("unexpected second attacker: %+v", members[1])
	}
}

func TestAttackerMembersEmptyGraph(t *testing.T) {
	if got := attackerMembers(models.NetworkGraph{}); len(got) != 0 {
		t.Fatalf("expected no members, got %d", len(got))
	}
}

func TestMetaFields(t *testing.T) {
	snap := &models.Snapshot{
		ID:         "abc",
		Status:     models.StatusOK,
		Source:     "fast.log",
		AnalyzedAt: time.Unix(1700000000, 0),
		Stats:      models.RunStats{Parsed: 3, Skipped: 1},
		Result:     &models.AnalysisResult{},
	}
	fields := metaFields(snap)
	if len(fields)%2 != 0 {
		t.Fatalf("expected key/value pairs, got %d entries", len(fields))
	}
	got := make(map[string]interface{})
	for i := 0; i < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}
	if got["id"] != "abc" || got["analyzed_at"] != "1700000000" || got["parsed"] != "3" || got["nodes"] != "0" {
		t.Fatalf("unexpected meta fields: %v", got)
	}
}

func TestKeys(t *testing.T) {
	s := &RedisStore{prefix: "ag"}
	if s.latestKey() != "ag:latest" || s.metaKey() != "ag:meta" || s.attackersKey() != "ag:attackers" {
		t.Fatalf("unexpected keys: %s %s %s", s.latestKey(), s.metaKey(), s.attackersKey())
	}
	if s.Name() != "redis" {
		t.Fatalf("unexpected name: %s", s.Name())
	}
}
