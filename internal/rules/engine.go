package rules

import "alertgraph/pkg/models"

// Engine tags alerts with rule matches.
type Engine interface {
	Apply(event *models.AlertEvent) []models.IoaTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *models.AlertEvent) []models.IoaTag {
	return nil
}
