package adjacency

import (
	"time"

	"alertgraph/pkg/models"
)

const (
	alertIDPrefix   = "sig:"
	maxAlertIDRunes = 120
	maxLabelRunes   = 40
)

type nodeKey struct {
	typ string
	id  string
}

type edgeKey struct {
	source string
	target string
}

// Builder folds alert events into a host/alert graph. Nodes and edges live
// in insertion-ordered slices indexed by key.
type Builder struct {
	nodes     []models.GraphNode
	nodeIndex map[nodeKey]int
	edges     []models.GraphEdge
	edgeIndex map[edgeKey]int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeIndex: make(map[nodeKey]int),
		edgeIndex: make(map[edgeKey]int),
	}
}

// Build returns the graph for events.
func Build(events []models.AlertEvent) models.NetworkGraph {
	b := NewBuilder()
	for i := range events {
		b.Add(&events[i])
	}
	return b.Graph()
}

// Add folds one event into the graph.
func (b *Builder) Add(event *models.AlertEvent) {
	if event == nil {
		return
	}
	src, hasSrc := event.Source()
	dst, hasDst := event.Destination()

	if hasSrc {
		b.touchNode(models.NodeHost, src, src, event.Timestamp)
	}
	if hasDst && !(hasSrc && dst == src) {
		b.touchNode(models.NodeHost, dst, dst, event.Timestamp)
	}

	sigID := AlertNodeID(event.Signature)
	b.touchNode(models.NodeAlert, sigID, truncateRunes(event.Signature, maxLabelRunes), event.Timestamp)

	if hasSrc {
		b.touchEdge(src, sigID, event)
	}
	if hasSrc && hasDst {
		b.touchEdge(src, dst, event)
	}
}

// Graph returns a copy of the current node and edge set.
func (b *Builder) Graph() models.NetworkGraph {
	g := models.NetworkGraph{
		Nodes: make([]models.GraphNode, len(b.nodes)),
		Edges: make([]models.GraphEdge, len(b.edges)),
	}
	copy(g.Nodes, b.nodes)
	for i, e := range b.edges {
		e.Protocols = append([]string{}, e.Protocols...)
		e.Alerts = append([]string{}, e.Alerts...)
		g.Edges[i] = e
	}
	return g
}

func (b *Builder) touchNode(typ, id, label string, ts time.Time) {
	k := nodeKey{typ: typ, id: id}
	if idx, ok := b.nodeIndex[k]; ok {
		n := &b.nodes[idx]
		n.Count++
		if ts.After(n.LastSeen) {
			n.LastSeen = ts
		}
		return
	}
	b.nodeIndex[k] = len(b.nodes)
	b.nodes = append(b.nodes, models.GraphNode{
		ID:       id,
		Label:    label,
		Type:     typ,
		Count:    1,
		LastSeen: ts,
	})
}

func (b *Builder) touchEdge(source, target string, event *models.AlertEvent) {
	k := edgeKey{source: source, target: target}
	idx, ok := b.edgeIndex[k]
	if !ok {
		idx = len(b.edges)
		b.edgeIndex[k] = idx
		b.edges = append(b.edges, models.GraphEdge{
			Source:    source,
			Target:    target,
			Protocols: []string{},
			Alerts:    []string{},
		})
	}
	e := &b.edges[idx]
	e.Count++
	e.Alerts = appendUnique(e.Alerts, event.Signature)
	if event.Protocol != nil && *event.Protocol != "" {
		e.Protocols = appendUnique(e.Protocols, *event.Protocol)
	}
}

// AlertNodeID is the namespaced, length-bounded node id for a signature.
func AlertNodeID(signature string) string {
	return truncateRunes(alertIDPrefix+signature, maxAlertIDRunes)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
