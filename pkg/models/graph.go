package models

import "time"

// Node types.
const (
	NodeHost  = "host"
	NodeAlert = "alert"
)

// GraphNode is a host or an aggregated alert signature.
type GraphNode struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     string    `json:"type"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// GraphEdge is a directed host->alert or host->host relation.
type GraphEdge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Count     int      `json:"count"`
	Protocols []string `json:"protocols"`
	Alerts    []string `json:"alerts"`
}

// NetworkGraph is the node and edge snapshot of one analysis run.
type NetworkGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
