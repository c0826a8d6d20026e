package models

import (
	"strconv"
	"time"
)

// AlertEvent is one parsed IDS alert line. Optional fields are nil when the
// line did not carry them.
type AlertEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	GID            *string   `json:"gid"`
	SID            *string   `json:"sid"`
	Rev            *string   `json:"rev"`
	Signature      string    `json:"signature"`
	Classification *string   `json:"classification"`
	Priority       *int      `json:"priority"`
	Protocol       *string   `json:"protocol"`
	SrcIP          *string   `json:"src_ip"`
	SrcPort        *int      `json:"src_port"`
	DstIP          *string   `json:"dst_ip"`
	DstPort        *int      `json:"dst_port"`
	Tags           []IoaTag  `json:"tags,omitempty"`
}

// Source returns the source IP if present.
func (e *AlertEvent) Source() (string, bool) {
	return deref(e.SrcIP)
}

// Destination returns the destination IP if present.
func (e *AlertEvent) Destination() (string, bool) {
	return deref(e.DstIP)
}

// Field returns a flat string view of a named field, empty when unset.
func (e *AlertEvent) Field(name string) string {
	if e == nil {
		return ""
	}
	switch name {
	case "signature":
		return e.Signature
	case "classification":
		return str(e.Classification)
	case "priority":
		return num(e.Priority)
	case "protocol":
		return str(e.Protocol)
	case "src_ip":
		return str(e.SrcIP)
	case "src_port":
		return num(e.SrcPort)
	case "dst_ip":
		return str(e.DstIP)
	case "dst_port":
		return num(e.DstPort)
	case "gid":
		return str(e.GID)
	case "sid":
		return str(e.SID)
	case "rev":
		return str(e.Rev)
	}
	return ""
}

// FieldNames lists the names accepted by Field.
var FieldNames = []string{
	"signature", "classification", "priority", "protocol",
	"src_ip", "src_port", "dst_ip", "dst_port",
	"gid", "sid", "rev",
}

func deref(p *string) (string, bool) {
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
