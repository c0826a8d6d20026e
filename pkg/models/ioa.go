package models

// IoaTag is a rule match annotation attached to an alert.
type IoaTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// Key identifies the rule behind the tag.
func (t IoaTag) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}
