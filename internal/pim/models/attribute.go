package models

import "encoding/json"

type Attribute struct {
	Type        string `json:"Type,omitempty"`
	ID          string `json:"id"`
	Description string `json:"Description"`
	FormatType  string `json:"FormatType"`
}

// AttributeRef is the raw reference the requirement set carries before
// its attributes get hydrated.
type AttributeRef struct {
	AttributeID string `json:"AttributeId"`
}

type AttributeGroup struct {
	ID              string `json:"id"`
	Name            string `json:"Name"`
	IsCategoryGroup bool   `json:"IsCategoryGroup"`

	RawAttributes []json.RawMessage `json:"Attributes"`
	Attributes    []Attribute       `json:"-"`
}

// AttributeIDs returns the ids referenced by the group in declaration order.
func (g *AttributeGroup) AttributeIDs() []string {
	ids := make([]string, 0, len(g.RawAttributes))
	for _, raw := range g.RawAttributes {
		var probe struct {
			Type        string `json:"Type"`
			ID          string `json:"id"`
			AttributeID string `json:"AttributeId"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		switch {
		case probe.Type == TypeAttribute && probe.ID != "":
			ids = append(ids, probe.ID)
		case probe.AttributeID != "":
			ids = append(ids, probe.AttributeID)
		}
	}
	return ids
}

type RequirementSet struct {
	ID                  string           `json:"id"`
	Name                string           `json:"Name"`
	DataOwner           string           `json:"DataOwner"`
	TargetParty         string           `json:"TargetParty"`
	RuleSetDefinitionID string           `json:"RuleSetDefinitionId"`
	NeedsPublish        bool             `json:"NeedsPublish"`
	LastPublishedDate   string           `json:"LastPublishedDate"`
	Groups              []AttributeGroup `json:"Groups"`
}
