package models

type NodeAttribute struct {
	BaseAttribute string `json:"BaseAttribute"`
}

type TaxonomyNode struct {
	Type        string          `json:"Type"`
	ID          string          `json:"id"`
	TaxonomyID  string          `json:"TaxonomyId"`
	Description string          `json:"Description"`
	ParentID    string          `json:"ParentId"`
	Attributes  []NodeAttribute `json:"Attributes,omitempty"`
}

// Reverse returns a copy of a leaf first path ordered root first.
func Reverse(path []TaxonomyNode) []TaxonomyNode {
	out := make([]TaxonomyNode, len(path))
	for i, node := range path {
		out[len(path)-1-i] = node
	}
	return out
}
