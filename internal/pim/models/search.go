package models

const SubscriptionStatusAll = "All"

type ProductSearchFilter struct {
	DataOwner                string   `json:"DataOwner"`
	Archived                 bool     `json:"Archived"`
	Desc                     bool     `json:"Desc"`
	Recipients               []string `json:"Recipients,omitempty"`
	SubscriptionStatusFilter string   `json:"SubscriptionStatusFilter,omitempty"`
}

type SearchRequest struct {
	DataOwner           string              `json:"DataOwner"`
	ProductSearchFilter ProductSearchFilter `json:"ProductSearchFilter"`
}

type SearchResult struct {
	Results       []string `json:"Results"`
	TotalHitCount int      `json:"TotalHitCount"`
	ResultCount   int      `json:"ResultCount"`
}

type AuthResponse struct {
	Value string `json:"Value"`
}
