package models

import (
	"encoding/json"
	"time"

	"pimsync_api/internal/syncerr"
)

const (
	TypeProduct         = "Product"
	TypeVerifiedContent = "VerifiedContent"
	TypeTaxonomyNode    = "TaxonomyNode"
	TypeAttribute       = "Attribute"

	DefaultLanguage = "en-US"
)

// AttributeValue is one attribute (or asset) entry of a component.
type AttributeValue struct {
	AttributeID string    `json:"AttributeId"`
	Value       FlexValue `json:"Value"`
}

// Component groups language keyed attribute values and assets.
type Component struct {
	AttributeValues map[string][]AttributeValue `json:"AttributeValues,omitempty"`
	Assets          map[string][]AttributeValue `json:"Assets,omitempty"`
}

type productPayload struct {
	Type             string          `json:"Type"`
	ID               string          `json:"id"`
	Archived         bool            `json:"Archived"`
	ArchivedMetadata json.RawMessage `json:"ArchivedMetadata,omitempty"`
	Components       []Component     `json:"Components"`
	RecordDate       string          `json:"RecordDate"`
	TaxonomyNodeIDs  []string        `json:"TaxonomyNodeIds"`
	AuditInfo        json.RawMessage `json:"AuditInfo,omitempty"`
}

type verifiedContentPayload struct {
	Type             string          `json:"Type"`
	ID               string          `json:"id"`
	VerificationDate string          `json:"VerificationDate"`
	AuditInfo        json.RawMessage `json:"AuditInfo,omitempty"`
	Product          *productPayload `json:"Product"`
}

// RemoteProduct is a product as returned by the PIM, flattened out of the
// verified content envelope when there is one.
type RemoteProduct struct {
	ID               string
	Archived         bool
	ArchivedMetadata json.RawMessage
	Components       []Component
	RecordDate       string
	TaxonomyNodeIDs  []string
	AuditInfo        json.RawMessage

	IsVerified       bool
	VerificationDate string
	LastVerifiedAt   time.Time
}

// DecodeProduct accepts a bare Product payload (unverified) or a
// VerifiedContent envelope wrapping one.
func DecodeProduct(data []byte) (*RemoteProduct, error) {
	var head struct {
		Type string `json:"Type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, syncerr.TypeMismatch("product-decode", "malformed product payload", err)
	}

	switch head.Type {
	case TypeProduct:
		var p productPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, syncerr.TypeMismatch("product-decode", "malformed product payload", err)
		}
		return p.toRemote(), nil

	case TypeVerifiedContent:
		var vc verifiedContentPayload
		if err := json.Unmarshal(data, &vc); err != nil {
			return nil, syncerr.TypeMismatch("product-decode", "malformed verified content payload", err)
		}
		if vc.Product == nil {
			return nil, syncerr.TypeMismatch("verified-content-error", "unable to set verified content item", nil)
		}
		product := vc.Product.toRemote()
		if product.ID == "" {
			product.ID = vc.ID
		}
		if len(product.AuditInfo) == 0 {
			product.AuditInfo = vc.AuditInfo
		}
		product.IsVerified = true
		product.VerificationDate = vc.VerificationDate
		if ts, err := ParseTimestamp(vc.VerificationDate); err == nil {
			product.LastVerifiedAt = ts
		}
		return product, nil
	}

	return nil, syncerr.TypeMismatch("product-error", "product type missing from endpoint response: "+head.Type, nil)
}

func (p *productPayload) toRemote() *RemoteProduct {
	return &RemoteProduct{
		ID:               p.ID,
		Archived:         p.Archived,
		ArchivedMetadata: p.ArchivedMetadata,
		Components:       p.Components,
		RecordDate:       p.RecordDate,
		TaxonomyNodeIDs:  p.TaxonomyNodeIDs,
		AuditInfo:        p.AuditInfo,
	}
}

// AttributeValue returns the value of the first component carrying attributeID.
func (p *RemoteProduct) AttributeValue(attributeID, def, lang string) string {
	return lookup(p.Components, func(c Component) []AttributeValue {
		return c.AttributeValues[langOrDefault(lang)]
	}, attributeID, def)
}

// AssetValue works like AttributeValue over the asset lists.
func (p *RemoteProduct) AssetValue(attributeID, def, lang string) string {
	return lookup(p.Components, func(c Component) []AttributeValue {
		return c.Assets[langOrDefault(lang)]
	}, attributeID, def)
}

type AttributeWithValue struct {
	Attribute Attribute
	Value     string
}

// AttributesValues resolves every attribute and drops the empty ones.
func (p *RemoteProduct) AttributesValues(attributes []Attribute, lang string) []AttributeWithValue {
	out := make([]AttributeWithValue, 0, len(attributes))
	for _, attr := range attributes {
		value := p.AttributeValue(attr.ID, "", lang)
		if value == "" {
			continue
		}
		out = append(out, AttributeWithValue{Attribute: attr, Value: value})
	}
	return out
}

func lookup(components []Component, list func(Component) []AttributeValue, attributeID, def string) string {
	if attributeID == "" {
		return def
	}
	for _, component := range components {
		for _, v := range list(component) {
			if v.AttributeID == attributeID {
				return v.Value.String()
			}
		}
	}
	return def
}

func langOrDefault(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
