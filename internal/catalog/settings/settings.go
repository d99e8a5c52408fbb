package settings

import (
	"context"
	"errors"
	"strconv"

	"pimsync_api/internal/syncerr"
)

type API struct {
	Username         string
	Secret           string
	DataOwner        string
	Recipient        string
	RequirementSetID string
	TaxonomyID       string
}

// FieldMap names the PIM attribute (or attribute group) feeding each local field.
type FieldMap struct {
	PostTitle      string
	PostContent    string
	PostExcerpt    string
	GTIN           string
	SKU            string
	ModelNo        string
	ModelsUsedWith string
	RegularPrice   string
	Weight         string
	Length         string
	Width          string
	Height         string
	Brand          string
	PrimaryImage   string

	DigitalAssets string
	Documents     string
	Features      string
	Dimensions    string
	Other         string
	Regulatory    string
}

type Import struct {
	Author           string
	ReprocessSkipped bool
}

// Settings is resolved once per batch.
type Settings struct {
	API      API
	FieldMap FieldMap
	Import   Import
}

type resolver struct {
	ctx   context.Context
	store Store
	err   error
}

func (r *resolver) get(key string) string {
	if r.err != nil {
		return ""
	}
	v, _, err := r.store.Get(r.ctx, key)
	if err != nil {
		r.err = err
	}
	return v
}

func Resolve(ctx context.Context, store Store) (Settings, error) {
	r := &resolver{ctx: ctx, store: store}
	s := Settings{
		API: API{
			Username:         r.get(KeyUsername),
			Secret:           r.get(KeySecret),
			DataOwner:        r.get(KeyDataOwner),
			Recipient:        r.get(KeyRecipient),
			RequirementSetID: r.get(KeyRequirementSet),
			TaxonomyID:       r.get(KeyTaxonomyID),
		},
		FieldMap: FieldMap{
			PostTitle:      r.get(KeyFieldPostTitle),
			PostContent:    r.get(KeyFieldPostContent),
			PostExcerpt:    r.get(KeyFieldPostExcerpt),
			GTIN:           r.get(KeyFieldGTIN),
			SKU:            r.get(KeyFieldSKU),
			ModelNo:        r.get(KeyFieldModelNo),
			ModelsUsedWith: r.get(KeyFieldModelsUsedWith),
			RegularPrice:   r.get(KeyFieldRegularPrice),
			Weight:         r.get(KeyFieldWeight),
			Length:         r.get(KeyFieldLength),
			Width:          r.get(KeyFieldWidth),
			Height:         r.get(KeyFieldHeight),
			Brand:          r.get(KeyFieldBrand),
			PrimaryImage:   r.get(KeyFieldPrimaryImage),
			DigitalAssets:  r.get(KeyFieldDigitalAssets),
			Documents:      r.get(KeyFieldDocuments),
			Features:       r.get(KeyFieldFeatures),
			Dimensions:     r.get(KeyFieldDimensions),
			Other:          r.get(KeyFieldOther),
			Regulatory:     r.get(KeyFieldRegulatory),
		},
		Import: Import{
			Author:           r.get(KeyAuthor),
			ReprocessSkipped: true,
		},
	}
	if raw := r.get(KeyReprocessSkipped); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Settings{}, syncerr.Invalid("settings-invalid", KeyReprocessSkipped+" is not a bool", err)
		}
		s.Import.ReprocessSkipped = v
	}
	if r.err != nil {
		return Settings{}, r.err
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	var errs []error
	if s.API.Username == "" {
		errs = append(errs, errors.New(KeyUsername+" is empty"))
	}
	if s.API.Secret == "" {
		errs = append(errs, errors.New(KeySecret+" is empty"))
	}
	if s.API.DataOwner == "" {
		errs = append(errs, errors.New(KeyDataOwner+" is empty"))
	}
	if len(errs) > 0 {
		return syncerr.Invalid("settings-missing", "required settings are missing", errors.Join(errs...))
	}
	return nil
}
