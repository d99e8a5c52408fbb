package importer

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
)

const statusPublish = "publish"

func (e *Engine) importProduct(ctx context.Context, s *Session, remoteID string, force bool) ProductStatus {
	status := ProductStatus{RemoteID: remoteID}
	log := s.log.With("product", remoteID)

	product, err := s.Client.FetchProduct(ctx, remoteID)
	if err != nil {
		return status.withError(ActionFailed, err)
	}
	if !product.IsVerified {
		return status.withError(ActionRejected, syncerr.NotVerified("product-not-verified", "product is not verified, skipping", nil))
	}

	existing, err := e.records.FindByExternalKey(ctx, storage.PostTypeProduct, product.ID)
	if err != nil {
		return status.withError(ActionFailed, err)
	}

	fields := s.postFields(product)
	meta := s.metaInput(product)

	if existing == nil {
		log.Info("creating a new product")
		id, err := e.records.Insert(ctx, storage.Record{
			Type:        storage.PostTypeProduct,
			ExternalKey: product.ID,
			Fields:      fields,
			Meta:        meta,
		})
		if err != nil {
			return status.withError(ActionFailed, err)
		}
		status.RecordID = id
		status.Action = ActionInserted
	} else {
		status.RecordID = existing.ID
		watermark, err := storage.GetString(ctx, e.records, existing.ID, storage.MetaLastVerifiedAt)
		if err != nil {
			return status.withError(ActionFailed, err)
		}
		local, _ := models.ParseTimestamp(watermark)
		log.Debug("last verified", "local", local.Format(time.DateTime), "remote", product.LastVerifiedAt.Format(time.DateTime), "force", force)

		if product.LastVerifiedAt.After(local) || force {
			log.Info("updating existing product", "record", existing.ID)
			if err := e.records.Update(ctx, existing.ID, fields); err != nil {
				return status.withError(ActionFailed, err)
			}
			for _, key := range sortedKeys(meta) {
				if err := e.records.SetMetadata(ctx, existing.ID, key, meta[key]); err != nil {
					return status.withError(ActionFailed, err)
				}
			}
			status.Action = ActionUpdated
		} else {
			log.Info("skipped update", "record", existing.ID)
			status.Action = ActionSkipped
			if !s.Settings.Import.ReprocessSkipped {
				return status
			}
		}
	}

	status.Notes = e.attach(ctx, s, product, status.RecordID)
	return status
}

// attach runs the secondary steps. Their failures never fail the product.
func (e *Engine) attach(ctx context.Context, s *Session, product *models.RemoteProduct, recordID int64) []string {
	var notes []string
	note := func(step string, err error) {
		if err != nil {
			s.log.Warn(step+" failed", "product", product.ID, "error", err)
			notes = append(notes, step+": "+err.Error())
		}
	}

	note("primary image", e.attachPrimaryImage(ctx, s, product, recordID))
	note("gallery", e.attachGallery(ctx, s, product, recordID))
	for _, err := range e.attachDocuments(ctx, s, product, recordID) {
		note("document", err)
	}
	note("taxonomy", e.attachTaxonomy(ctx, s, product, recordID))
	note("brand", e.attachBrand(ctx, s, product, recordID))
	return notes
}

func (s *Session) postFields(p *models.RemoteProduct) storage.Fields {
	fm := s.Settings.FieldMap
	return storage.Fields{
		Title:   p.AttributeValue(fm.PostTitle, "", ""),
		Content: p.AttributeValue(fm.PostContent, "", ""),
		Excerpt: p.AttributeValue(fm.PostExcerpt, "", ""),
		Status:  statusPublish,
		Author:  s.Settings.Import.Author,
	}
}

func (s *Session) metaInput(p *models.RemoteProduct) map[string]interface{} {
	fm := s.Settings.FieldMap
	value := func(attributeID string) string { return p.AttributeValue(attributeID, "", "") }
	price := parseNumber(value(fm.RegularPrice))

	return map[string]interface{}{
		storage.MetaRemoteID:         p.ID,
		storage.MetaLastVerifiedAt:   p.VerificationDate,
		storage.MetaIsVerified:       p.IsVerified,
		storage.MetaArchived:         p.Archived,
		storage.MetaArchivedMetadata: p.ArchivedMetadata,
		storage.MetaRecordDate:       p.RecordDate,
		storage.MetaAuditInfo:        p.AuditInfo,
		storage.MetaGTIN:             value(fm.GTIN),
		storage.MetaSKU:              value(fm.SKU),
		storage.MetaModelNo:          value(fm.ModelNo),
		storage.MetaModelsUsedWith:   value(fm.ModelsUsedWith),
		storage.MetaRegularPrice:     price,
		storage.MetaPrice:            price,
		storage.MetaWeight:           parseNumber(value(fm.Weight)),
		storage.MetaLength:           parseNumber(value(fm.Length)),
		storage.MetaWidth:            parseNumber(value(fm.Width)),
		storage.MetaHeight:           parseNumber(value(fm.Height)),
		storage.MetaFeatures:         s.groupValues(p, fm.Features),
		storage.MetaDimensions:       s.groupValues(p, fm.Dimensions),
		storage.MetaOther:            s.groupValues(p, fm.Other),
		storage.MetaRegulatory:       s.groupValues(p, fm.Regulatory),
	}
}

func (s *Session) groupValues(p *models.RemoteProduct, groupID string) []models.AttributeWithValue {
	if groupID == "" {
		return []models.AttributeWithValue{}
	}
	return p.AttributesValues(s.Requirements.AttributesByGroupID(groupID), "")
}

// parseNumber drops thousands separators and reads the leading number,
// yielding 0 when there is none.
func parseNumber(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	end := 0
	seenDot := false
	for i, r := range raw {
		sign := i == 0 && (r == '-' || r == '+')
		dot := r == '.' && !seenDot
		if !sign && !dot && (r < '0' || r > '9') {
			break
		}
		if dot {
			seenDot = true
		}
		end = i + 1
	}
	v, err := strconv.ParseFloat(raw[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
