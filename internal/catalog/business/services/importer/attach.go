package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pimsync_api/internal/catalog/business/services/assets"
	"pimsync_api/internal/catalog/business/services/requirements"
	"pimsync_api/internal/catalog/business/services/taxonomy"
	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
)

func (s *Session) attachmentPrefix(p *models.RemoteProduct) string {
	fm := s.Settings.FieldMap
	return assets.Prefix(p.AttributeValue(fm.ModelNo, "", ""), p.AttributeValue(fm.SKU, "", ""))
}

func (e *Engine) sideload(ctx context.Context, s *Session, req assets.Request) (storage.AssetRef, error) {
	req.Author = s.Settings.Import.Author
	ref, err := e.sideloader.Sideload(ctx, req)
	if err != nil {
		return ref, err
	}
	if !ref.Existing {
		s.Metrics.SideloadedCount.Add(1)
	}
	return ref, nil
}

func (e *Engine) attachPrimaryImage(ctx context.Context, s *Session, p *models.RemoteProduct, recordID int64) error {
	attrID := s.Settings.FieldMap.PrimaryImage
	assetID := p.AssetValue(attrID, "", "")
	if assetID == "" {
		return nil
	}
	attr, _ := s.Requirements.AttributeByID(attrID)
	prefix := s.attachmentPrefix(p)

	ref, err := e.sideload(ctx, s, assets.Request{
		RemoteAssetID: assetID,
		Kind:          assets.KindImage,
		Ext:           "jpg",
		Title:         assets.Title(prefix, attr.Description),
		Filename:      assets.Filename(prefix, attr.Description),
		AttachedTo:    recordID,
	})
	if err != nil {
		return err
	}
	s.log.Debug("primary image set", "product", p.ID, "attachment", ref.RecordID)
	return e.records.SetMetadata(ctx, recordID, storage.MetaThumbnailID, ref.RecordID)
}

// attachGallery sideloads every asset of the digital assets group. Failed
// assets are left out of the gallery.
func (e *Engine) attachGallery(ctx context.Context, s *Session, p *models.RemoteProduct, recordID int64) error {
	groupID := s.Settings.FieldMap.DigitalAssets
	if groupID == "" {
		return nil
	}
	prefix := s.attachmentPrefix(p)

	var ids []string
	var errs []error
	for _, attr := range s.Requirements.AttributesByGroupID(groupID) {
		assetID := p.AssetValue(attr.ID, "", "")
		if assetID == "" {
			continue
		}
		ref, err := e.sideload(ctx, s, assets.Request{
			RemoteAssetID: assetID,
			Kind:          assets.KindImage,
			Title:         assets.Title(prefix, attr.Description),
			Filename:      assets.Filename(prefix, attr.Description),
			AttachedTo:    recordID,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, strconv.FormatInt(ref.RecordID, 10))
	}

	if err := e.records.SetMetadata(ctx, recordID, storage.MetaImageGallery, strings.Join(ids, ",")); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// attachDocuments turns each document attribute carrying an asset into a PDF
// attachment plus a document record linked to the product.
func (e *Engine) attachDocuments(ctx context.Context, s *Session, p *models.RemoteProduct, recordID int64) []error {
	groupID := s.Settings.FieldMap.Documents
	if groupID == "" {
		return nil
	}
	prefix := s.attachmentPrefix(p)

	var errs []error
	for _, attr := range s.Requirements.AttributesByGroupID(groupID) {
		assetID := p.AssetValue(attr.ID, "", "")
		if assetID == "" {
			continue
		}
		title := assets.Title(prefix, attr.Description)
		ref, err := e.sideload(ctx, s, assets.Request{
			RemoteAssetID: assetID,
			Kind:          assets.KindDocument,
			Ext:           "pdf",
			Title:         title,
			Filename:      assets.Filename(prefix, attr.Description),
			AttachedTo:    recordID,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		documentID, err := e.upsertDocument(ctx, s, assetID, title, ref.RecordID, recordID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.setTermByName(ctx, documentID, assets.DocType(attr.Description), storage.TaxonomyDocType); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Engine) upsertDocument(ctx context.Context, s *Session, assetID, title string, attachmentID, productID int64) (int64, error) {
	fields := storage.Fields{Title: title, Status: statusPublish, Author: s.Settings.Import.Author}
	link := storage.MetaProductLinkPrefix + strconv.FormatInt(productID, 10)

	existing, err := e.records.FindByExternalKey(ctx, storage.PostTypeDocument, assetID)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return e.records.Insert(ctx, storage.Record{
			Type:        storage.PostTypeDocument,
			ExternalKey: assetID,
			Fields:      fields,
			Meta: map[string]interface{}{
				storage.MetaRemoteID:     assetID,
				link:                     productID,
				storage.MetaAttachmentID: attachmentID,
			},
		})
	}

	if err := e.records.Update(ctx, existing.ID, fields); err != nil {
		return 0, err
	}
	if err := e.records.SetMetadata(ctx, existing.ID, storage.MetaAttachmentID, attachmentID); err != nil {
		return 0, err
	}
	if err := e.records.SetMetadata(ctx, existing.ID, link, productID); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func (e *Engine) attachTaxonomy(ctx context.Context, s *Session, p *models.RemoteProduct, recordID int64) error {
	if len(p.TaxonomyNodeIDs) == 0 {
		return nil
	}
	leaf, path, err := s.Taxonomy.Reconcile(ctx, p.TaxonomyNodeIDs)
	if err != nil {
		return err
	}
	if leaf == nil {
		s.log.Info("no category in target taxonomy", "product", p.ID, "taxonomy", s.Settings.API.TaxonomyID)
		return nil
	}
	if err := e.terms.SetObjectTerms(ctx, recordID, storage.TaxonomyRemoteCategory, []int64{leaf.ID}, false); err != nil {
		return err
	}

	attributeIDs := taxonomy.CategoryAttributeIDs(path)
	if len(attributeIDs) == 0 {
		return nil
	}
	var attributes []models.Attribute
	for _, packet := range requirements.DivideToPackets(attributeIDs, requirements.ChunkSize) {
		fetched, err := s.Client.FetchAttributes(ctx, packet)
		if err != nil {
			return fmt.Errorf("category attributes: %w", err)
		}
		attributes = append(attributes, fetched...)
	}
	return e.records.SetMetadata(ctx, recordID, storage.MetaCategoryAttributes, p.AttributesValues(attributes, ""))
}

func (e *Engine) attachBrand(ctx context.Context, s *Session, p *models.RemoteProduct, recordID int64) error {
	brand := strings.TrimSpace(p.AttributeValue(s.Settings.FieldMap.Brand, "", ""))
	if brand == "" {
		return nil
	}
	return e.setTermByName(ctx, recordID, brand, storage.TaxonomyBrand)
}

// setTermByName replaces the object's terms of taxonomy with the named term,
// creating it when missing.
func (e *Engine) setTermByName(ctx context.Context, objectID int64, name, taxonomyName string) error {
	if name == "" {
		return nil
	}
	term, err := e.terms.FindTermByName(ctx, taxonomyName, name)
	if err != nil {
		return err
	}
	if term == nil {
		term, err = e.terms.InsertTerm(ctx, storage.Term{Taxonomy: taxonomyName, Name: name})
		if err != nil {
			return err
		}
	}
	return e.terms.SetObjectTerms(ctx, objectID, taxonomyName, []int64{term.ID}, false)
}
