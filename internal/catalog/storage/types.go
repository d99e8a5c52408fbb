package storage

import (
	"encoding/json"
	"time"
)

type PostType string

const (
	PostTypeProduct    PostType = "product"
	PostTypeAttachment PostType = "attachment"
	PostTypeDocument   PostType = "document"
)

const (
	TaxonomyRemoteCategory  = "pim_cat"
	TaxonomyProductCategory = "product_cat"
	TaxonomyBrand           = "brand"
	TaxonomyDocType         = "doc_type"
)

// Record meta keys written by the importer.
const (
	MetaRemoteID           = "_pim_id"
	MetaLastVerifiedAt     = "_last_verified_date_time"
	MetaIsVerified         = "_is_verified"
	MetaArchived           = "_archived"
	MetaArchivedMetadata   = "_archived_metadata"
	MetaRecordDate         = "_record_date"
	MetaAuditInfo          = "_audit_info"
	MetaGTIN               = "_gtin"
	MetaSKU                = "_sku"
	MetaModelNo            = "_model_no"
	MetaModelsUsedWith     = "_models_used_with"
	MetaRegularPrice       = "_regular_price"
	MetaPrice              = "_price"
	MetaWeight             = "_weight"
	MetaLength             = "_length"
	MetaWidth              = "_width"
	MetaHeight             = "_height"
	MetaFeatures           = "_features"
	MetaDimensions         = "_dimensions"
	MetaOther              = "_other"
	MetaRegulatory         = "_regulatory"
	MetaCategoryAttributes = "_category_attributes"
	MetaThumbnailID        = "_thumbnail_id"
	MetaImageGallery       = "_product_image_gallery"
	MetaAttachmentID       = "_attachment_id"
	MetaProductLinkPrefix  = "_product_id_"

	MetaRemoteImage    = "_pim_image"
	MetaRemoteDocument = "_pim_document"
	MetaBlobKey        = "_blob_key"
	MetaBlobURL        = "_blob_url"
	MetaFilename       = "_filename"
)

// Term meta keys.
const (
	TermMetaRemoteID         = "_pim_id"
	TermMetaRemoteParentID   = "_pim_parent_id"
	TermMetaRemoteTaxonomyID = "_pim_taxonomy_id"
	TermMetaLinkedCategories = "linked_product_categories"
)

type Fields struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Excerpt  string `json:"excerpt"`
	Status   string `json:"status"`
	Author   string `json:"author"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
	MimeType string `json:"mime_type"`
	GUID     string `json:"guid"`
}

// Record is a local post. ExternalKey holds the remote id it was imported from
// and is unique per post type. Meta is only read by Insert.
type Record struct {
	ID          int64
	Type        PostType
	ExternalKey string
	Fields      Fields
	Meta        map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Term struct {
	ID       int64
	Taxonomy string
	Name     string
	Slug     string
	ParentID int64
	Count    int
	Meta     map[string]string
}

func (t *Term) MetaValue(key string) string {
	if t == nil || t.Meta == nil {
		return ""
	}
	return t.Meta[key]
}

// AssetRef points at a sideloaded attachment.
type AssetRef struct {
	RecordID      int64
	RemoteAssetID string
	BlobKey       string
	URL           string
	Filename      string
	MimeType      string
	Existing      bool
}

func encodeMeta(value interface{}) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}
	return json.Marshal(value)
}
