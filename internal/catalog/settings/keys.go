package settings

const (
	KeyUsername         = "api.username"
	KeySecret           = "api.secret"
	KeyDataOwner        = "api.data_owner"
	KeyRecipient        = "api.recipient"
	KeyRequirementSet   = "api.requirement_set"
	KeyTaxonomyID       = "api.taxonomy_id"
	KeyAuthor           = "import.user"
	KeyReprocessSkipped = "import.reprocess_skipped"

	KeyFieldPostTitle      = "field_map.post_title"
	KeyFieldPostContent    = "field_map.post_content"
	KeyFieldPostExcerpt    = "field_map.post_excerpt"
	KeyFieldGTIN           = "field_map.gtin"
	KeyFieldSKU            = "field_map.sku"
	KeyFieldModelNo        = "field_map.model_no"
	KeyFieldModelsUsedWith = "field_map.models_used_with"
	KeyFieldRegularPrice   = "field_map.regular_price"
	KeyFieldWeight         = "field_map.weight"
	KeyFieldLength         = "field_map.length"
	KeyFieldWidth          = "field_map.width"
	KeyFieldHeight         = "field_map.height"
	KeyFieldBrand          = "field_map.brand"
	KeyFieldPrimaryImage   = "field_map.primary_image"
	KeyFieldDigitalAssets  = "field_map.digital_assets"
	KeyFieldDocuments      = "field_map.documents"
	KeyFieldFeatures       = "field_map.features"
	KeyFieldDimensions     = "field_map.dimensions"
	KeyFieldOther          = "field_map.other"
	KeyFieldRegulatory     = "field_map.regulatory"
)
