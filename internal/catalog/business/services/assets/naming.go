package assets

import (
	"strings"

	"pimsync_api/internal/catalog/storage"
)

const (
	pdfSuffix     = " - PDF"
	defaultPrefix = "PRODUCT"
)

// Prefix picks the product identifier used in attachment titles.
func Prefix(modelNo, sku string) string {
	if modelNo = strings.TrimSpace(modelNo); modelNo != "" {
		return modelNo
	}
	if sku = strings.TrimSpace(sku); sku != "" {
		return sku
	}
	return defaultPrefix
}

// DocType strips the " - PDF" marker from an attribute description.
func DocType(description string) string {
	return strings.TrimSpace(strings.ReplaceAll(description, pdfSuffix, ""))
}

func Title(prefix, description string) string {
	return prefix + " - " + DocType(description)
}

func Filename(prefix, description string) string {
	return storage.Slugify(prefix + "-" + DocType(description))
}
