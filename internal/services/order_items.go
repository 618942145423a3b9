package services

import (
	"strings"

	"print-order-service/internal/domain"
)

var (
	validStyles = []string{"pop_art", "watercolor", "line_art", "oil_painting", "romantic", "comic_book", "vintage", "original"}
	validPapers = []string{"matte", "glossy", "canvas"}
	validFrames = []string{"none", "black", "white", "oak"}
)

const defaultPrintSize = "A4"

// normalizeChoice maps display names such as "Pop Art" onto stored values.
func normalizeChoice(value string, valid []string, fallback string) string {
	if value == "" {
		return fallback
	}
	key := strings.Join(strings.Fields(strings.ToLower(value)), "_")
	for _, v := range valid {
		if v == key || v == value {
			return v
		}
	}
	return fallback
}

func normalizeCustomization(item CreateOrderItem) domain.ItemCustomization {
	size := item.Size
	if size == "" {
		size = defaultPrintSize
	}
	result := item.ResultImageURL
	if result == "" {
		result = item.ImageURL
	}
	return domain.ItemCustomization{
		Style:          normalizeChoice(item.Style, validStyles, "original"),
		Size:           size,
		Paper:          normalizeChoice(item.Paper, validPapers, "matte"),
		Frame:          normalizeChoice(item.Frame, validFrames, "none"),
		SourceImageURL: item.ImageURL,
		ResultImageURL: result,
	}
}
