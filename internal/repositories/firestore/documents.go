package firestore

import (
	"math"
	"strconv"
	"strings"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

// Field names as written by the merchant dashboard.
const (
	fieldName        = "name"
	fieldImageURL    = "imageUrl"
	fieldImageURL2   = "imageUrl2"
	fieldImageURLs   = "imageUrls"
	fieldRank        = "rank"
	fieldIsNew       = "isNew"
	fieldPrice       = "price"
	fieldDiscount    = "discount"
	fieldStock       = "stock"
	fieldDescription = "description"
)

func decodeCategoryFields(id string, data map[string]any) domain.Category {
	return domain.Category{
		ID:       id,
		Name:     stringField(data, fieldName),
		ImageURL: stringField(data, fieldImageURL),
		Rank:     intField(data, fieldRank),
		IsNew:    boolField(data, fieldIsNew),
	}
}

// decodeItemFields maps an item document onto RawItem. Missing discount,
// stock and isNew take their zero values. A document carrying an imageUrls
// array uses the current image schema even when it also has legacy fields.
func decodeItemFields(id string, data map[string]any) domain.RawItem {
	item := domain.RawItem{
		ItemFields: domain.ItemFields{
			ID:          id,
			Name:        stringField(data, fieldName),
			Price:       floatField(data, fieldPrice),
			Discount:    floatField(data, fieldDiscount),
			Rank:        intField(data, fieldRank),
			IsNew:       boolField(data, fieldIsNew),
			Stock:       intField(data, fieldStock),
			Description: stringField(data, fieldDescription),
		},
	}

	if urls, ok := stringListField(data, fieldImageURLs); ok {
		item.Images = domain.CurrentImages(urls...)
		item.Images.Primary = stringField(data, fieldImageURL)
		item.Images.Secondary = stringField(data, fieldImageURL2)
		return item
	}
	primary := stringField(data, fieldImageURL)
	secondary := stringField(data, fieldImageURL2)
	if primary != "" || secondary != "" {
		item.Images = domain.LegacyImages(primary, secondary)
	}
	return item
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(math.Trunc(v))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func boolField(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}

// stringListField reports ok when key holds an array; non-string entries are skipped.
func stringListField(data map[string]any, key string) ([]string, bool) {
	switch v := data[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case []string:
		return append([]string(nil), v...), true
	default:
		return nil, false
	}
}
