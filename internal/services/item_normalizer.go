package services

import (
	"sort"
	"strings"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
)

// NormalizeItem resolves the stored image representation of raw into a single
// ordered image list. Blank URLs are dropped. When a current-schema list holds
// no usable URL the legacy fields are consulted before giving up.
func NormalizeItem(raw domain.RawItem) domain.NormalizedItem {
	images := make([]string, 0, imageCapacity(raw.Images))
	if raw.Images.Schema == domain.ImageSchemaCurrent {
		images = appendNonBlank(images, raw.Images.URLs...)
	}
	if len(images) == 0 {
		images = appendNonBlank(images, raw.Images.Primary, raw.Images.Secondary)
	}
	return domain.NormalizedItem{
		ItemFields: raw.ItemFields,
		Images:     images,
	}
}

// NormalizeItems normalizes every record and orders the result by rank,
// highest first. Items sharing a rank keep their store order.
func NormalizeItems(raw []domain.RawItem) []domain.NormalizedItem {
	items := make([]domain.NormalizedItem, 0, len(raw))
	for _, record := range raw {
		items = append(items, NormalizeItem(record))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Rank > items[j].Rank
	})
	return items
}

func appendNonBlank(dst []string, urls ...string) []string {
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		dst = append(dst, url)
	}
	return dst
}

func imageCapacity(set domain.ImageSet) int {
	if n := len(set.URLs); n > 2 {
		return n
	}
	return 2
}
