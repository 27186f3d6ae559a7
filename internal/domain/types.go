package domain

// Category groups catalog items under a merchant-assigned rank.
type Category struct {
	ID       string
	Name     string
	ImageURL string
	Rank     int
	IsNew    bool
}

// CategoryFilter narrows the category listing shown to shoppers.
type CategoryFilter string

const (
	// CategoryFilterAll lists every category.
	CategoryFilterAll CategoryFilter = "all"
	// CategoryFilterNew lists categories flagged as new.
	CategoryFilterNew CategoryFilter = "new"
	// CategoryFilterTrending lists categories ranked above TrendingRankThreshold.
	CategoryFilterTrending CategoryFilter = "trending"
)

// TrendingRankThreshold is the rank a category must exceed to be considered trending.
const TrendingRankThreshold = 5

// ImageSchema identifies which stored image representation an item uses.
type ImageSchema int

const (
	// ImageSchemaNone marks items stored without any image fields.
	ImageSchemaNone ImageSchema = iota
	// ImageSchemaLegacy marks items stored with imageUrl and an optional imageUrl2.
	ImageSchemaLegacy
	// ImageSchemaCurrent marks items stored with the imageUrls list.
	ImageSchemaCurrent
)

// ImageSet is the as-stored image representation of an item. Primary and
// Secondary mirror the legacy imageUrl/imageUrl2 fields; URLs mirrors the
// imageUrls list and takes precedence when Schema is current.
type ImageSet struct {
	Schema    ImageSchema
	Primary   string
	Secondary string
	URLs      []string
}

// LegacyImages builds an ImageSet for records carrying imageUrl/imageUrl2.
func LegacyImages(primary, secondary string) ImageSet {
	return ImageSet{Schema: ImageSchemaLegacy, Primary: primary, Secondary: secondary}
}

// CurrentImages builds an ImageSet for records carrying an imageUrls list.
func CurrentImages(urls ...string) ImageSet {
	copied := make([]string, len(urls))
	copy(copied, urls)
	return ImageSet{Schema: ImageSchemaCurrent, URLs: copied}
}

// ItemFields holds the scalar attributes shared by every item representation.
// Stored defaults (discount 0, stock 0, isNew false) are the zero values.
type ItemFields struct {
	ID          string
	Name        string
	Price       float64
	Discount    float64
	Rank        int
	IsNew       bool
	Stock       int
	Description string
}

// RawItem is an item exactly as read from the document store.
type RawItem struct {
	ItemFields
	Images ImageSet
}

// NormalizedItem is the canonical item shape used past the store boundary.
// Images is never nil and contains only non-empty URLs.
type NormalizedItem struct {
	ItemFields
	Images []string
}

// Raw converts the item back into a RawItem using the current image schema.
func (n NormalizedItem) Raw() RawItem {
	return RawItem{ItemFields: n.ItemFields, Images: CurrentImages(n.Images...)}
}

// PriceBounds is an inclusive price interval.
type PriceBounds struct {
	Min float64
	Max float64
}

// Contains reports whether price lies within the bounds, inclusive.
func (b PriceBounds) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// FilterState captures the shopper's text and price filters.
type FilterState struct {
	SearchText string
	MinPrice   float64
	MaxPrice   float64
}

// Bounds returns the price interval of the filter.
func (f FilterState) Bounds() PriceBounds {
	return PriceBounds{Min: f.MinPrice, Max: f.MaxPrice}
}

// RevealState describes the lifecycle of one fetch-and-reveal attempt.
type RevealState string

const (
	// RevealStateIdle means no category has been selected.
	RevealStateIdle RevealState = "idle"
	// RevealStateFetching means the item query for the current epoch is in flight.
	RevealStateFetching RevealState = "fetching"
	// RevealStateRevealing means items are being appended to the visible list.
	RevealStateRevealing RevealState = "revealing"
	// RevealStateSettled means the visible list is final for the current epoch.
	RevealStateSettled RevealState = "settled"
)

// DetailSelection tracks the item opened in the detail view and its active image.
type DetailSelection struct {
	ItemID     string
	ImageIndex int
}
