package domain

// StockTier buckets an item's stock count for display.
type StockTier string

const (
	// StockTierOutOfStock applies when no units remain.
	StockTierOutOfStock StockTier = "OUT_OF_STOCK"
	// StockTierLowStock applies when fewer than LowStockThreshold units remain.
	StockTierLowStock StockTier = "LOW_STOCK"
	// StockTierInStock applies otherwise.
	StockTierInStock StockTier = "IN_STOCK"
)

// LowStockThreshold is the first stock count considered fully in stock.
const LowStockThreshold = 10

// DiscountedPrice applies a percentage discount to price. Non-positive
// discounts leave the price unchanged; out of range values are not clamped.
func DiscountedPrice(price, discount float64) float64 {
	if discount <= 0 {
		return price
	}
	return price - price*discount/100
}

// ClassifyStock maps a stock count to its display tier. Negative counts are
// treated as out of stock.
func ClassifyStock(stock int) StockTier {
	switch {
	case stock <= 0:
		return StockTierOutOfStock
	case stock < LowStockThreshold:
		return StockTierLowStock
	default:
		return StockTierInStock
	}
}

// Label returns the shopper-facing text for the tier.
func (t StockTier) Label() string {
	switch t {
	case StockTierOutOfStock:
		return "Out of Stock"
	case StockTierLowStock:
		return "Few Left"
	default:
		return "In Stock"
	}
}

// DisplayItem is a NormalizedItem annotated with values derived at render time.
type DisplayItem struct {
	NormalizedItem
	DiscountedPrice float64
	StockTier       StockTier
}

// Display derives the render-time values for item.
func Display(item NormalizedItem) DisplayItem {
	return DisplayItem{
		NormalizedItem:  item,
		DiscountedPrice: DiscountedPrice(item.Price, item.Discount),
		StockTier:       ClassifyStock(item.Stock),
	}
}

// HasDiscount reports whether the original price should be shown struck through.
func (d DisplayItem) HasDiscount() bool {
	return d.Discount > 0
}
