package handlers

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/services"
)

var descriptionPolicy = newDescriptionPolicy()

func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

type categoryPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	Rank     int    `json:"rank"`
	IsNew    bool   `json:"isNew"`
	Trending bool   `json:"trending"`
}

type itemPayload struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Price              float64  `json:"price"`
	Discount           float64  `json:"discount"`
	DiscountedPrice    float64  `json:"discountedPrice"`
	PriceLabel         string   `json:"priceLabel"`
	OriginalPriceLabel string   `json:"originalPriceLabel,omitempty"`
	DiscountLabel      string   `json:"discountLabel,omitempty"`
	Rank               int      `json:"rank"`
	IsNew              bool     `json:"isNew"`
	Stock              int      `json:"stock"`
	StockTier          string   `json:"stockTier"`
	StockLabel         string   `json:"stockLabel"`
	Images             []string `json:"images"`
	Description        string   `json:"description,omitempty"`
	DescriptionHTML    string   `json:"descriptionHtml,omitempty"`
}

type detailPayload struct {
	Item        itemPayload `json:"item"`
	ImageIndex  int         `json:"imageIndex"`
	ActiveImage string      `json:"activeImage,omitempty"`
	ImageCount  int         `json:"imageCount"`
}

type filterPayload struct {
	SearchText string  `json:"searchText"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

type boundsPayload struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type viewStatePayload struct {
	SessionID    string           `json:"sessionId"`
	Category     *categoryPayload `json:"category,omitempty"`
	State        string           `json:"state"`
	Epoch        uint64           `json:"epoch"`
	Revision     uint64           `json:"revision"`
	Items        []itemPayload    `json:"items"`
	VisibleCount int              `json:"visibleCount"`
	TotalCount   int              `json:"totalCount"`
	Filter       filterPayload    `json:"filter"`
	PriceBounds  boundsPayload    `json:"priceBounds"`
	Detail       *detailPayload   `json:"detail,omitempty"`
	FetchFailed  bool             `json:"fetchFailed"`
	Message      string           `json:"message,omitempty"`
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:       category.ID,
		Name:     category.Name,
		ImageURL: category.ImageURL,
		Rank:     category.Rank,
		IsNew:    category.IsNew,
		Trending: category.Rank > domain.TrendingRankThreshold,
	}
}

func buildItemPayload(item services.ViewItem) itemPayload {
	images := make([]string, len(item.Images))
	copy(images, item.Images)
	payload := itemPayload{
		ID:                 item.ID,
		Name:               item.Name,
		Price:              item.Price,
		Discount:           item.Discount,
		DiscountedPrice:    item.DiscountedPrice,
		PriceLabel:         item.PriceLabel,
		OriginalPriceLabel: item.OriginalPriceLabel,
		DiscountLabel:      item.DiscountLabel,
		Rank:               item.Rank,
		IsNew:              item.IsNew,
		Stock:              item.Stock,
		StockTier:          string(item.StockTier),
		StockLabel:         item.StockLabel,
		Images:             images,
		Description:        item.Description,
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		payload.DescriptionHTML = descriptionPolicy.Sanitize(desc)
	}
	return payload
}

func buildViewStatePayload(state services.ViewState) viewStatePayload {
	payload := viewStatePayload{
		SessionID:    state.SessionID,
		State:        string(state.State),
		Epoch:        state.Epoch,
		Revision:     state.Revision,
		Items:        make([]itemPayload, 0, len(state.Items)),
		VisibleCount: state.VisibleCount,
		TotalCount:   state.TotalCount,
		Filter: filterPayload{
			SearchText: state.Filter.SearchText,
			MinPrice:   state.Filter.MinPrice,
			MaxPrice:   state.Filter.MaxPrice,
		},
		PriceBounds: boundsPayload{Min: state.PriceBounds.Min, Max: state.PriceBounds.Max},
		FetchFailed: state.FetchFailed,
		Message:     state.Message,
	}
	if state.Category != nil {
		category := buildCategoryPayload(*state.Category)
		payload.Category = &category
	}
	for _, item := range state.Items {
		payload.Items = append(payload.Items, buildItemPayload(item))
	}
	if state.Detail != nil {
		payload.Detail = &detailPayload{
			Item:        buildItemPayload(state.Detail.Item),
			ImageIndex:  state.Detail.ImageIndex,
			ActiveImage: state.Detail.ActiveImage,
			ImageCount:  len(state.Detail.Item.Images),
		}
	}
	return payload
}
