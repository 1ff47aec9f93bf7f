package woolworths

import (
	"encoding/json"
	"fmt"

	"github.com/oakley-grocery/backend/internal/domain"
)

// rawProduct is a product as returned by the search and detail endpoints.
// Pointer fields distinguish absent values from zero values.
type rawProduct struct {
	Stockcode        int64    `json:"Stockcode"`
	Name             string   `json:"Name"`
	DisplayName      string   `json:"DisplayName"`
	Brand            string   `json:"Brand"`
	Price            *float64 `json:"Price"`
	InstorePrice     *float64 `json:"InstorePrice"`
	WasPrice         *float64 `json:"WasPrice"`
	IsOnSpecial      bool     `json:"IsOnSpecial"`
	IsInStoreSpecial bool     `json:"IsInStoreSpecial"`
	CupString        string   `json:"CupString"`
	PackageSize      string   `json:"PackageSize"`
	Unit             string   `json:"Unit"`
	IsAvailable      *bool    `json:"IsAvailable"`
	MediumImageFile  string   `json:"MediumImageFile"`
	SmallImageFile   string   `json:"SmallImageFile"`
	Description      string   `json:"Description"`
}

// searchResponse wraps products in bundles of one or more variants
type searchResponse struct {
	Products []struct {
		Products []rawProduct `json:"Products"`
	} `json:"Products"`
}

type detailResponse struct {
	Product *rawProduct `json:"Product"`
}

// mapProduct converts a raw product into a domain candidate
func mapProduct(raw rawProduct) domain.CandidateProduct {
	onSpecial := raw.IsOnSpecial || raw.IsInStoreSpecial

	product := domain.CandidateProduct{
		Code:        raw.Stockcode,
		Name:        firstNonEmpty(raw.Name, raw.DisplayName),
		Brand:       raw.Brand,
		PackageSize: firstNonEmpty(raw.PackageSize, raw.Unit),
		Price:       priceOf(raw),
		CupString:   raw.CupString,
		OnSpecial:   onSpecial,
		Available:   raw.IsAvailable == nil || *raw.IsAvailable,
		ImageURL:    firstNonEmpty(raw.MediumImageFile, raw.SmallImageFile),
		Description: raw.Description,
	}
	if onSpecial {
		product.WasPrice = raw.WasPrice
	}

	return product
}

// parseSearch flattens the bundled search response into candidates.
// When onlySpecials is set, products not on special are dropped.
func parseSearch(body []byte, onlySpecials bool) ([]domain.CandidateProduct, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	products := make([]domain.CandidateProduct, 0)
	for _, bundle := range resp.Products {
		for _, raw := range bundle.Products {
			product := mapProduct(raw)
			if onlySpecials && !product.OnSpecial {
				continue
			}
			products = append(products, product)
		}
	}

	return products, nil
}

// parseDetails accepts both the wrapped {"Product": {...}} shape and a bare product
func parseDetails(body []byte) (*domain.CandidateProduct, error) {
	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raw := resp.Product
	if raw == nil {
		raw = &rawProduct{}
		if err := json.Unmarshal(body, raw); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	if raw.Stockcode == 0 && raw.Name == "" && raw.DisplayName == "" {
		return nil, domain.ErrProductNotFound
	}

	product := mapProduct(*raw)
	return &product, nil
}

// priceOf prefers the online price and falls back to the in-store price
// when the former is missing or zero.
func priceOf(raw rawProduct) *float64 {
	if raw.Price != nil && *raw.Price != 0 {
		return raw.Price
	}
	return raw.InstorePrice
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
