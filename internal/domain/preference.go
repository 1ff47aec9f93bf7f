package domain

import (
	"strings"
	"time"
)

// Preference is the durable mapping from a generic item name to the product
// the user last confirmed for it
type Preference struct {
	ID            uint      `json:"id"`
	GenericName   string    `json:"generic_name"`
	ProductCode   int64     `json:"product_code"`
	ProductName   string    `json:"product_name"`
	Brand         string    `json:"brand,omitempty"`
	PackageSize   string    `json:"package_size,omitempty"`
	PurchaseCount int       `json:"purchase_count"`
	LastPrice     *float64  `json:"last_price,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Product returns the preference as a candidate product.
func (p *Preference) Product() CandidateProduct {
	return CandidateProduct{
		Code:        p.ProductCode,
		Name:        p.ProductName,
		Brand:       p.Brand,
		PackageSize: p.PackageSize,
		Price:       p.LastPrice,
		Available:   true,
	}
}

// PreferenceInput carries a confirmed product choice to be learned
type PreferenceInput struct {
	GenericName string   `json:"generic_name" binding:"required"`
	ProductCode int64    `json:"product_code" binding:"required"`
	ProductName string   `json:"product_name" binding:"required"`
	Brand       string   `json:"brand,omitempty"`
	PackageSize string   `json:"package_size,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// NormalizeGenericName lower-cases and trims a generic item name. Every
// preference key passes through here.
func NormalizeGenericName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
