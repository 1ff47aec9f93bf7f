package domain

// CandidateProduct is one normalized product returned by the provider
type CandidateProduct struct {
	Code        int64    `json:"code"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	PackageSize string   `json:"package_size,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	WasPrice    *float64 `json:"was_price,omitempty"`
	CupString   string   `json:"cup_string,omitempty"`
	OnSpecial   bool     `json:"on_special"`
	Available   bool     `json:"available"`
	ImageURL    string   `json:"image_url,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ScoredCandidate is a candidate product with its relevance score
type ScoredCandidate struct {
	CandidateProduct
	Score float64 `json:"score"`
}

// SortOrder is the provider-side ordering of search results
type SortOrder string

const (
	SortRelevance    SortOrder = "TraderRelevance"
	SortPriceAsc     SortOrder = "PriceAsc"
	SortPriceDesc    SortOrder = "PriceDesc"
	SortUnitPriceAsc SortOrder = "CUPAsc"
	SortNameAsc      SortOrder = "Name"
)

// SearchQuery is a provider search request
type SearchQuery struct {
	Query    string
	Page     int
	PageSize int
	Sort     SortOrder
}

// Float64 returns a pointer to v, for optional prices
func Float64(v float64) *float64 {
	return &v
}
