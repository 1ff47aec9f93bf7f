package domain

import "encoding/json"

// Source names where a resolved product came from
type Source string

const (
	SourcePreference Source = "preference"
	SourceSearch     Source = "search"
	SourceUnresolved Source = "unresolved"
)

// ResolveRequest asks for a generic item to be mapped to a product
type ResolveRequest struct {
	GenericName string `json:"generic_name" binding:"required"`
	Quantity    int    `json:"quantity,omitempty"`
	PreferBrand string `json:"prefer_brand,omitempty"`
	PreferSize  string `json:"prefer_size,omitempty"`
}

// Outcome is either Resolved or Unresolved.
type Outcome interface {
	isOutcome()
}

// Resolved is a confident match. Candidates is only populated for search
// matches, where it holds the ranked shortlist the product was picked from.
type Resolved struct {
	Product    CandidateProduct
	Source     Source
	Candidates []ScoredCandidate
}

// Unresolved carries the disambiguation shortlist, empty when the search
// failed or found nothing.
type Unresolved struct {
	Candidates []ScoredCandidate
}

func (Resolved) isOutcome()   {}
func (Unresolved) isOutcome() {}

// ResolutionResult is the outcome of resolving one generic item
type ResolutionResult struct {
	GenericName string
	Quantity    int
	Outcome     Outcome
}

// IsResolved reports whether the outcome is a Resolved match.
func (r *ResolutionResult) IsResolved() bool {
	_, ok := r.Outcome.(Resolved)
	return ok
}

// Source returns the outcome's source, SourceUnresolved for unresolved outcomes.
func (r *ResolutionResult) Source() Source {
	if res, ok := r.Outcome.(Resolved); ok {
		return res.Source
	}
	return SourceUnresolved
}

// Product returns the resolved product, or nil.
func (r *ResolutionResult) Product() *CandidateProduct {
	if res, ok := r.Outcome.(Resolved); ok {
		p := res.Product
		return &p
	}
	return nil
}

// Candidates returns the ranked shortlist attached to the outcome.
func (r *ResolutionResult) Candidates() []ScoredCandidate {
	switch o := r.Outcome.(type) {
	case Resolved:
		return o.Candidates
	case Unresolved:
		return o.Candidates
	}
	return nil
}

type resolutionJSON struct {
	GenericName string            `json:"generic_name"`
	Quantity    int               `json:"quantity"`
	Resolved    bool              `json:"resolved"`
	Source      Source            `json:"source"`
	Product     *CandidateProduct `json:"product"`
	Candidates  []ScoredCandidate `json:"candidates"`
}

// MarshalJSON flattens the outcome into the wire shape callers consume.
func (r ResolutionResult) MarshalJSON() ([]byte, error) {
	candidates := r.Candidates()
	if candidates == nil {
		candidates = []ScoredCandidate{}
	}
	return json.Marshal(resolutionJSON{
		GenericName: r.GenericName,
		Quantity:    r.Quantity,
		Resolved:    r.IsResolved(),
		Source:      r.Source(),
		Product:     r.Product(),
		Candidates:  candidates,
	})
}

// UnmarshalJSON rebuilds the outcome from the flattened wire shape.
func (r *ResolutionResult) UnmarshalJSON(data []byte) error {
	var raw resolutionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.GenericName = raw.GenericName
	r.Quantity = raw.Quantity
	if raw.Resolved && raw.Product != nil {
		r.Outcome = Resolved{Product: *raw.Product, Source: raw.Source, Candidates: raw.Candidates}
		return nil
	}
	r.Outcome = Unresolved{Candidates: raw.Candidates}
	return nil
}
