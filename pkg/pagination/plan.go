package pagination

import (
	"errors"
	"fmt"
)

// MaxPageSize is the per-request page-size ceiling of the bans endpoint.
const MaxPageSize = 1000

// ErrInvalidCount is returned for requested counts below 1.
var ErrInvalidCount = errors.New("requested count must be positive")

// Plan describes how a run pages through the ban list.
type Plan struct {
	// Requested is the number of unbans asked for.
	Requested int
	// PageSize is the limit sent with every page request.
	PageSize int
	// Pages is the page budget.
	Pages int
}

// NewPlan computes the page plan for requested unbans. Up to MaxPageSize is
// a single page of exactly requested; above it, ceil(requested/MaxPageSize)
// full pages.
func NewPlan(requested int) (Plan, error) {
	if requested < 1 {
		return Plan{}, fmt.Errorf("%w (got %d)", ErrInvalidCount, requested)
	}

	if requested <= MaxPageSize {
		return Plan{Requested: requested, PageSize: requested, Pages: 1}, nil
	}

	pages := requested / MaxPageSize
	if requested%MaxPageSize != 0 {
		pages++
	}
	return Plan{Requested: requested, PageSize: MaxPageSize, Pages: pages}, nil
}

// MultiBatch reports whether the run is split into per-page batches, each
// with its own audit file.
func (p Plan) MultiBatch() bool {
	return p.Requested > MaxPageSize
}
