package exercises

import (
	"fmt"

	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

// MaxListLimit bounds a single listing window.
const MaxListLimit = 200

// Filter narrows list/count queries. Zero values mean "no constraint";
// inactive rows are excluded unless IncludeInactive is set.
type Filter struct {
	Category        string
	Subcategory     string
	MinDifficulty   int
	MaxDifficulty   int
	IncludeInactive bool
}

func (f Filter) Validate() error {
	if f.Subcategory != "" && f.Category == "" {
		return apierr.InvalidArgument(fmt.Errorf("subcategory filter requires category"))
	}
	if f.MinDifficulty != 0 && (f.MinDifficulty < MinDifficulty || f.MinDifficulty > MaxDifficulty) {
		return apierr.InvalidArgument(fmt.Errorf("min_difficulty %d out of range [%d,%d]", f.MinDifficulty, MinDifficulty, MaxDifficulty))
	}
	if f.MaxDifficulty != 0 && (f.MaxDifficulty < MinDifficulty || f.MaxDifficulty > MaxDifficulty) {
		return apierr.InvalidArgument(fmt.Errorf("max_difficulty %d out of range [%d,%d]", f.MaxDifficulty, MinDifficulty, MaxDifficulty))
	}
	if f.MinDifficulty != 0 && f.MaxDifficulty != 0 && f.MinDifficulty > f.MaxDifficulty {
		return apierr.InvalidArgument(fmt.Errorf("min_difficulty %d greater than max_difficulty %d", f.MinDifficulty, f.MaxDifficulty))
	}
	return nil
}

// Page is a required pagination window. Limit must be positive and offset
// non-negative; violations are rejected before any store access.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) Validate() error {
	if p.Limit <= 0 {
		return apierr.InvalidArgument(fmt.Errorf("limit must be positive, got %d", p.Limit))
	}
	if p.Limit > MaxListLimit {
		return apierr.InvalidArgument(fmt.Errorf("limit %d exceeds maximum %d", p.Limit, MaxListLimit))
	}
	if p.Offset < 0 {
		return apierr.InvalidArgument(fmt.Errorf("offset must be non-negative, got %d", p.Offset))
	}
	return nil
}
