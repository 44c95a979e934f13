package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultFromBlock int64 = 0
	DefaultToBlock   int64 = 99999999
	DefaultPage            = 1
	DefaultOffset          = 1000

	SortAsc  = "asc"
	SortDesc = "desc"
)

// QueryParams describes one account lookup. From and To are an inclusive
// block range.
type QueryParams struct {
	Address string
	From    int64
	To      int64
	Page    int
	Offset  int
	Sort    string
}

// ValidationError reports a lookup request that must not be sent upstream.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Validate checks every bound on the lookup request. The block range is
// checked before the address.
func (p QueryParams) Validate() error {
	if p.From < 0 {
		return &ValidationError{Field: "from", Message: "must not be negative"}
	}
	if p.To < 0 {
		return &ValidationError{Field: "to", Message: "must not be negative"}
	}
	if p.From > p.To {
		return &ValidationError{Field: "from", Message: fmt.Sprintf("%d is greater than to %d", p.From, p.To)}
	}
	if strings.TrimSpace(p.Address) == "" {
		return &ValidationError{Field: "address", Message: "is required"}
	}
	if p.Page <= 0 {
		return &ValidationError{Field: "page", Message: "must be positive"}
	}
	if p.Offset <= 0 {
		return &ValidationError{Field: "offset", Message: "must be positive"}
	}
	if p.Sort != SortAsc && p.Sort != SortDesc {
		return &ValidationError{Field: "sort", Message: fmt.Sprintf("%q is not one of asc, desc", p.Sort)}
	}
	return nil
}
