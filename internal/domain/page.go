package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 50
)

// PageRequest is a 1-based page window.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	} else if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages computes the page count for total items.
func (p PageRequest) TotalPages(total int) int {
	if total == 0 || p.Limit == 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
