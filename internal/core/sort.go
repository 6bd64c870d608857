package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByRegistered SortField = "registered"
	SortByID         SortField = "id"
	SortByStatus     SortField = "status"
	SortByOwner      SortField = "owner"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions keeps registration order.
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByRegistered,
		Order: SortAsc,
	}
}

// Sort sorts registrations in place. The sort is stable, so ties keep
// registration order.
func Sort(apps []model.Application, opts SortOptions) {
	less := func(a, b model.Application) bool {
		switch opts.Field {
		case SortByID:
			return strings.ToLower(a.ID) < strings.ToLower(b.ID)
		case SortByStatus:
			return a.Status < b.Status
		case SortByOwner:
			return a.Owner < b.Owner
		default:
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
	}

	sort.SliceStable(apps, func(i, j int) bool {
		if opts.Order == SortDesc {
			return less(apps[j], apps[i])
		}
		return less(apps[i], apps[j])
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "registered", "time", "t":
		return SortByRegistered, nil
	case "id", "app", "a":
		return SortByID, nil
	case "status", "s":
		return SortByStatus, nil
	case "owner", "o":
		return SortByOwner, nil
	default:
		return "", fmt.Errorf("invalid sort field: %s (use registered, id, status or owner)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
