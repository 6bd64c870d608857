// Package core provides filtering, sorting, and lookup of registrations.
package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // id, owner, menu_path, status, status_set, registered
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex     *regexp.Regexp
	statusVal model.Status
	boolVal   bool
	cutoff    time.Time
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering registrations.
type FilterOptions struct {
	Since  time.Duration // Registered within the last Since (0=all)
	Owner  string        // Exact match on the owning bus name
	Status *model.Status // Reported status (nil=any)
	Limit  int           // Maximum results (0=unlimited)
}

// Filter filters registrations based on the provided options.
func Filter(apps []model.Application, opts FilterOptions) []model.Application {
	cutoff := time.Now().Add(-opts.Since)
	result := make([]model.Application, 0, len(apps))

	for _, app := range apps {
		if opts.Since > 0 && app.RegisteredAt.Before(cutoff) {
			continue
		}
		if opts.Owner != "" && app.Owner != opts.Owner {
			continue
		}
		if opts.Status != nil && app.Status != *opts.Status {
			continue
		}
		result = append(result, app)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2"
//
// Supported fields: id, owner, menu_path, status, status_set, registered
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), >, <, >=, <=
//
// Examples:
//   - "status=busy"
//   - "id~thunderbird"
//   - "status>=away,status_set=true" - away or less available, reported by the app
//   - "registered<1h" - registered more than an hour ago
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

// parseCondition parses a single condition like "status=busy".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}
		cond := FilterCondition{
			Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
			Operator: op,
			Value:    strings.TrimSpace(s[idx+len(op):]),
		}
		if err := cond.init(); err != nil {
			return FilterCondition{}, err
		}
		return cond, nil
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init normalises the field name and pre-parses the value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "id", "app", "desktop_id":
		c.Field = "id"
	case "owner", "sender":
		c.Field = "owner"
	case "menu_path", "path":
		c.Field = "menu_path"
	case "status":
		s, err := model.ParseStatus(c.Value)
		if err != nil {
			return err
		}
		c.statusVal = s
	case "status_set", "reported":
		c.Field = "status_set"
		c.boolVal = parseBool(c.Value)
	case "registered", "age":
		c.Field = "registered"
		d, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid registered value: %w", err)
		}
		c.cutoff = time.Now().Add(-d)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y", "t":
		return true
	default:
		return false
	}
}

// Match tests if a registration matches every condition.
func (f *FilterExpr) Match(app model.Application) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(app) {
			return false
		}
	}
	return true
}

// Match tests if a registration matches this single condition.
func (c *FilterCondition) Match(app model.Application) bool {
	switch c.Field {
	case "id":
		return c.matchString(app.ID)
	case "owner":
		return c.matchString(app.Owner)
	case "menu_path":
		return c.matchString(app.MenuPath)
	case "status":
		return c.matchOrdered(int(app.Status), int(c.statusVal))
	case "status_set":
		return c.matchBool(app.StatusSet)
	case "registered":
		return c.matchAge(app.RegisteredAt)
	default:
		return false
	}
}

func (c *FilterCondition) matchString(v string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.Value
	case FilterOpNotEqual:
		return v != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(v)
	default:
		return false
	}
}

// matchOrdered compares statuses by menu order, available lowest.
func (c *FilterCondition) matchOrdered(v, want int) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == want
	case FilterOpNotEqual:
		return v != want
	case FilterOpGreater:
		return v > want
	case FilterOpLess:
		return v < want
	case FilterOpGreaterEq:
		return v >= want
	case FilterOpLessEq:
		return v <= want
	default:
		return false
	}
}

func (c *FilterCondition) matchBool(v bool) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.boolVal
	case FilterOpNotEqual:
		return v != c.boolVal
	default:
		return false
	}
}

// matchAge treats "registered<1h" as registered less than an hour ago.
func (c *FilterCondition) matchAge(t time.Time) bool {
	switch c.Operator {
	case FilterOpLess:
		return t.After(c.cutoff)
	case FilterOpLessEq:
		return !t.Before(c.cutoff)
	case FilterOpGreater:
		return t.Before(c.cutoff)
	case FilterOpGreaterEq:
		return !t.After(c.cutoff)
	default:
		return false
	}
}

// FilterWithExpr filters registrations using a filter expression.
func FilterWithExpr(apps []model.Application, expr *FilterExpr) []model.Application {
	if expr == nil || len(expr.Conditions) == 0 {
		return apps
	}

	result := make([]model.Application, 0, len(apps))
	for _, app := range apps {
		if expr.Match(app) {
			result = append(result, app)
		}
	}
	return result
}
