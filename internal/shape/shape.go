// Package shape applies client-supplied filter, sort and pagination
// parameters to a gorm query. Filtering and sorting always run before
// pagination; both halves are stateless so the same request can shape the
// primary query and a projected read-model and order them identically.
package shape

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Request is the wire shape of a shaping request, bindable from a query
// string. Filters and Sorts use a comma-separated term syntax:
//
//	filters=title@=hello,created>=2024-01-01T00:00:00Z
//	sorts=-last_active,created
type Request struct {
	Filters string `form:"filters" json:"filters"`
	Sorts   string `form:"sorts" json:"sorts"`
	Page    int    `form:"page" json:"page"`
	Size    int    `form:"size" json:"size"`
}

// Kind of a filterable field; controls value parsing.
type Kind int

const (
	String Kind = iota
	Int
	Bool
	Time
)

// Field declares one client-visible field of a resource.
type Field struct {
	Column string // database column
	Kind   Kind
	Filter bool
	Sort   bool
}

// Fields is the per-resource whitelist keyed by the client-visible name.
// Anything not listed is an unknown field and fails shaping.
type Fields map[string]Field

// Error reports malformed client shaping input. Callers translate it to a
// bad-request response, never a fatal error.
type Error struct {
	Term   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad shaping term %q: %s", e.Term, e.Detail)
}

func badTerm(term, detail string) *Error {
	return &Error{Term: term, Detail: detail}
}

// Operators, longest first so ">=" wins over ">".
var operators = []struct {
	token   string
	sql     string
	like    bool
	strOnly bool
}{
	{token: "==", sql: "="},
	{token: "!=", sql: "<>"},
	{token: ">=", sql: ">="},
	{token: "<=", sql: "<="},
	{token: "@=", sql: "LIKE", like: true, strOnly: true},
	{token: ">", sql: ">"},
	{token: "<", sql: "<"},
}

// ApplyFilterAndSort applies the request's filter and sort terms to source.
// A deterministic id tiebreak is always appended so repeated shaping of the
// same request yields the same order even under equal sort keys.
func ApplyFilterAndSort(req Request, fields Fields, source *gorm.DB) (*gorm.DB, error) {
	q := source

	for _, term := range splitTerms(req.Filters) {
		var err error
		q, err = applyFilter(term, fields, q)
		if err != nil {
			return nil, err
		}
	}

	for _, term := range splitTerms(req.Sorts) {
		var err error
		q, err = applySort(term, fields, q)
		if err != nil {
			return nil, err
		}
	}

	// Table-qualified so the tiebreak stays unambiguous under joins.
	return q.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
	}), nil
}

// ApplyPagination clamps page and size into bounds and applies them. Bad
// values are defaulted, never rejected.
func ApplyPagination(req Request, defaultSize, maxSize int, source *gorm.DB) *gorm.DB {
	page, size := ClampPage(req, defaultSize, maxSize)
	return source.Offset((page - 1) * size).Limit(size)
}

// ClampPage returns the effective page and size for a request.
func ClampPage(req Request, defaultSize, maxSize int) (page, size int) {
	page = req.Page
	if page < 1 {
		page = 1
	}
	size = req.Size
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

func splitTerms(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

func applyFilter(term string, fields Fields, q *gorm.DB) (*gorm.DB, error) {
	for _, op := range operators {
		idx := strings.Index(term, op.token)
		if idx <= 0 {
			continue
		}

		name := strings.TrimSpace(term[:idx])
		raw := strings.TrimSpace(term[idx+len(op.token):])

		field, ok := fields[name]
		if !ok || !field.Filter {
			return nil, badTerm(term, "unknown filter field "+name)
		}
		if op.strOnly && field.Kind != String {
			return nil, badTerm(term, op.token+" only applies to string fields")
		}

		value, err := parseValue(field.Kind, raw)
		if err != nil {
			return nil, badTerm(term, err.Error())
		}

		if op.like {
			return q.Where(field.Column+" LIKE ?", "%"+raw+"%"), nil
		}
		return q.Where(fmt.Sprintf("%s %s ?", field.Column, op.sql), value), nil
	}
	return nil, badTerm(term, "no operator")
}

func applySort(term string, fields Fields, q *gorm.DB) (*gorm.DB, error) {
	name := term
	desc := false
	if strings.HasPrefix(term, "-") {
		desc = true
		name = strings.TrimSpace(term[1:])
	}

	field, ok := fields[name]
	if !ok || !field.Sort {
		return nil, badTerm(term, "unknown sort field "+name)
	}

	order := field.Column + " ASC"
	if desc {
		order = field.Column + " DESC"
	}
	return q.Order(order), nil
}

func parseValue(kind Kind, raw string) (any, error) {
	switch kind {
	case Int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		return v, nil
	case Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", raw)
		}
		return v, nil
	case Time:
		v, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("not an RFC3339 time: %q", raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}
