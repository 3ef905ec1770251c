package search

import (
	"fmt"
	"strings"
)

// Filter is a parsed doctor search expression. Clause returns a SQL
// condition with placeholder args suitable for a gorm Where call.
type Filter interface {
	Clause() (string, []any)
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Clause() (string, []any) {
	clauses := make([]string, 0, len(f.filters))
	var args []any
	for _, filter := range f.filters {
		clause, filterArgs := filter.Clause()
		clauses = append(clauses, clause)
		args = append(args, filterArgs...)
	}
	return "(" + strings.Join(clauses, " AND ") + ")", args
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Clause() (string, []any) {
	clauses := make([]string, 0, len(f.filters))
	var args []any
	for _, filter := range f.filters {
		clause, filterArgs := filter.Clause()
		clauses = append(clauses, clause)
		args = append(args, filterArgs...)
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Clause() (string, []any) {
	clause, args := f.filter.Clause()
	return "NOT (" + clause + ")", args
}

// String comparisons are case insensitive, matching the plain
// city/specialty query params.

type SubstringFilter struct {
	column string
	substr string
}

func (f *SubstringFilter) Clause() (string, []any) {
	return fmt.Sprintf("LOWER(%s) LIKE ?", f.column), []any{"%" + strings.ToLower(f.substr) + "%"}
}

type StringEqFilter struct {
	column string
	value  string
}

func (f *StringEqFilter) Clause() (string, []any) {
	return fmt.Sprintf("LOWER(%s) = ?", f.column), []any{strings.ToLower(f.value)}
}

type StringLtFilter struct {
	column string
	value  string
}

func (f *StringLtFilter) Clause() (string, []any) {
	return fmt.Sprintf("LOWER(%s) < ?", f.column), []any{strings.ToLower(f.value)}
}

type StringGtFilter struct {
	column string
	value  string
}

func (f *StringGtFilter) Clause() (string, []any) {
	return fmt.Sprintf("LOWER(%s) > ?", f.column), []any{strings.ToLower(f.value)}
}

// IntRangeFilter matches values strictly between min and max.
type IntRangeFilter struct {
	column string
	min    int
	max    int
}

func (f *IntRangeFilter) Clause() (string, []any) {
	return fmt.Sprintf("(%s > ? AND %s < ?)", f.column, f.column), []any{f.min, f.max}
}
