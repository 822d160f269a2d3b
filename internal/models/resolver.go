// Package models maps client-facing model selectors to upstream model names.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BaselineModel is used when no default model is configured.
const BaselineModel = "gpt-3.5-turbo"

// DefaultTable is the selector table used when no table file is configured.
func DefaultTable() map[string]string {
	return map[string]string{
		"gpt-3.5-turbo": "gpt-3.5-turbo",
		"gpt-4o":        "gpt-4o",
	}
}

// Resolver is an immutable selector table with a fallback model. It is safe
// for concurrent use.
type Resolver struct {
	table    map[string]string
	fallback string
}

// NewResolver validates the table once and returns a Resolver. An empty
// fallback resolves to BaselineModel.
func NewResolver(table map[string]string, fallback string) (*Resolver, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = BaselineModel
	}

	copied := make(map[string]string, len(table))
	for selector, target := range table {
		key := strings.TrimSpace(selector)
		if key == "" {
			return nil, errors.New("models: selector must not be empty")
		}
		target = strings.TrimSpace(target)
		if target == "" {
			return nil, fmt.Errorf("models: selector %q target must not be empty", selector)
		}
		if _, dup := copied[key]; dup {
			return nil, fmt.Errorf("models: selector %q is defined more than once", key)
		}
		copied[key] = target
	}
	return &Resolver{table: copied, fallback: fallback}, nil
}

// Resolve maps a selector to an upstream model name. Absent or unknown
// selectors resolve to the fallback, so the result is never empty.
func (r *Resolver) Resolve(selector string) string {
	if target, ok := r.table[strings.TrimSpace(selector)]; ok {
		return target
	}
	return r.fallback
}

// Default returns the fallback model name.
func (r *Resolver) Default() string {
	return r.fallback
}

// Selectors lists the known selectors in lexical order.
func (r *Resolver) Selectors() []string {
	out := make([]string, 0, len(r.table))
	for k := range r.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
