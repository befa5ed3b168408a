package model

import (
	"net/http"
	"strings"
)

// Field is a single header line.
type Field struct {
	Name, Value string
}

// Headers is an ordered header list. Duplicates are preserved and names keep
// the case they were written or received with; lookups are case-insensitive.
type Headers []Field

// Get returns the first value associated with name, or "".
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

func (h Headers) Values(name string) []string {
	var vs []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vs = append(vs, f.Value)
		}
	}
	return vs
}

func (h Headers) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (h *Headers) Add(name, value string) {
	*h = append(*h, Field{name, value})
}

// Del removes every field named name.
func (h *Headers) Del(name string) {
	kept := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	*h = kept
}

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// HTTPHeader converts the list into a [net/http.Header], canonicalizing names.
func (h Headers) HTTPHeader() http.Header {
	hdr := make(http.Header, len(h))
	for _, f := range h {
		hdr.Add(f.Name, f.Value)
	}
	return hdr
}
