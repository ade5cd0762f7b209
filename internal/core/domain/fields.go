package domain

import (
	"slices"
	"strings"
)

// AutoGeneratedField is a photo attribute the AI pipeline can populate.
type AutoGeneratedField string

const (
	FieldTitle    AutoGeneratedField = "title"
	FieldCaption  AutoGeneratedField = "caption"
	FieldTags     AutoGeneratedField = "tags"
	FieldSemantic AutoGeneratedField = "semantic"
)

var AllAutoGeneratedFields = []AutoGeneratedField{
	FieldTitle,
	FieldCaption,
	FieldTags,
	FieldSemantic,
}

// FieldSet is the unit of "what to regenerate".
type FieldSet map[AutoGeneratedField]struct{}

func NewFieldSet(fields ...AutoGeneratedField) FieldSet {
	set := make(FieldSet, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

func (s FieldSet) Has(field AutoGeneratedField) bool {
	_, ok := s[field]
	return ok
}

func (s FieldSet) Empty() bool {
	return len(s) == 0
}

// List returns the fields in canonical order.
func (s FieldSet) List() []AutoGeneratedField {
	out := make([]AutoGeneratedField, 0, len(s))
	for _, field := range AllAutoGeneratedFields {
		if s.Has(field) {
			out = append(out, field)
		}
	}
	return out
}

func (s FieldSet) String() string {
	parts := make([]string, 0, len(s))
	for _, field := range s.List() {
		parts = append(parts, string(field))
	}
	return strings.Join(parts, ",")
}

// ParseFieldSetText parses "all", "none" or a comma separated list of field
// names. Unknown names are dropped.
func ParseFieldSetText(text string) FieldSet {
	formatted := strings.ToLower(strings.TrimSpace(text))
	switch formatted {
	case "", "all":
		return NewFieldSet(AllAutoGeneratedFields...)
	case "none":
		return NewFieldSet()
	}

	set := NewFieldSet()
	for _, part := range strings.Split(formatted, ",") {
		field := AutoGeneratedField(strings.TrimSpace(part))
		if slices.Contains(AllAutoGeneratedFields, field) {
			set[field] = struct{}{}
		}
	}
	return set
}

// GeneratedFields is the assembled output of one photo's AI run. A nil field
// was not generated.
type GeneratedFields struct {
	Title               *string `json:"title,omitempty"`
	Caption             *string `json:"caption,omitempty"`
	Tags                *string `json:"tags,omitempty"`
	SemanticDescription *string `json:"semantic_description,omitempty"`
	Error               string  `json:"error,omitempty"`
}

func (g GeneratedFields) IsEmpty() bool {
	return g.Title == nil && g.Caption == nil && g.Tags == nil && g.SemanticDescription == nil
}
