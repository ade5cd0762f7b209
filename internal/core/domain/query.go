package domain

import (
	"fmt"
	"strings"
)

// QueryKind names a prompt together with the response shape expected back.
type QueryKind string

const (
	QueryTitle               QueryKind = "title"
	QueryCaption             QueryKind = "caption"
	QueryTitleAndCaption     QueryKind = "title-and-caption"
	QueryTags                QueryKind = "tags"
	QueryDescriptionSmall    QueryKind = "description-small"
	QueryDescription         QueryKind = "description"
	QueryDescriptionLarge    QueryKind = "description-large"
	QueryDescriptionSemantic QueryKind = "description-semantic"
)

var AllQueryKinds = []QueryKind{
	QueryTitle,
	QueryCaption,
	QueryTitleAndCaption,
	QueryTags,
	QueryDescriptionSmall,
	QueryDescription,
	QueryDescriptionLarge,
	QueryDescriptionSemantic,
}

func ParseQueryKind(raw string) (QueryKind, error) {
	kind := QueryKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllQueryKinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", WrapError(ErrInvalidInput, "parse query kind", fmt.Errorf("unknown query kind %q", raw))
}

// StreamEvent is one item of a model text stream. Exactly one terminal event
// (Done or Err) is delivered before the channel closes.
type StreamEvent struct {
	Delta string
	Done  bool
	Err   error
}
