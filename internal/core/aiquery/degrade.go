package aiquery

import (
	"fmt"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// DegradePolicy decides what a caller stores when a reply fails to parse.
type DegradePolicy string

const (
	// DegradeRawText stores the cleaned, unparsed reply.
	DegradeRawText DegradePolicy = "raw"
	// DegradeEmpty stores empty strings.
	DegradeEmpty DegradePolicy = "empty"
)

func ParseDegradePolicy(raw string) (DegradePolicy, error) {
	switch DegradePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case DegradeRawText:
		return DegradeRawText, nil
	case DegradeEmpty:
		return DegradeEmpty, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse degrade policy", fmt.Errorf("unknown policy %q", raw))
	}
}

// DegradePolicies holds one policy per parsing call site. The defaults keep
// the historical split: single bilingual fields and tags fall back to the raw
// reply while the combined title and caption fall back to empty strings.
type DegradePolicies struct {
	Bilingual       DegradePolicy
	TitleAndCaption DegradePolicy
	Tags            DegradePolicy
}

func DefaultDegradePolicies() DegradePolicies {
	return DegradePolicies{
		Bilingual:       DegradeRawText,
		TitleAndCaption: DegradeEmpty,
		Tags:            DegradeRawText,
	}
}

func degrade(raw string, policy DegradePolicy) string {
	if policy == DegradeEmpty {
		return ""
	}
	return CleanUpAITextResponse(raw)
}

// BilingualField parses raw and returns the value to store plus the parse error.
func (p DegradePolicies) BilingualField(raw string) (string, error) {
	text, err := ParseBilingual(raw)
	if err != nil {
		return degrade(raw, p.Bilingual), err
	}
	return text.String(), nil
}

func (p DegradePolicies) TitleAndCaptionFields(raw string) (title, caption string, err error) {
	result, err := ParseTitleAndCaption(raw)
	if err != nil {
		value := degrade(raw, p.TitleAndCaption)
		return value, value, err
	}
	return result.Title.String(), result.Caption.String(), nil
}

func (p DegradePolicies) TagsField(raw string) (string, error) {
	result, err := ParseTags(raw)
	if err != nil {
		return degrade(raw, p.Tags), err
	}
	return result.String(), nil
}
