package aiquery

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type tagsPayload struct {
	Genre       string   `json:"genre"`
	EnglishTags []string `json:"english_tags"`
	ChineseTags []string `json:"chinese_tags"`
}

type titleAndCaptionPayload struct {
	Title   *domain.BilingualText `json:"title"`
	Caption *domain.BilingualText `json:"caption"`
}

// ParseBilingual decodes and validates a {"english","chinese"} reply.
func ParseBilingual(raw string) (domain.BilingualText, error) {
	var payload domain.BilingualText
	if err := decodeObject(raw, &payload); err != nil {
		return domain.BilingualText{}, domain.WrapError(domain.ErrParse, "parse bilingual response", err)
	}
	text := cleanBilingual(payload)
	if err := ValidateBilingual(text); err != nil {
		return domain.BilingualText{}, domain.WrapError(domain.ErrParse, "validate bilingual response", err)
	}
	return text, nil
}

func ParseTitleAndCaption(raw string) (domain.TitleCaptionResult, error) {
	var payload titleAndCaptionPayload
	if err := decodeObject(raw, &payload); err != nil {
		return domain.TitleCaptionResult{}, domain.WrapError(domain.ErrParse, "parse title and caption", err)
	}
	if payload.Title == nil || payload.Caption == nil {
		return domain.TitleCaptionResult{}, domain.WrapError(domain.ErrParse, "parse title and caption", errors.New("missing title or caption"))
	}
	result := domain.TitleCaptionResult{
		Title:   cleanBilingual(*payload.Title),
		Caption: cleanBilingual(*payload.Caption),
	}
	if err := ValidateTitleAndCaption(result); err != nil {
		return domain.TitleCaptionResult{}, domain.WrapError(domain.ErrParse, "validate title and caption", err)
	}
	return result, nil
}

func ParseTags(raw string) (domain.TagsResult, error) {
	var payload tagsPayload
	if err := decodeObject(raw, &payload); err != nil {
		return domain.TagsResult{}, domain.WrapError(domain.ErrParse, "parse tags", err)
	}
	result := domain.TagsResult{
		Genre:       domain.Genre(strings.TrimSpace(payload.Genre)),
		EnglishTags: payload.EnglishTags,
		ChineseTags: payload.ChineseTags,
	}
	if err := ValidateTags(result); err != nil {
		return domain.TagsResult{}, domain.WrapError(domain.ErrParse, "validate tags", err)
	}
	result.Genre = domain.Genre(strings.ToLower(string(result.Genre)))
	return result, nil
}

// cleanBilingual applies the text cleanup to decoded values. Cleanup strips
// double quotes, so it runs after JSON decoding rather than before.
func cleanBilingual(text domain.BilingualText) domain.BilingualText {
	return domain.BilingualText{
		English: CleanUpAITextResponse(text.English),
		Chinese: CleanUpAITextResponse(text.Chinese),
	}
}

func decodeObject(raw string, out any) error {
	body := extractJSONObject(raw)
	if body == "" {
		return errors.New("no JSON object in response")
	}
	return json.Unmarshal([]byte(body), out)
}

// extractJSONObject drops markdown fences and prose around the first object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}
