package aiquery

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type lengthBounds struct {
	minWords, maxWords int
	minChars, maxChars int
}

var (
	titleBounds   = lengthBounds{minWords: 2, maxWords: 3, minChars: 2, maxChars: 4}
	captionBounds = lengthBounds{minWords: 4, maxWords: 12, minChars: 4, maxChars: 15}
)

const (
	minTags = 3
	maxTags = 5
)

func hasCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FA5 {
			return true
		}
	}
	return false
}

func hasLatin(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// ValidateBilingual checks language presence in both halves.
func ValidateBilingual(text domain.BilingualText) error {
	english := strings.TrimSpace(text.English)
	chinese := strings.TrimSpace(text.Chinese)
	switch {
	case english == "" || chinese == "":
		return errors.New("empty or whitespace-only response")
	case !hasCJK(chinese):
		return errors.New("no Chinese characters in Chinese response")
	case !hasLatin(english):
		return errors.New("no English characters in English response")
	}
	return nil
}

func validateLength(name string, text domain.BilingualText, bounds lengthBounds) error {
	words := len(strings.Fields(text.English))
	chars := utf8.RuneCountInString(strings.TrimSpace(text.Chinese))
	if words < bounds.minWords || words > bounds.maxWords {
		return fmt.Errorf("%s English word count %d outside [%d,%d]", name, words, bounds.minWords, bounds.maxWords)
	}
	if chars < bounds.minChars || chars > bounds.maxChars {
		return fmt.Errorf("%s Chinese character count %d outside [%d,%d]", name, chars, bounds.minChars, bounds.maxChars)
	}
	return nil
}

func ValidateTitleAndCaption(result domain.TitleCaptionResult) error {
	if err := ValidateBilingual(result.Title); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if err := ValidateBilingual(result.Caption); err != nil {
		return fmt.Errorf("caption: %w", err)
	}
	if err := validateLength("title", result.Title, titleBounds); err != nil {
		return err
	}
	return validateLength("caption", result.Caption, captionBounds)
}

func ValidateTags(result domain.TagsResult) error {
	genre := domain.Genre(strings.ToLower(strings.TrimSpace(string(result.Genre))))
	if !slices.Contains(domain.AllGenres, genre) {
		return fmt.Errorf("invalid genre %q", result.Genre)
	}
	if err := validateTagList("English", result.EnglishTags); err != nil {
		return err
	}
	if err := validateTagList("Chinese", result.ChineseTags); err != nil {
		return err
	}
	for _, tag := range result.ChineseTags {
		if !hasCJK(tag) {
			return fmt.Errorf("Chinese tag %q has no Chinese characters", tag)
		}
	}
	return nil
}

func validateTagList(language string, tags []string) error {
	if len(tags) < minTags || len(tags) > maxTags {
		return fmt.Errorf("%s tags count %d outside [%d,%d]", language, len(tags), minTags, maxTags)
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%s tags contain an empty entry", language)
		}
	}
	return nil
}
