// Package aiquery holds the prompt catalog and the parsers that turn model
// replies into validated photo metadata.
package aiquery

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

const (
	bilingualFormat = ` Respond with a single JSON object and nothing else: {"english": "...", "chinese": "..."}.`

	titleAndCaptionFormat = ` Respond with a single JSON object and nothing else: {"title": {"english": "...", "chinese": "..."}, "caption": {"english": "...", "chinese": "..."}}. The English title must be 2-3 words and the Chinese title 2-4 characters; the English caption must be 4-12 words and the Chinese caption 4-15 characters.`

	tagsFormat = ` Respond with a single JSON object and nothing else: {"genre": "...", "english_tags": ["..."], "chinese_tags": ["..."]}. The genre must be exactly one of: landscape, portraiture, animal, street, cars, event. Each tag list must hold 3-5 entries and every Chinese tag must use Chinese characters.`
)

var defaultInstructions = map[domain.QueryKind]string{
	domain.QueryTitle: "Create two poetic titles (each 2-3 words) that capture the mood, emotion, or essence of this image - one in English and one in Chinese (with only chinese characters). " +
		"Draw from poetry, literature, famous quotes, or cultural sayings that resonate with the image's theme. " +
		"The titles don't need to be direct translations but should both connect to the image's essence.",

	domain.QueryCaption: "Write two artistic captions (6-12 words each) that capture the soul of this moment - one in English and one in Chinese (with only chinese characters). " +
		"Draw from poetry, literature, famous quotes, or cultural sayings that reflect the image's theme. " +
		"The captions don't need to be direct translations but should both relate to the image's essence.",

	domain.QueryTitleAndCaption: "Create a poetic title (2-3 words) and caption (6-12 words) in both English and Chinese that capture this image's essence. " +
		"Draw from poetry, literature, famous quotes, or cultural sayings that reflect the image's theme. " +
		"The responses don't need to be direct translations but should both relate to the image's essence.",

	domain.QueryTags: "Analyze this image and provide bilingual tags. " +
		"Start with English tags (3-5 tags: primary genre first [must be exactly one of: landscape, portraiture, animal, street, cars, event], followed by subjects, colors, actions, emotions), then Chinese equivalent tags.",

	domain.QueryDescriptionSmall: "Provide a concise but evocative description that captures the soul and atmosphere of this image in both English and Chinese. " +
		"Focus on the emotional resonance, mood, and artistic impact while noting key visual elements that contribute to its poetic quality.",

	domain.QueryDescription: "Create a detailed analysis of this image that weaves together both artistic and emotional elements in English and Chinese. " +
		"Explore the interplay of light, composition, and moment that creates its unique atmosphere.",

	domain.QueryDescriptionLarge: "Provide an in-depth poetic analysis of this image in both English and Chinese. " +
		"Include: 1) The emotional atmosphere and mood it evokes 2) How light, color, and composition create artistic impact " +
		"3) The deeper narrative or metaphorical elements suggested 4) The way technical choices support the emotional story " +
		"5) The unique artistic voice or perspective expressed through this image.",

	domain.QueryDescriptionSemantic: "List 5 highly specific key elements, focusing on unique details, actions, or features that distinguish this particular image. " +
		"Include precise descriptions of subjects, notable visual elements, and distinctive characteristics.",
}

// replyFormats is the JSON contract appended to the kinds whose replies are
// parsed. Streamed queries go out without it.
var replyFormats = map[domain.QueryKind]string{
	domain.QueryTitle:            bilingualFormat,
	domain.QueryCaption:          bilingualFormat,
	domain.QueryTitleAndCaption:  titleAndCaptionFormat,
	domain.QueryTags:             tagsFormat,
	domain.QueryDescriptionSmall: bilingualFormat,
}

// Catalog maps query kinds to prompts. It is read-only once built.
type Catalog struct {
	instructions map[domain.QueryKind]string
}

func DefaultCatalog() Catalog {
	instructions := make(map[domain.QueryKind]string, len(defaultInstructions))
	for kind, instruction := range defaultInstructions {
		instructions[kind] = instruction
	}
	return Catalog{instructions: instructions}
}

// Prompt returns the instruction for kind followed by the reply format the
// parsers expect.
func (c Catalog) Prompt(kind domain.QueryKind) (string, bool) {
	instruction, ok := c.instructions[kind]
	if !ok {
		return "", false
	}
	return instruction + replyFormats[kind], true
}

// StreamPrompt returns the free-text instruction for kind. Streamed replies
// are shown as they arrive, so no JSON is requested.
func (c Catalog) StreamPrompt(kind domain.QueryKind) (string, bool) {
	instruction, ok := c.instructions[kind]
	return instruction, ok
}

// WithOverrides returns a copy of c with the given instructions replaced.
// The reply format of each kind is kept.
func (c Catalog) WithOverrides(overrides map[string]string) (Catalog, error) {
	out := Catalog{instructions: make(map[domain.QueryKind]string, len(c.instructions))}
	for kind, instruction := range c.instructions {
		out.instructions[kind] = instruction
	}
	for rawKind, instruction := range overrides {
		kind, err := domain.ParseQueryKind(rawKind)
		if err != nil {
			return Catalog{}, err
		}
		instruction = strings.TrimSpace(instruction)
		if instruction == "" {
			return Catalog{}, domain.WrapError(domain.ErrInvalidInput, "override prompt", fmt.Errorf("empty prompt for %q", rawKind))
		}
		out.instructions[kind] = instruction
	}
	return out, nil
}

// LoadCatalog builds the default catalog and applies overrides from a YAML
// file of `kind: prompt` pairs. An empty path yields the defaults.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if strings.TrimSpace(path) == "" {
		return catalog, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read prompts file: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return Catalog{}, domain.WrapError(domain.ErrInvalidInput, "parse prompts file", err)
	}
	return catalog.WithOverrides(overrides)
}
