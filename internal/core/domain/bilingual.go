package domain

import "strings"

type BilingualText struct {
	English string `json:"english"`
	Chinese string `json:"chinese"`
}

// String is the single-column storage form.
func (b BilingualText) String() string {
	return b.English + " | " + b.Chinese
}

type TitleCaptionResult struct {
	Title   BilingualText `json:"title"`
	Caption BilingualText `json:"caption"`
}

type Genre string

const (
	GenreLandscape   Genre = "landscape"
	GenrePortraiture Genre = "portraiture"
	GenreAnimal      Genre = "animal"
	GenreStreet      Genre = "street"
	GenreCars        Genre = "cars"
	GenreEvent       Genre = "event"
)

var AllGenres = []Genre{
	GenreLandscape,
	GenrePortraiture,
	GenreAnimal,
	GenreStreet,
	GenreCars,
	GenreEvent,
}

type TagsResult struct {
	Genre       Genre    `json:"genre"`
	EnglishTags []string `json:"english_tags"`
	ChineseTags []string `json:"chinese_tags"`
}

// String flattens the tags into genre, English tags, then Chinese tags.
func (t TagsResult) String() string {
	tags := make([]string, 0, 1+len(t.EnglishTags)+len(t.ChineseTags))
	tags = append(tags, strings.ToLower(string(t.Genre)))
	for _, tag := range t.EnglishTags {
		tags = append(tags, strings.ToLower(strings.TrimSpace(tag)))
	}
	for _, tag := range t.ChineseTags {
		tags = append(tags, strings.TrimSpace(tag))
	}
	return strings.Join(tags, ",")
}
