package aiquery

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

func TestDefaultCatalogCoversEveryQueryKind(t *testing.T) {
	catalog := DefaultCatalog()
	for _, kind := range domain.AllQueryKinds {
		prompt, ok := catalog.Prompt(kind)
		if !ok || strings.TrimSpace(prompt) == "" {
			t.Fatalf("missing prompt for %s", kind)
		}
	}
	tags, _ := catalog.Prompt(domain.QueryTags)
	for _, genre := range domain.AllGenres {
		if !strings.Contains(tags, string(genre)) {
			t.Fatalf("tags prompt does not list genre %s", genre)
		}
	}
}

func TestStreamPromptOmitsReplyFormat(t *testing.T) {
	catalog := DefaultCatalog()
	for _, kind := range domain.AllQueryKinds {
		prompt, _ := catalog.Prompt(kind)
		stream, ok := catalog.StreamPrompt(kind)
		if !ok || strings.TrimSpace(stream) == "" {
			t.Fatalf("missing stream prompt for %s", kind)
		}
		if strings.Contains(stream, "JSON") {
			t.Fatalf("stream prompt for %s asks for JSON", kind)
		}
		if !strings.HasPrefix(prompt, stream) {
			t.Fatalf("prompt for %s does not extend the stream prompt", kind)
		}
	}
	for _, kind := range []domain.QueryKind{domain.QueryTitle, domain.QueryTitleAndCaption, domain.QueryTags, domain.QueryDescriptionSmall} {
		if prompt, _ := catalog.Prompt(kind); !strings.Contains(prompt, "JSON") {
			t.Fatalf("prompt for %s lacks the reply format", kind)
		}
	}
	if _, ok := catalog.StreamPrompt(domain.QueryKind("poem")); ok {
		t.Fatalf("unknown kind has a stream prompt")
	}
}

func TestLoadCatalogAppliesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "title: |\n  Name this photo in two words.\ntags: Tag it.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if prompt, _ := catalog.Prompt(domain.QueryTitle); prompt != "Name this photo in two words."+bilingualFormat {
		t.Fatalf("unexpected title prompt %q", prompt)
	}
	if prompt, _ := catalog.StreamPrompt(domain.QueryTitle); prompt != "Name this photo in two words." {
		t.Fatalf("unexpected title stream prompt %q", prompt)
	}
	if prompt, _ := catalog.Prompt(domain.QueryTags); prompt != "Tag it."+tagsFormat {
		t.Fatalf("unexpected tags prompt %q", prompt)
	}
	def, _ := DefaultCatalog().Prompt(domain.QueryCaption)
	if prompt, _ := catalog.Prompt(domain.QueryCaption); prompt != def {
		t.Fatalf("caption prompt should keep default")
	}
}

func TestLoadCatalogRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("haiku: Write one.\n"), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}
	if _, err := LoadCatalog(path); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCleanUpAITextResponseIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Silent dawn.",
		"\"Quoted\"\nline..",
		"ends with space . ",
		"a. .",
		"  \"\"  ",
		"多云的早晨。",
	}
	for _, in := range inputs {
		once := CleanUpAITextResponse(in)
		twice := CleanUpAITextResponse(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
	if got := CleanUpAITextResponse("\"Hello\"\nworld."); got != "Hello world" {
		t.Fatalf("unexpected cleanup %q", got)
	}
	if got := CleanUpAITextResponse("Quiet harbor.. "); got != "Quiet harbor" {
		t.Fatalf("trailing periods not stripped to a fixed point: %q", got)
	}
}

func TestIsContentFilterResponse(t *testing.T) {
	if !IsContentFilterResponse("I'm sorry, I cannot help with that.") {
		t.Fatalf("expected refusal to be detected")
	}
	if !IsContentFilterResponse("I APOLOGIZE for the confusion") {
		t.Fatalf("expected case-insensitive match")
	}
	if IsContentFilterResponse(`{"english":"Silent Dawn","chinese":"静谧黎明"}`) {
		t.Fatalf("valid payload flagged as refusal")
	}
}

func TestWithholdApology(t *testing.T) {
	if got := WithholdApology("Sorry, I can't see the image"); got != "" {
		t.Fatalf("expected apology to be withheld, got %q", got)
	}
	if got := WithholdApology("Golden light"); got != "Golden light" {
		t.Fatalf("unexpected %q", got)
	}
}
