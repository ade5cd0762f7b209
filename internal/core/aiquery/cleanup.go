package aiquery

import "strings"

var contentFilterPhrases = []string{
	"i'm sorry",
	"i apologize",
	"cannot help",
	"can't help",
}

// CleanUpAITextResponse flattens newlines, drops double quotes and trailing
// periods, and trims. Applying it twice yields the same text as once.
func CleanUpAITextResponse(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.TrimSpace(text)
	// Repeat the single trailing-period strip until stable so a second pass is a no-op.
	for strings.HasSuffix(text, ".") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "."))
	}
	return text
}

// IsContentFilterResponse reports whether the model answered with a refusal
// instead of the requested content.
func IsContentFilterResponse(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range contentFilterPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// WithholdApology hides streamed text that opens with an apology.
func WithholdApology(text string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "sorry") {
		return ""
	}
	return text
}

// CleanStreamDelta flattens newlines in one streamed fragment. Spaces and
// quotes are kept: spaces separate words across fragments and quotes may
// belong to a JSON reply.
func CleanStreamDelta(delta string) string {
	return strings.ReplaceAll(delta, "\n", " ")
}
