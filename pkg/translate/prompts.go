package translate

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/newsbridge/pkg/chunk"
)

const markupRules = `- Keep every HTML tag and attribute exactly as given. Translate only the human-readable text between tags.
- Copy placeholders of the form {{NAME_xxxx_000}} unchanged, in the same position.
- Keep URLs, product model numbers and brand names as they are.
- Do not add commentary, notes or explanations.`

func plainSystem(src, tgt string) string {
	return fmt.Sprintf(`You are a professional news translator. Translate the %[1]s news text you are given into natural, fluent %[2]s written in a news register.

Rules:
%[3]s
- The input is split into segments by lines containing only %[4]s. Return the same number of segments, in the same order, separated by the same marker line.
- Output only the translated segments.`, src, tgt, markupRules, chunk.Marker)
}

func plainUser(text string, segments int) string {
	return fmt.Sprintf("Segments: %d\n\n%s", segments, text)
}

func titleSystem(src, tgt string) string {
	return fmt.Sprintf(`You translate %s news headlines into natural %s headlines. Reply with the translated headline only, on one line, without quotes.`, src, tgt)
}

func headingSystem(src, tgt string) string {
	return fmt.Sprintf(`You translate %[1]s section headings from a news article into natural %[2]s. Keep any HTML tags exactly as given and translate only the text. Reply with the translated heading only, on one line.`, src, tgt)
}

func structuredSystem(src, tgt string) string {
	return fmt.Sprintf(`You are a professional news translator and editor. Translate the %[1]s article you are given into natural, fluent %[2]s.

Rules:
%[3]s
- The article body is split into segments by lines containing only %[4]s. Keep the same number of segments in the same order, separated by the same marker line.

Reply with a single JSON object and nothing else:
{"title": "translated headline", "content": "translated body segments", "excerpt": "one or two sentence plain-text summary", "summary": "<ul><li>three key points as HTML list items</li></ul>"}`, src, tgt, markupRules, chunk.Marker)
}

func structuredUser(title, content string, segments int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:\n%s\n\nSegments: %d\n\nBody:\n%s", title, segments, content)
	return sb.String()
}

func repairSystem(src, tgt string) string {
	return fmt.Sprintf(`You are editing an HTML news article that was translated into %[2]s but still contains untranslated %[1]s text.

Rules:
%[3]s
- Translate every remaining %[1]s word or sentence into %[2]s.
- Leave text that is already %[2]s unchanged.
- Return the complete HTML and nothing else.`, src, tgt, markupRules)
}
