package lyrics

import (
	"regexp"
	"strings"
)

var (
	paragraphOpenRe  = regexp.MustCompile(`(?i)<p[^>]*>`)
	paragraphCloseRe = regexp.MustCompile(`(?i)</p>`)
	lineBreakRe      = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTagRe         = regexp.MustCompile(`</?[^>]+(>|$)`)
	runSpacesRe      = regexp.MustCompile(`[ \t]+`)
	runBlanksRe      = regexp.MustCompile(`\n{3,}`)
	gluedStanzaRe    = regexp.MustCompile(`([!?.])(\w)`)
)

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// cleanLyricsHTML flattens a lyrics HTML fragment into plain text:
// paragraphs become stanza breaks, <br> becomes a newline, every other
// tag is stripped, entities are decoded and whitespace is normalized.
func cleanLyricsHTML(html string) string {
	cleaned := paragraphOpenRe.ReplaceAllString(html, "PARAGRAPH_START")
	cleaned = paragraphCloseRe.ReplaceAllString(cleaned, "PARAGRAPH_END")
	cleaned = lineBreakRe.ReplaceAllString(cleaned, "\n")
	cleaned = anyTagRe.ReplaceAllString(cleaned, "")
	cleaned = htmlEntities.Replace(cleaned)
	cleaned = runSpacesRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.ReplaceAll(cleaned, "PARAGRAPH_START", "")
	cleaned = strings.ReplaceAll(cleaned, "PARAGRAPH_END", "\n\n")

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	cleaned = strings.Join(lines, "\n")
	cleaned = runBlanksRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// tidyLyrics applies the final presentation fixes: sentences glued to
// the next stanza get a blank line, and a text with single newlines
// only is spread into stanza spacing.
func tidyLyrics(lyrics string) string {
	lyrics = gluedStanzaRe.ReplaceAllString(lyrics, "$1\n\n$2")
	if !strings.Contains(lyrics, "\n\n") && strings.Contains(lyrics, "\n") {
		lyrics = strings.ReplaceAll(lyrics, "\n", "\n\n")
	}
	return lyrics
}
