package speech

import "strings"

// czechReplacements maps Czech diacritic characters to the plain spellings
// a recogniser without diacritic support tends to produce. Characters with
// two entries generate one variant per spelling.
var czechReplacements = map[string][]string{
	"ě": {"e", "ie"},
	"š": {"s"},
	"č": {"c"},
	"ř": {"r", "rz"},
	"ž": {"z"},
	"ý": {"y", "i"},
	"á": {"a"},
	"í": {"i", "y"},
	"é": {"e"},
	"ú": {"u"},
	"ů": {"u"},
	"ó": {"o"},
	"ť": {"t"},
	"ď": {"d"},
	"ň": {"n"},
}

// englishContractions pairs contracted and expanded forms. Variants are
// generated in both directions.
var englishContractions = [][2]string{
	{"that's", "that is"},
	{"what's", "what is"},
	{"it's", "it is"},
	{"let's", "let us"},
	{"can't", "cannot"},
	{"won't", "will not"},
	{"don't", "do not"},
	{"isn't", "is not"},
	{"aren't", "are not"},
	{"wasn't", "was not"},
	{"weren't", "were not"},
}

// normalize lowercases and trims text for matching. Diacritics are kept;
// stripDiacritics produces the plain-ASCII form separately.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// stripDiacritics replaces every known diacritic character with its primary
// plain spelling.
func stripDiacritics(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if repls, ok := czechReplacements[string(r)]; ok {
			b.WriteString(repls[0])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// variations generates the alternate spellings of a normalised phrase that
// still count as a strong match: per-character diacritic substitutions, the
// fully stripped form, and contraction swaps.
func variations(phrase string) []string {
	seen := map[string]bool{phrase: true}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	for char, repls := range czechReplacements {
		if !strings.Contains(phrase, char) {
			continue
		}
		for _, repl := range repls {
			add(strings.ReplaceAll(phrase, char, repl))
		}
	}
	add(stripDiacritics(phrase))

	for _, pair := range englishContractions {
		if strings.Contains(phrase, pair[0]) {
			add(strings.ReplaceAll(phrase, pair[0], pair[1]))
		}
		if strings.Contains(phrase, pair[1]) {
			add(strings.ReplaceAll(phrase, pair[1], pair[0]))
		}
	}
	return out
}
