package speech

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// phraseEntry is a configured trigger phrase with its precomputed
// variations. Both the phrase and its variations are normalised.
type phraseEntry struct {
	text       string
	variations []string
}

func newPhraseEntry(phrase string) phraseEntry {
	n := normalize(phrase)
	return phraseEntry{text: n, variations: variations(n)}
}

// matchThreshold maps sensitivity in [0, 1] to the minimum match confidence.
func matchThreshold(sensitivity float64) float64 {
	return 0.1 + (1-sensitivity)*0.8
}

// matchConfidence scores how well the normalised recognised text matches
// the phrase. The ladder is ordered from strongest to weakest evidence:
// exact substring, known variation, fuzzy per-word match, lone long-word
// substring.
func matchConfidence(entry phraseEntry, text string) float64 {
	if strings.Contains(text, entry.text) {
		return 1.0
	}
	for _, v := range entry.variations {
		if strings.Contains(text, v) {
			return 0.9
		}
	}

	phraseWords := strings.Fields(entry.text)
	textWords := strings.Fields(text)
	if len(phraseWords) > 0 && len(textWords) > 0 {
		matched := 0
		for _, pw := range phraseWords {
			for _, tw := range textWords {
				if wordsSimilar(pw, tw) {
					matched++
					break
				}
			}
		}
		ratio := float64(matched) / float64(len(phraseWords))
		if ratio >= 0.7 {
			return ratio * 0.8
		}
	}

	for _, pw := range phraseWords {
		if len(pw) > 3 && strings.Contains(text, pw) {
			return 0.5
		}
	}
	return 0
}

// wordsSimilar reports whether two words are close enough to count as the
// same word after recognition noise: similar length and a small edit
// distance, with short words held to a tighter bound.
func wordsSimilar(a, b string) bool {
	if a == b {
		return true
	}
	diff := len(a) - len(b)
	if diff < -2 || diff > 2 {
		return false
	}
	maxDist := 2
	if len(a) <= 4 || len(b) <= 4 {
		maxDist = 1
	}
	return matchr.Levenshtein(a, b) <= maxDist
}

// phraseMatch is one phrase that cleared the threshold for a hypothesis.
type phraseMatch struct {
	phrase     string
	confidence float64
}

// matchPhrases scores text against all entries and returns the matches at
// or above threshold, strongest first.
func matchPhrases(entries []phraseEntry, text string, threshold float64) []phraseMatch {
	text = normalize(text)
	if text == "" {
		return nil
	}

	var matches []phraseMatch
	for _, e := range entries {
		if conf := matchConfidence(e, text); conf >= threshold {
			matches = append(matches, phraseMatch{phrase: e.text, confidence: conf})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].confidence > matches[j].confidence })
	return matches
}
