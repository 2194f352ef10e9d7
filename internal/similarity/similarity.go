// Package similarity measures how much successive artifact revisions
// actually change, and detects stagnating sessions that iterate without
// making progress.
package similarity

import (
	"strings"
	"unicode"
)

// sampleThreshold is the artifact length above which similarity is
// computed over begin/middle/end samples instead of the full text.
const sampleThreshold = 1000

// sampleSegment is the length of each of the three samples.
const sampleSegment = 333

// Composite weights for the similarity blend.
const (
	editWeight       = 0.4
	tokenWeight      = 0.4
	structuralWeight = 0.2
)

// Composite returns the blended similarity of two artifacts in [0,1]:
// normalized edit distance, token Jaccard, and structural-token Jaccard.
// Long artifacts are sampled first so the edit distance stays tractable.
func Composite(a, b string) float64 {
	sa, sb := sample(a), sample(b)
	return editWeight*editSimilarity(sa, sb) +
		tokenWeight*tokenJaccard(a, b) +
		structuralWeight*structuralJaccard(a, b)
}

// sample reduces long text to three fixed-size windows: the beginning,
// the middle, and the end. Short text is returned unchanged.
func sample(s string) string {
	if len(s) <= sampleThreshold {
		return s
	}
	mid := len(s)/2 - sampleSegment/2
	return s[:sampleSegment] + s[mid:mid+sampleSegment] + s[len(s)-sampleSegment:]
}

// editSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with the two-row dynamic program,
// O(min(len)) memory.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// tokenJaccard is the Jaccard index over whitespace-and-punctuation
// delimited tokens.
func tokenJaccard(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		set[tok] = true
	}
	return set
}

// structuralTokens are the characters and keywords that outline code
// shape independent of identifiers and literals.
var structuralKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "switch": true,
	"case": true, "return": true, "func": true, "function": true,
	"class": true, "struct": true, "interface": true, "type": true,
	"try": true, "catch": true, "defer": true, "go": true, "import": true,
}

// structuralJaccard compares artifacts by their structural outline: a
// sequence of brace/bracket/paren characters and control-flow keywords,
// compared as bigram sets so ordering matters.
func structuralJaccard(a, b string) float64 {
	return jaccard(structuralBigrams(a), structuralBigrams(b))
}

func structuralBigrams(s string) map[string]bool {
	var outline []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			if structuralKeywords[word.String()] {
				outline = append(outline, word.String())
			}
			word.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '{', '}', '(', ')', '[', ']', ';':
			flush()
			outline = append(outline, string(r))
		default:
			if unicode.IsLetter(r) {
				word.WriteRune(r)
			} else {
				flush()
			}
		}
	}
	flush()

	set := make(map[string]bool)
	for i := 0; i+1 < len(outline); i++ {
		set[outline[i]+outline[i+1]] = true
	}
	if len(set) == 0 && len(outline) == 1 {
		set[outline[0]] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// cosmeticThreshold is the strict-normalized similarity at or above which
// two revisions are considered cosmetically identical.
const cosmeticThreshold = 0.98

// Cosmetic reports whether two revisions differ only cosmetically:
// after collapsing whitespace and stripping line comments they are at
// least 98% similar by edit distance.
func Cosmetic(a, b string) bool {
	na, nb := strictNormalize(a), strictNormalize(b)
	if na == nb {
		return true
	}
	return editSimilarity(sample(na), sample(nb)) >= cosmeticThreshold
}

// strictNormalize collapses all whitespace runs to single spaces and
// removes // and # line comments.
func strictNormalize(s string) string {
	var out strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if idx := strings.Index(line, "//"); idx != -1 {
			line = line[:idx]
		}
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return strings.Join(strings.Fields(out.String()), " ")
}
