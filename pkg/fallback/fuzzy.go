package fallback

import (
	"sort"
	"strings"

	"github.com/ayushsetu/platform/pkg/terminology"
)

// Match is one scored reverse-lookup hit against the NAMC corpus. Scores are
// on a 0-100 scale for approximate matches; exact and containment matches are
// boosted above 100 into the map-like band.
type Match struct {
	Code       string  `json:"code"`
	Term       string  `json:"term"`
	Score      float64 `json:"score"`
	Definition string  `json:"definition,omitempty"`
}

const (
	exactBoostScore       = 150
	containmentBoostScore = 125
	containmentMinLength  = 3
)

// Matcher scores free-text terms against the NAMC corpus.
type Matcher struct {
	catalog *terminology.Catalog
}

func NewMatcher(catalog *terminology.Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match returns up to limit concepts ranked by descending score. Ties keep
// corpus order.
func (m *Matcher) Match(term string, limit int) []Match {
	normalized := normalize(term)
	if normalized == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	matches := make([]Match, 0, len(m.catalog.Concepts()))
	for _, concept := range m.catalog.Concepts() {
		score := Score(normalized, normalize(concept.CompositeDisplay()))
		if display := normalize(concept.Display); display != "" {
			if s := Score(normalized, display); s > score {
				score = s
			}
		}
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{
			Code:       concept.Code,
			Term:       concept.CompositeDisplay(),
			Score:      score,
			Definition: concept.Vernacular(),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Score compares two normalized strings. Exact equality and substring
// containment land above 100 so the resolver can classify them as
// authoritative-equivalent; everything else is a token-set ratio in [0,100].
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return exactBoostScore
	}
	if len(a) >= containmentMinLength && len(b) >= containmentMinLength {
		if strings.Contains(b, a) || strings.Contains(a, b) {
			return containmentBoostScore
		}
	}
	return tokenSetRatio(a, b)
}

func normalize(s string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == ' ', r == '\t':
			builder.WriteRune(' ')
		default:
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// tokenSetRatio follows the token-set heuristic: compare the shared token
// core against each side's full token set and keep the best ratio.
func tokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	var shared []string
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			shared = append(shared, token)
		}
	}
	sort.Strings(shared)
	core := strings.Join(shared, " ")

	combinedA := joinSorted(tokensA)
	combinedB := joinSorted(tokensB)

	best := ratio(combinedA, combinedB)
	if core != "" {
		if r := ratio(core, combinedA); r > best {
			best = r
		}
		if r := ratio(core, combinedB); r > best {
			best = r
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}

func joinSorted(set map[string]struct{}) string {
	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// ratio is a Levenshtein similarity on a 0-100 scale.
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	distance := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 100 * (1 - float64(distance)/float64(longest))
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	previous := make([]int, len(rb)+1)
	current := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		previous[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = minInt(previous[j]+1, minInt(current[j-1]+1, previous[j-1]+cost))
		}
		previous, current = current, previous
	}
	return previous[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
