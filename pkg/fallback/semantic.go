package fallback

import (
	"math"
	"sort"
	"strings"

	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/terminology"
)

// SemanticIndex ranks concepts against free-text clinical descriptions using
// TF-IDF weighted cosine similarity over display text plus the vernacular
// designation.
type SemanticIndex struct {
	docs []semanticDoc
	idf  map[string]float64
}

type semanticDoc struct {
	concept terminology.Concept
	content string
	vector  map[string]float64
	norm    float64
}

func NewSemanticIndex(catalog *terminology.Catalog) *SemanticIndex {
	index := &SemanticIndex{idf: make(map[string]float64)}

	documentFrequency := make(map[string]int)
	for _, concept := range catalog.Concepts() {
		content := concept.Display
		if vernacular := concept.Vernacular(); vernacular != "" {
			content = concept.Display + ": " + vernacular
		}
		counts := termCounts(content)
		for token := range counts {
			documentFrequency[token]++
		}
		index.docs = append(index.docs, semanticDoc{concept: concept, content: content})
	}

	total := float64(len(index.docs))
	for token, df := range documentFrequency {
		index.idf[token] = math.Log((1+total)/(1+float64(df))) + 1
	}

	for i := range index.docs {
		vector := make(map[string]float64)
		var norm float64
		for token, count := range termCounts(index.docs[i].content) {
			weight := float64(count) * index.idf[token]
			vector[token] = weight
			norm += weight * weight
		}
		index.docs[i].vector = vector
		index.docs[i].norm = math.Sqrt(norm)
	}

	return index
}

// Search returns the top k concepts by cosine similarity. Zero-similarity
// documents are dropped; ties keep corpus order.
func (s *SemanticIndex) Search(query string, k int) []models.NLPMatch {
	queryCounts := termCounts(query)
	if len(queryCounts) == 0 {
		return nil
	}
	if k <= 0 {
		k = 5
	}

	queryVector := make(map[string]float64, len(queryCounts))
	var queryNorm float64
	for token, count := range queryCounts {
		idf, ok := s.idf[token]
		if !ok {
			continue
		}
		weight := float64(count) * idf
		queryVector[token] = weight
		queryNorm += weight * weight
	}
	if queryNorm == 0 {
		return nil
	}
	queryNorm = math.Sqrt(queryNorm)

	matches := make([]models.NLPMatch, 0, k)
	for _, doc := range s.docs {
		if doc.norm == 0 {
			continue
		}
		var dot float64
		for token, weight := range queryVector {
			if docWeight, ok := doc.vector[token]; ok {
				dot += weight * docWeight
			}
		}
		if dot == 0 {
			continue
		}
		matches = append(matches, models.NLPMatch{
			Code:           doc.concept.Code,
			Display:        doc.concept.Display,
			System:         doc.concept.System,
			FullDefinition: doc.content,
			Score:          dot / (doc.norm * queryNorm),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func termCounts(s string) map[string]int {
	counts := make(map[string]int)
	for _, token := range strings.Fields(normalize(s)) {
		if len(token) < 2 {
			continue
		}
		counts[token]++
	}
	return counts
}
