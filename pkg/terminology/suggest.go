package terminology

import (
	"strings"

	"github.com/ayushsetu/platform/pkg/common/models"
)

// Suggest returns up to limit candidates whose display or code contains the
// query, case-insensitively, in corpus order. An empty query returns nothing
// without touching the corpus.
func (c *Catalog) Suggest(query string, limit int) []models.TermCandidate {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.TermCandidate{}
	}
	if limit <= 0 {
		limit = 50
	}

	results := make([]models.TermCandidate, 0, limit)
	for _, concept := range c.concepts {
		if !strings.Contains(strings.ToLower(concept.Display), query) &&
			!strings.Contains(strings.ToLower(concept.Code), query) {
			continue
		}
		results = append(results, models.TermCandidate{
			Code:       concept.Code,
			Display:    concept.CompositeDisplay(),
			Definition: concept.Vernacular(),
			System:     concept.System,
		})
		if len(results) == limit {
			break
		}
	}
	return results
}
