package nlp

import (
	"context"
	"errors"

	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/fallback"
)

// ErrEmptyQuery rejects blank searches locally, before any index work.
var ErrEmptyQuery = errors.New("query must not be empty")

// Service runs the free-text card flow: semantic search over the NAMC corpus
// and card selection into a binding session.
type Service struct {
	index *fallback.SemanticIndex
	limit int
}

func NewService(index *fallback.SemanticIndex, limit int) *Service {
	if limit <= 0 {
		limit = 5
	}
	return &Service{index: index, limit: limit}
}

// Search returns ranked cards for a clinical description.
func (s *Service) Search(_ context.Context, query string) ([]models.NLPMatch, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	matches := s.index.Search(query, s.limit)
	if matches == nil {
		matches = []models.NLPMatch{}
	}
	return matches, nil
}

// Select feeds a clicked card into the session as a confirmed NAMC
// selection, clearing the ICD half of the combined record.
func (s *Service) Select(session *binding.Session, match models.NLPMatch) {
	session.ApplyNLPSelection(match)
}
