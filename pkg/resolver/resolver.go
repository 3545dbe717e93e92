package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/fallback"
	"github.com/ayushsetu/platform/pkg/who"
)

// ICDSearcher is the forward fallback: WHO flexisearch against the ICD-11
// corpus.
type ICDSearcher interface {
	Search(ctx context.Context, term string) ([]who.SearchResult, error)
}

// NAMCMatcher is the reverse fallback: fuzzy matching against the NAMC
// corpus.
type NAMCMatcher interface {
	Match(term string, limit int) []fallback.Match
}

// Resolver orchestrates the authoritative concept map and the two fallback
// collaborators per conversion direction.
type Resolver struct {
	maps      conceptmap.Store
	icd       ICDSearcher
	namc      NAMCMatcher
	threshold float64
	limit     int
}

func New(maps conceptmap.Store, icd ICDSearcher, namc NAMCMatcher, mapLikeThreshold float64, fuzzyLimit int) *Resolver {
	if mapLikeThreshold <= 0 {
		mapLikeThreshold = 100
	}
	if fuzzyLimit <= 0 {
		fuzzyLimit = 10
	}
	return &Resolver{
		maps:      maps,
		icd:       icd,
		namc:      namc,
		threshold: mapLikeThreshold,
		limit:     fuzzyLimit,
	}
}

// ParseTerm splits a composite converter term "CODE, System: Label" on the
// first comma. The label half may be empty; the code half may not.
func ParseTerm(input string) (code, label string, err error) {
	code, label, _ = strings.Cut(input, ",")
	code = strings.TrimSpace(code)
	label = strings.TrimSpace(label)
	if code == "" {
		return "", "", &MalformedTermError{Input: input}
	}
	return code, label, nil
}

// stripSystemPrefix removes the "System: " half of a composite display key,
// leaving the English term the fallback services search on.
func stripSystemPrefix(label string) string {
	if _, rest, found := strings.Cut(label, ": "); found {
		return rest
	}
	return label
}

// Resolve implements the precedence contract: authoritative map first, then
// the direction's fallback, then a source=none envelope. Collaborator
// failures come back as *UpstreamLookupError next to a none envelope and are
// never allowed to escape as panics.
func (r *Resolver) Resolve(ctx context.Context, direction models.Direction, inputTerm string) (models.ConversionResponse, error) {
	code, label, err := ParseTerm(inputTerm)
	if err != nil {
		return models.ConversionResponse{Source: models.SourceNone, Results: []models.ConversionResult{}}, err
	}

	switch direction {
	case models.NAMCToICD:
		return r.resolveForward(ctx, code, label)
	case models.ICDToNAMC:
		return r.resolveReverse(ctx, code, label)
	default:
		return models.ConversionResponse{Source: models.SourceNone, Results: []models.ConversionResult{}},
			&MalformedTermError{Input: string(direction)}
	}
}

func (r *Resolver) resolveForward(ctx context.Context, code, label string) (models.ConversionResponse, error) {
	targets, err := r.maps.Forward(ctx, code)
	if err != nil {
		logger.Log.WithError(err).WithField("code", code).Error("Concept map forward lookup failed")
		return noneEnvelope(), &UpstreamLookupError{Op: "conceptmap", Err: err}
	}
	if len(targets) > 0 {
		results := make([]models.ConversionResult, 0, len(targets))
		for _, target := range targets {
			results = append(results, models.ConversionResult{
				Code:   target.Code,
				Title:  target.Display,
				Source: models.SourceMap,
			})
		}
		return models.ConversionResponse{Source: models.SourceMap, Results: results}, nil
	}

	term := stripSystemPrefix(label)
	if term == "" {
		term = code
	}
	hits, err := r.icd.Search(ctx, term)
	if err != nil {
		logger.Log.WithError(err).WithField("term", term).Error("WHO flexisearch failed")
		return noneEnvelope(), &UpstreamLookupError{Op: "flexisearch", Err: err}
	}
	if len(hits) == 0 {
		return noneEnvelope(), nil
	}

	results := make([]models.ConversionResult, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score
		results = append(results, models.ConversionResult{
			Code:   hit.Code,
			Title:  hit.Title,
			Score:  &score,
			Source: models.SourceFlexi,
		})
	}
	sortByScore(results)
	return models.ConversionResponse{Source: models.SourceFlexi, Results: results}, nil
}

func (r *Resolver) resolveReverse(ctx context.Context, code, label string) (models.ConversionResponse, error) {
	sources, err := r.maps.Reverse(ctx, code)
	if err != nil {
		logger.Log.WithError(err).WithField("code", code).Error("Concept map reverse lookup failed")
		return noneEnvelope(), &UpstreamLookupError{Op: "conceptmap", Err: err}
	}
	if len(sources) > 0 {
		results := make([]models.ConversionResult, 0, len(sources))
		for _, source := range sources {
			results = append(results, models.ConversionResult{
				Code:   source.Code,
				Title:  source.Display,
				Source: models.SourceMap,
			})
		}
		return models.ConversionResponse{Source: models.SourceMap, Results: results}, nil
	}

	term := label
	if term == "" {
		term = code
	}
	matches := r.namc.Match(term, r.limit)
	if len(matches) == 0 {
		return noneEnvelope(), nil
	}

	// The reverse path mixes result kinds in one list; map-likeness is
	// derived from the score boundary rather than an explicit source field.
	results := make([]models.ConversionResult, 0, len(matches))
	for _, match := range matches {
		score := match.Score
		source := models.SourceFuzzy
		if match.Score > r.threshold {
			source = models.SourceMap
		}
		results = append(results, models.ConversionResult{
			Code:   match.Code,
			Title:  match.Term,
			Score:  &score,
			Source: source,
		})
	}
	sortByScore(results)
	return models.ConversionResponse{Source: models.SourceFuzzy, Results: results}, nil
}

func noneEnvelope() models.ConversionResponse {
	return models.ConversionResponse{Source: models.SourceNone, Results: []models.ConversionResult{}}
}

// sortByScore orders descending by score, keeping collaborator order for
// ties. Nil scores (map results) rank first.
func sortByScore(results []models.ConversionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Score, results[j].Score
		if si == nil {
			return sj != nil
		}
		if sj == nil {
			return false
		}
		return *si > *sj
	})
}
