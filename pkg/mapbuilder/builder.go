package mapbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/fhir"
	"github.com/ayushsetu/platform/pkg/terminology"
	"github.com/ayushsetu/platform/pkg/who"
)

// ICDSearcher is the WHO client surface the builder needs.
type ICDSearcher interface {
	Search(ctx context.Context, term string) ([]who.SearchResult, error)
}

// Result of a full build run.
type Result struct {
	Elements []conceptmap.Element
	Skipped  int
}

// Builder walks the NAMC corpus and asks the WHO API for ICD-11 candidates
// for every concept, with a bounded worker pool. Concepts with no match are
// counted but not emitted.
type Builder struct {
	catalog     *terminology.Catalog
	searcher    ICDSearcher
	workers     int
	targetLimit int
	conceptCap  int
}

func New(catalog *terminology.Catalog, searcher ICDSearcher, workers, targetLimit, conceptCap int) *Builder {
	if workers <= 0 {
		workers = 8
	}
	if targetLimit <= 0 {
		targetLimit = 20
	}
	return &Builder{
		catalog:     catalog,
		searcher:    searcher,
		workers:     workers,
		targetLimit: targetLimit,
		conceptCap:  conceptCap,
	}
}

func (b *Builder) Build(ctx context.Context) (Result, error) {
	concepts := b.catalog.Concepts()
	if b.conceptCap > 0 && len(concepts) > b.conceptCap {
		concepts = concepts[:b.conceptCap]
	}
	if len(concepts) == 0 {
		return Result{}, fmt.Errorf("no concepts to map")
	}

	jobs := make(chan terminology.Concept)
	type outcome struct {
		element conceptmap.Element
		matched bool
	}
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for concept := range jobs {
				element, matched := b.mapConcept(ctx, concept)
				select {
				case outcomes <- outcome{element: element, matched: matched}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, concept := range concepts {
			if concept.Code == "" || concept.Display == "" {
				continue
			}
			select {
			case jobs <- concept:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var result Result
	processed := 0
	for out := range outcomes {
		processed++
		if out.matched {
			result.Elements = append(result.Elements, out.element)
		} else {
			result.Skipped++
		}
		if processed%100 == 0 {
			logger.Log.WithFields(map[string]interface{}{
				"processed": processed,
				"mapped":    len(result.Elements),
				"skipped":   result.Skipped,
			}).Info("Map builder progress")
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	sort.Slice(result.Elements, func(i, j int) bool {
		return result.Elements[i].Code < result.Elements[j].Code
	})
	return result, nil
}

func (b *Builder) mapConcept(ctx context.Context, concept terminology.Concept) (conceptmap.Element, bool) {
	hits, err := b.searcher.Search(ctx, concept.Display)
	if err != nil {
		logger.Log.WithError(err).WithField("code", concept.Code).Warn("WHO search failed for concept")
		return conceptmap.Element{}, false
	}

	var targets []conceptmap.Target
	for _, hit := range hits {
		targets = append(targets, conceptmap.Target{
			Code:        hit.Code,
			Display:     hit.Title,
			Equivalence: "relatedto",
		})
		if len(targets) == b.targetLimit {
			break
		}
	}
	if len(targets) == 0 {
		return conceptmap.Element{}, false
	}

	return conceptmap.Element{
		Code:    concept.Code,
		Display: concept.CompositeDisplay(),
		Target:  targets,
	}, true
}

// WriteFile assembles the FHIR ConceptMap resource and writes it as indented
// JSON.
func WriteFile(path string, result Result) error {
	description := fmt.Sprintf(
		"A draft concept map linking NAMC codes to ICD-11 codes. Generated from %d NAMC codes that had at least one match; %d codes were skipped due to no match.",
		len(result.Elements), result.Skipped)
	resource := fhir.NewConceptMap("namc-to-icd11", result.Elements, description)

	payload, err := json.MarshalIndent(resource, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal concept map: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write concept map: %w", err)
	}
	return nil
}
