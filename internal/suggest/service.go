// Package suggest produces query suggestions for a service from pluggable
// providers (history, SQL templates).
package suggest

import (
	"context"
	"log/slog"
	"sort"

	"github.com/entl/dbdeck/internal/registry"
)

// maxSuggestions caps the merged result so the UI is never overwhelmed.
const maxSuggestions = 50

// Suggestion is one candidate query with a relevance score in [0,1].
type Suggestion struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Provider is an interface for suggestion sources (history, templates, ...).
type Provider interface {
	Suggestions(ctx context.Context, svc registry.Descriptor, input string) ([]Suggestion, error)
	Name() string
}

// Service merges suggestions from all registered providers.
type Service struct {
	providers []Provider
	logger    *slog.Logger
}

// NewService creates a suggestion service with the given providers, in
// priority order.
func NewService(logger *slog.Logger, providers ...Provider) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{providers: providers, logger: logger}
}

// Suggest collects, deduplicates and ranks suggestions for the input. A
// failing provider is logged and skipped; the rest still contribute.
func (s *Service) Suggest(ctx context.Context, svc registry.Descriptor, input string) []Suggestion {
	var all []Suggestion
	for _, p := range s.providers {
		suggestions, err := p.Suggestions(ctx, svc, input)
		if err != nil {
			s.logger.Warn("suggestion provider failed", "provider", p.Name(), "error", err)
			continue
		}
		all = append(all, suggestions...)
	}

	deduped := deduplicate(all)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Score > deduped[j].Score
	})

	if len(deduped) > maxSuggestions {
		deduped = deduped[:maxSuggestions]
	}
	return deduped
}

// deduplicate removes duplicate texts, keeping the highest score for each.
func deduplicate(suggestions []Suggestion) []Suggestion {
	seen := make(map[string]int, len(suggestions))
	out := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if i, ok := seen[s.Text]; ok {
			if s.Score > out[i].Score {
				out[i] = s
			}
			continue
		}
		seen[s.Text] = len(out)
		out = append(out, s)
	}
	return out
}
