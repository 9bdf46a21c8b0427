package suggest

import (
	"context"
	"strings"

	"github.com/entl/dbdeck/internal/history"
	"github.com/entl/dbdeck/internal/registry"
)

// HistoryProvider suggests previously executed queries matching the typed
// prefix, weighted toward recent entries for the same service.
type HistoryProvider struct {
	store *history.Store
}

// NewHistoryProvider creates a history suggestion provider over the bounded
// store.
func NewHistoryProvider(store *history.Store) *HistoryProvider {
	return &HistoryProvider{store: store}
}

// Name returns the provider name.
func (p *HistoryProvider) Name() string {
	return "history"
}

// Suggestions returns history-based suggestions for the input prefix.
func (p *HistoryProvider) Suggestions(_ context.Context, svc registry.Descriptor, input string) ([]Suggestion, error) {
	if input == "" {
		return nil, nil
	}

	lowerInput := strings.ToLower(input)
	seen := make(map[string]struct{})
	var suggestions []Suggestion

	index := 0
	total := p.store.Len()
	for entry := range p.store.Search(input) {
		i := index
		index++

		if !strings.HasPrefix(strings.ToLower(entry.Query), lowerInput) {
			continue
		}
		if entry.Query == input {
			continue // no point suggesting what's already typed
		}
		if _, ok := seen[entry.Query]; ok {
			continue
		}
		seen[entry.Query] = struct{}{}

		suggestions = append(suggestions, Suggestion{
			Text:   entry.Query,
			Source: "history",
			Score:  historyScore(entry.Query, input, entry.ServiceID == svc.Name, i, total),
		})
	}

	if len(suggestions) > 20 {
		suggestions = suggestions[:20]
	}
	return suggestions, nil
}

// historyScore computes relevance from recency, prefix match quality and
// whether the entry ran against the same service.
func historyScore(query, input string, sameService bool, index, total int) float64 {
	score := 0.7 // base score for history, above templates

	// Recency boost: index 0 is most recent in search order.
	if total > 1 {
		score += float64(total-index) / float64(total) * 0.15
	}

	// Longer typed prefixes relative to the suggestion mean a tighter match.
	if len(query) > 0 {
		score += float64(len(input)) / float64(len(query)) * 0.1
	}

	if sameService {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
