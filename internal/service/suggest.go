package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
	"github.com/ThinhVo0/BT4-CNPMM/internal/query"
)

// MaxSuggestLimit caps the number of suggestions per request.
const MaxSuggestLimit = 50

// suggestTier is one state of the suggestion fallback chain.
type suggestTier int

const (
	tierCompletion suggestTier = iota
	tierPrefix
	tierCategoryPrefix
	tierDone
)

func (t suggestTier) String() string {
	switch t {
	case tierCompletion:
		return "completion"
	case tierPrefix:
		return "prefix"
	case tierCategoryPrefix:
		return "category_prefix"
	default:
		return "done"
	}
}

// next is the tier tried when t yields nothing. Category-scoped lookups
// never fall back to global ones.
func (t suggestTier) next() suggestTier {
	if t == tierCompletion {
		return tierPrefix
	}
	return tierDone
}

// Suggest returns autocomplete candidates for prefix. It never fails: a
// backend error at any tier counts as an empty answer from that tier.
func (s *SearchService) Suggest(ctx context.Context, prefix string, limit int, category string) []domain.Suggestion {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < domain.MinSuggestPrefix {
		return []domain.Suggestion{}
	}
	if limit <= 0 {
		limit = domain.DefaultSuggestLimit
	}
	limit = min(limit, MaxSuggestLimit)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "search.suggest")
	defer span.End()

	tier := tierCompletion
	if category != "" {
		tier = tierCategoryPrefix
	}

	for tier != tierDone {
		out, err := s.resolveTier(ctx, tier, prefix, limit, category)
		if err != nil {
			suggestTierFailures.WithLabelValues(tier.String()).Inc()
			s.logger.WarnContext(ctx, "suggestion tier failed",
				slog.String("tier", tier.String()),
				slog.String("prefix", prefix),
				slog.String("error", err.Error()),
			)
			out = nil
		}
		if len(out) > 0 || tier.next() == tierDone {
			suggestTierResults.WithLabelValues(tier.String()).Inc()
			span.SetAttributes(attribute.String("suggest.tier", tier.String()))
			if out == nil {
				out = []domain.Suggestion{}
			}
			return out
		}
		tier = tier.next()
	}
	return []domain.Suggestion{}
}

func (s *SearchService) resolveTier(ctx context.Context, tier suggestTier, prefix string, limit int, category string) ([]domain.Suggestion, error) {
	switch tier {
	case tierCompletion:
		return s.engine.Complete(ctx, prefix, limit)
	case tierPrefix:
		return s.prefixSuggestions(ctx, prefix, limit, "")
	case tierCategoryPrefix:
		return s.prefixSuggestions(ctx, prefix, limit, category)
	}
	return nil, nil
}

// prefixSuggestions runs a phrase-prefix query on the product name and
// returns distinct names in score order.
func (s *SearchService) prefixSuggestions(ctx context.Context, prefix string, limit int, category string) ([]domain.Suggestion, error) {
	res, err := s.engine.Search(ctx, query.SuggestPrefix(prefix, limit, category))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(res.Hits))
	out := make([]domain.Suggestion, 0, len(res.Hits))
	for _, h := range res.Hits {
		name := h.Source.Name
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, domain.Suggestion{Text: name, Score: h.Score})
	}
	return out, nil
}
