package elasticsearch

import (
	"context"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

const completionSuggestName = "name_completion"

// esSuggestResponse is the structure used to decode completion suggester responses.
type esSuggestResponse struct {
	Suggest map[string][]struct {
		Options []struct {
			Text  string  `json:"text"`
			Score float64 `json:"_score"`
		} `json:"options"`
	} `json:"suggest"`
}

// Complete runs the completion suggester on name.suggest. Repeated texts
// are collapsed, keeping the first occurrence.
func (e *Engine) Complete(ctx context.Context, prefix string, size int) ([]domain.Suggestion, error) {
	var resp esSuggestResponse
	if err := e.searchInto(ctx, "elasticsearch complete", renderCompletion(prefix, size), &resp); err != nil {
		return nil, err
	}
	return collectSuggestions(resp), nil
}

func collectSuggestions(esResp esSuggestResponse) []domain.Suggestion {
	seen := make(map[string]struct{})
	out := make([]domain.Suggestion, 0)
	for _, entry := range esResp.Suggest[completionSuggestName] {
		for _, opt := range entry.Options {
			if _, dup := seen[opt.Text]; dup {
				continue
			}
			seen[opt.Text] = struct{}{}
			out = append(out, domain.Suggestion{Text: opt.Text, Score: opt.Score})
		}
	}
	return out
}
