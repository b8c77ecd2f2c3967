package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/mediaforge/contentpipe/pkg/models"
)

const defaultSuggestionCount = 5

// suggestTitles implements §4.2 suggest: ask the sidecar for N candidate
// titles, then translate each into Vietnamese for display when the
// Generation's own language isn't already Vietnamese. Never persists
// anything.
func (s *Server) suggestTitles(ctx context.Context, seed, language, model string) ([]models.Suggestion, error) {
	if seed == "" {
		return nil, errMissingField("seed_topic")
	}

	titles, err := s.llm.SuggestTitles(ctx, seed, language, defaultSuggestionCount, model)
	if err != nil {
		return nil, fmt.Errorf("suggest titles: %w", err)
	}

	alreadyVietnamese := strings.EqualFold(language, "vietnamese") || strings.EqualFold(language, "vi")

	suggestions := make([]models.Suggestion, 0, len(titles))
	for _, title := range titles {
		translation := title
		if !alreadyVietnamese {
			translated, err := s.llm.Translate(ctx, title, "Vietnamese", model)
			if err != nil {
				return nil, fmt.Errorf("translate suggestion %q: %w", title, err)
			}
			translation = translated
		}
		suggestions = append(suggestions, models.Suggestion{Original: title, TranslationVI: translation})
	}

	return suggestions, nil
}
