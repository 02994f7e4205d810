// Package knowledge retrieves knowledge-base articles for response grounding.
// Search is semantic when an embedder is available and falls back to keyword
// matching otherwise.
package knowledge

import (
	"context"
	"log/slog"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// Snippet is one retrieved article fragment handed to the triage engine.
type Snippet struct {
	ArticleID string
	Title     string
	Content   string
}

// Searcher is the collaborator interface the triage engine depends on.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// ArticleSearcher is the storage surface the service needs.
type ArticleSearcher interface {
	SearchSemantic(ctx context.Context, embedding []float32, limit int) ([]dto.KnowledgeArticle, error)
	SearchKeyword(ctx context.Context, query string, limit int) ([]dto.KnowledgeArticle, error)
}

// Embedder turns text into a query vector. Nil disables the semantic path.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	store    ArticleSearcher
	embedder Embedder
}

func New(store ArticleSearcher, embedder Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// Search runs the semantic path when possible. An embedding failure degrades
// to keyword search instead of failing retrieval.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = 5
	}

	if s.embedder != nil {
		embedding, err := s.embedder.EmbedText(ctx, query)
		if err == nil {
			articles, err := s.store.SearchSemantic(ctx, embedding, limit)
			if err == nil {
				return toSnippets(articles), nil
			}
			slog.WarnContext(ctx, "semantic search failed, falling back to keyword", "error", err)
		} else {
			slog.DebugContext(ctx, "embedding unavailable, using keyword search", "error", err)
		}
	}

	articles, err := s.store.SearchKeyword(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return toSnippets(articles), nil
}

func toSnippets(articles []dto.KnowledgeArticle) []Snippet {
	snippets := make([]Snippet, 0, len(articles))
	for _, a := range articles {
		snippets = append(snippets, Snippet{
			ArticleID: a.ID,
			Title:     a.Title,
			Content:   a.Content,
		})
	}
	return snippets
}
