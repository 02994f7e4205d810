package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// ArticleStore provides database operations for knowledge-base articles,
// including the vector and keyword search paths used for response grounding.
type ArticleStore struct {
	pool *pgxpool.Pool
}

func NewArticleStore(pool *pgxpool.Pool) *ArticleStore {
	return &ArticleStore{pool: pool}
}

const articleColumns = `id, title, content, category, tags, difficulty,
	estimated_read_time, related_ticket_ids, confidence, status, created_at`

func scanArticle(row pgx.Row) (*dto.KnowledgeArticle, error) {
	a := &dto.KnowledgeArticle{}
	err := row.Scan(
		&a.ID, &a.Title, &a.Content, &a.Category, &a.Tags, &a.Difficulty,
		&a.EstimatedReadTime, &a.RelatedTicketIDs, &a.Confidence, &a.Status, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning article: %w", err)
	}
	return a, nil
}

// Insert stores an article and returns its generated id.
func (s *ArticleStore) Insert(ctx context.Context, a dto.KnowledgeArticle) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO knowledge_articles
		 (title, content, category, tags, difficulty, estimated_read_time,
		  related_ticket_ids, confidence, status, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		a.Title, a.Content, a.Category, a.Tags, a.Difficulty, a.EstimatedReadTime,
		a.RelatedTicketIDs, a.Confidence, a.Status, a.Embedding,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting article: %w", err)
	}
	return id, nil
}

// ListTitlesByCategory returns existing article titles in a category, used by
// the miner's duplicate check.
func (s *ArticleStore) ListTitlesByCategory(ctx context.Context, category string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT title FROM knowledge_articles WHERE category = $1`, category)
	if err != nil {
		return nil, fmt.Errorf("listing article titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scanning article title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating article titles: %w", err)
	}
	return titles, nil
}

// SearchSemantic returns published articles nearest to the query embedding.
func (s *ArticleStore) SearchSemantic(ctx context.Context, embedding []float32, limit int) ([]dto.KnowledgeArticle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+articleColumns+`
		 FROM knowledge_articles
		 WHERE status = 'published' AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("semantic article search: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// SearchKeyword is the fallback search when no embedder is configured.
func (s *ArticleStore) SearchKeyword(ctx context.Context, query string, limit int) ([]dto.KnowledgeArticle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+articleColumns+`
		 FROM knowledge_articles
		 WHERE status = 'published' AND (title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword article search: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

func collectArticles(rows pgx.Rows) ([]dto.KnowledgeArticle, error) {
	var articles []dto.KnowledgeArticle
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return articles, nil
}
