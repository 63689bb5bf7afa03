package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// NewsRepository archives ingested news articles.
type NewsRepository struct {
	db *sql.DB
}

func NewNewsRepository(db *sql.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// SaveArticles upserts articles in one transaction.
func (r *NewsRepository) SaveArticles(ctx context.Context, articles []models.NewsArticle) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin news transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news_articles (
			id, title, body, source, sector, url, published_at,
			sentiment, sentiment_score, sentiment_confidence
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			sentiment = EXCLUDED.sentiment,
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_confidence = EXCLUDED.sentiment_confidence
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare news insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.Title, a.Text, a.Source, a.Sector, a.URL, a.PublishedAt,
			string(a.Sentiment), a.SentimentScore, a.SentimentConfidence,
		); err != nil {
			return fmt.Errorf("failed to insert news article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit news articles: %w", err)
	}
	return nil
}

// Recent lists the newest archived articles, optionally for one sector.
func (r *NewsRepository) Recent(ctx context.Context, sector string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, body, source, COALESCE(sector, ''), COALESCE(url, ''), published_at,
		       sentiment, sentiment_score, sentiment_confidence
		FROM news_articles
		WHERE ($1 = '' OR sector = $1)
		ORDER BY published_at DESC
		LIMIT $2
	`, sector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query news articles: %w", err)
	}
	defer rows.Close()

	var out []models.NewsArticle
	for rows.Next() {
		var a models.NewsArticle
		var sentiment string
		if err := rows.Scan(&a.ID, &a.Title, &a.Text, &a.Source, &a.Sector, &a.URL, &a.PublishedAt,
			&sentiment, &a.SentimentScore, &a.SentimentConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan news article: %w", err)
		}
		a.Sentiment = models.Sentiment(sentiment)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news articles: %w", err)
	}
	return out, nil
}
