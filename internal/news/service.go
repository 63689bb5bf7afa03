package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
)

const (
	defaultTopK        = 3
	maxTopK            = 20
	embedBatchSize     = 32
	embedConcurrency   = 4
	nearDuplicateRatio = 0.9
)

var pointNamespace = uuid.MustParse("8f4c2b1e-3d0a-4c7e-9b55-6a1d2e7f9c30")

// Archive keeps a durable copy of ingested articles.
type Archive interface {
	SaveArticles(ctx context.Context, articles []models.NewsArticle) error
}

// IngestStats summarizes one ingest call.
type IngestStats struct {
	Received int `json:"received"`
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
}

// Service ingests and searches news through an Embedder and a VectorStore.
type Service struct {
	embedder  Embedder
	store     VectorStore
	analyzer  *Analyzer
	dedup     Deduplicator
	archive   Archive
	dimension int
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	ready bool
}

// Option configures a Service.
type Option func(*Service)

func WithArchive(a Archive) Option { return func(s *Service) { s.archive = a } }

func WithDeduplicator(d Deduplicator) Option { return func(s *Service) { s.dedup = d } }

func NewService(embedder Embedder, store VectorStore, dimension int, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		embedder:  embedder,
		store:     store,
		analyzer:  NewAnalyzer(),
		dedup:     NewMemoryDeduplicator(7 * 24 * time.Hour),
		dimension: dimension,
		logger:    logging.Component(logger, "news"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.store.EnsureCollection(ctx, s.dimension); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Ingest deduplicates, scores sentiment, embeds and upserts articles.
func (s *Service) Ingest(ctx context.Context, articles []models.NewsArticle) (IngestStats, error) {
	stats := IngestStats{Received: len(articles)}

	valid := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		a.Text = strings.TrimSpace(a.Text)
		a.Title = strings.TrimSpace(a.Title)
		if a.Text == "" && a.Title == "" {
			stats.Skipped++
			continue
		}
		valid = append(valid, a)
	}

	unique, dedupStats := Dedupe(s.dedup, valid, nearDuplicateRatio)
	stats.Skipped += dedupStats.Duplicates
	if len(unique) == 0 {
		return stats, nil
	}

	if err := s.ensureCollection(ctx); err != nil {
		return stats, fmt.Errorf("prepare collection: %w", err)
	}

	texts := make([]string, len(unique))
	for i := range unique {
		a := &unique[i]
		if a.PublishedAt.IsZero() {
			a.PublishedAt = s.now().UTC()
		}
		hash := ContentHash(*a)
		if a.ID == "" {
			a.ID = hash[:16]
		}
		verdict := s.analyzer.Analyze(a.Title + " " + a.Text)
		a.Sentiment = verdict.Label
		a.SentimentScore = verdict.Score
		a.SentimentConfidence = verdict.Confidence
		texts[i] = strings.TrimSpace(a.Title + "\n" + a.Text)
	}

	vectors, err := s.embedBatches(ctx, texts)
	if err != nil {
		return stats, err
	}

	points := make([]Point, len(unique))
	for i, a := range unique {
		points[i] = Point{
			ID:      uuid.NewSHA1(pointNamespace, []byte(ContentHash(a))).String(),
			Vector:  vectors[i],
			Article: a,
		}
	}
	if err := s.store.Upsert(ctx, points); err != nil {
		return stats, fmt.Errorf("upsert news points: %w", err)
	}

	for _, a := range unique {
		s.dedup.Mark(a)
	}

	if s.archive != nil {
		if err := s.archive.SaveArticles(ctx, unique); err != nil {
			s.logger.Warn("failed to archive news articles", "error", err, "count", len(unique))
		}
	}

	stats.Ingested = len(unique)
	s.logger.Info("news ingested", "received", stats.Received, "ingested", stats.Ingested, "skipped", stats.Skipped)
	return stats, nil
}

func (s *Service) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch %d-%d returned %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Search embeds the query and returns the topK nearest articles.
func (s *Service) Search(ctx context.Context, query string, filter Filter, topK int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	topK = min(topK, maxTopK)

	if err := s.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("prepare collection: %w", err)
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query returned %d vectors", len(vecs))
	}

	hits, err := s.store.Search(ctx, vecs[0], filter, topK)
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}
	return hits, nil
}
