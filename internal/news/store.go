package news

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// Point is an article with its embedding.
type Point struct {
	ID      string
	Vector  []float32
	Article models.NewsArticle
}

// Filter narrows a search. Zero values match everything.
// ScoreThreshold drops hits whose similarity is below it.
type Filter struct {
	Sector         string           `json:"sector,omitempty"`
	Sentiment      models.Sentiment `json:"sentiment,omitempty"`
	MinConfidence  float64          `json:"min_confidence,omitempty"`
	Since          time.Time        `json:"since,omitempty"`
	ScoreThreshold float64          `json:"score_threshold,omitempty"`
}

func (f Filter) matches(a models.NewsArticle) bool {
	if f.Sector != "" && a.Sector != f.Sector {
		return false
	}
	if f.Sentiment != "" && a.Sentiment != f.Sentiment {
		return false
	}
	if f.MinConfidence > 0 && a.SentimentConfidence < f.MinConfidence {
		return false
	}
	if !f.Since.IsZero() && a.PublishedAt.Before(f.Since) {
		return false
	}
	return true
}

// Hit is a scored search result.
type Hit struct {
	Score   float64            `json:"score"`
	Article models.NewsArticle `json:"article"`
}

// VectorStore persists points and answers nearest-neighbour queries.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error)
}

// MemoryStore is an in-process VectorStore using cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func (s *MemoryStore) EnsureCollection(context.Context, int) error { return nil }

func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.points))
	for _, p := range s.points {
		if !filter.matches(p.Article) {
			continue
		}
		score := cosine(vector, p.Vector)
		if filter.ScoreThreshold > 0 && score < filter.ScoreThreshold {
			continue
		}
		hits = append(hits, Hit{Score: score, Article: p.Article})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Article.ID < hits[j].Article.ID
		}
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
