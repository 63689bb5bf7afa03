package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sectorfolio/sectorfolio/internal/models"
)

// QdrantStore talks to the Qdrant REST API.
type QdrantStore struct {
	client     *resty.Client
	collection string
}

func NewQdrantStore(baseURL, apiKey, collection string, timeout time.Duration) *QdrantStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("api-key", apiKey)
	}
	return &QdrantStore{client: client, collection: collection}
}

var payloadIndexes = []struct {
	field  string
	schema string
}{
	{"sector", "keyword"},
	{"sentiment", "keyword"},
	{"sentiment_confidence", "float"},
	{"published_at", "datetime"},
}

// EnsureCollection creates the collection and its payload indexes when
// the collection does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	resp, err := s.client.R().SetContext(ctx).Get("/collections/" + s.collection)
	if err != nil {
		return fmt.Errorf("qdrant get collection: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("qdrant get collection returned %d: %s", resp.StatusCode(), resp.String())
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	resp, err = s.client.R().SetContext(ctx).SetBody(body).Put("/collections/" + s.collection)
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant create collection returned %d: %s", resp.StatusCode(), resp.String())
	}

	for _, idx := range payloadIndexes {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("wait", "true").
			SetBody(map[string]any{"field_name": idx.field, "field_schema": idx.schema}).
			Put("/collections/" + s.collection + "/index")
		if err != nil {
			return fmt.Errorf("qdrant create index %s: %w", idx.field, err)
		}
		if resp.IsError() {
			return fmt.Errorf("qdrant create index %s returned %d: %s", idx.field, resp.StatusCode(), resp.String())
		}
	}
	return nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, len(points))}
	for i, p := range points {
		body.Points[i] = qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: toPayload(p.Article)}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(body).
		Put("/collections/" + s.collection + "/points")
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("qdrant upsert returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := qdrantFilter(filter); f != nil {
		body["filter"] = f
	}
	if filter.ScoreThreshold > 0 {
		body["score_threshold"] = filter.ScoreThreshold
	}

	var result qdrantSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/collections/" + s.collection + "/points/search")
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("qdrant search returned %d: %s", resp.StatusCode(), resp.String())
	}

	hits := make([]Hit, 0, len(result.Result))
	for _, r := range result.Result {
		a := fromPayload(r.Payload)
		if a.ID == "" {
			a.ID = fmt.Sprint(r.ID)
		}
		hits = append(hits, Hit{Score: r.Score, Article: a})
	}
	return hits, nil
}

func qdrantFilter(f Filter) map[string]any {
	var must []map[string]any
	if f.Sector != "" {
		must = append(must, map[string]any{"key": "sector", "match": map[string]any{"value": f.Sector}})
	}
	if f.Sentiment != "" {
		must = append(must, map[string]any{"key": "sentiment", "match": map[string]any{"value": string(f.Sentiment)}})
	}
	if f.MinConfidence > 0 {
		must = append(must, map[string]any{"key": "sentiment_confidence", "range": map[string]any{"gte": f.MinConfidence}})
	}
	if !f.Since.IsZero() {
		must = append(must, map[string]any{"key": "published_at", "range": map[string]any{"gte": f.Since.UTC().Format(time.RFC3339)}})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func toPayload(a models.NewsArticle) map[string]any {
	p := map[string]any{
		"article_id":           a.ID,
		"title":                a.Title,
		"text":                 a.Text,
		"source":               a.Source,
		"sector":               a.Sector,
		"url":                  a.URL,
		"sentiment":            string(a.Sentiment),
		"sentiment_score":      a.SentimentScore,
		"sentiment_confidence": a.SentimentConfidence,
	}
	if !a.PublishedAt.IsZero() {
		p["published_at"] = a.PublishedAt.UTC().Format(time.RFC3339)
	}
	return p
}

func fromPayload(p map[string]any) models.NewsArticle {
	str := func(k string) string {
		s, _ := p[k].(string)
		return s
	}
	num := func(k string) float64 {
		f, _ := p[k].(float64)
		return f
	}

	a := models.NewsArticle{
		ID:                  str("article_id"),
		Title:               str("title"),
		Text:                str("text"),
		Source:              str("source"),
		Sector:              str("sector"),
		URL:                 str("url"),
		Sentiment:           models.Sentiment(str("sentiment")),
		SentimentScore:      num("sentiment_score"),
		SentimentConfidence: num("sentiment_confidence"),
	}
	if ts := str("published_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			a.PublishedAt = t
		}
	}
	return a
}
