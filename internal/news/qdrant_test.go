package news

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

func TestQdrantStoreEnsureCollectionCreatesIndexes(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()

		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":true,"status":"ok"}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "secret", "sector_news_rag", time.Second)
	if err := store.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatalf("EnsureCollection returned error: %v", err)
	}

	if len(calls) != 2+len(payloadIndexes) {
		t.Fatalf("expected %d calls, got %v", 2+len(payloadIndexes), calls)
	}
	if calls[1] != "PUT /collections/sector_news_rag" {
		t.Fatalf("expected collection creation, got %q", calls[1])
	}
}

func TestQdrantStoreSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/news/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if limit, _ := body["limit"].(float64); limit != 2 {
			t.Errorf("expected limit 2, got %v", body["limit"])
		}
		filter, _ := body["filter"].(map[string]any)
		if must, _ := filter["must"].([]any); len(must) != 2 {
			t.Errorf("expected two filter conditions, got %v", body["filter"])
		}
		if threshold, _ := body["score_threshold"].(float64); threshold != 0.5 {
			t.Errorf("expected score_threshold 0.5, got %v", body["score_threshold"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":[{"id":"3f2a","score":0.91,"payload":{"article_id":"n1","text":"원전 수주","source":"연합","sector":"원자력","sentiment":"positive","sentiment_confidence":0.4,"published_at":"2025-03-01T00:00:00Z"}}],"status":"ok"}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "news", time.Second)
	hits, err := store.Search(context.Background(), []float32{0.1, 0.2}, Filter{Sector: "원자력", Sentiment: models.SentimentPositive, ScoreThreshold: 0.5}, 2)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	got := hits[0]
	if got.Score != 0.91 || got.Article.ID != "n1" || got.Article.Sentiment != models.SentimentPositive {
		t.Fatalf("unexpected hit %+v", got)
	}
	if got.Article.PublishedAt.Year() != 2025 {
		t.Fatalf("expected published_at to parse, got %v", got.Article.PublishedAt)
	}
}

func TestQdrantStoreSearchOmitsZeroThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if _, ok := body["score_threshold"]; ok {
			t.Errorf("expected no score_threshold, got %v", body["score_threshold"])
		}
		if _, ok := body["filter"]; ok {
			t.Errorf("expected no filter, got %v", body["filter"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":[],"status":"ok"}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "news", time.Second)
	hits, err := store.Search(context.Background(), []float32{0.1}, Filter{}, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestQdrantStoreUpsertError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"wrong vector size"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "news", time.Second)
	err := store.Upsert(context.Background(), []Point{{ID: "x", Vector: []float32{1}}})
	if err == nil {
		t.Fatal("expected error from a 400 response")
	}
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL+"/", "nomic-embed-text", time.Second)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 0.4 {
		t.Fatalf("unexpected vectors %v", vecs)
	}
}
