package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/news"
	"github.com/sectorfolio/sectorfolio/internal/scoring"
)

// NewsIndex is the news service as seen by the tools.
type NewsIndex interface {
	Ingest(ctx context.Context, articles []models.NewsArticle) (news.IngestStats, error)
	Search(ctx context.Context, query string, filter news.Filter, topK int) ([]news.Hit, error)
}

// NewsTools provides the news search and ingest tools.
type NewsTools struct {
	index NewsIndex
}

func NewNewsTools(index NewsIndex) *NewsTools {
	return &NewsTools{index: index}
}

func (t *NewsTools) Specs() []ToolSpec {
	return []ToolSpec{
		{
			Name:        ToolSearchNews,
			Description: "벡터 DB에서 쿼리와 가장 유사한 섹터 뉴스를 검색합니다.",
			Params: []ParamSpec{
				{Name: "query", Type: TypeString, Required: true, Description: "검색 쿼리"},
				{Name: "sector", Type: TypeString, Description: "섹터 이름 (예: 반도체)"},
				{Name: "sentiment", Type: TypeString, Enum: []string{"positive", "negative", "neutral"}, Description: "감성 필터"},
				{Name: "top_k", Type: TypeInteger, Default: 3, Description: "반환할 결과 수"},
				{Name: "min_score", Type: TypeNumber, Description: "최소 유사도 점수 (0~1)"},
			},
			Execute: t.search,
		},
		{
			Name:        ToolIngestAndSearchNews,
			Description: "뉴스 기사를 감성 분석 후 벡터 DB에 저장하고, 이어서 쿼리로 검색합니다.",
			Params: []ParamSpec{
				{Name: "articles", Type: TypeArray, Items: TypeObject, Required: true, Description: "기사 목록 ({title, text, source, sector, url, published_at})"},
				{Name: "query", Type: TypeString, Required: true, Description: "저장 후 실행할 검색 쿼리"},
				{Name: "top_k", Type: TypeInteger, Default: 3, Description: "반환할 결과 수"},
			},
			SideEffect: Ingest,
			Execute:    t.ingestAndSearch,
		},
	}
}

func (t *NewsTools) Register(r *Registry) error {
	for _, spec := range t.Specs() {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

type newsResult struct {
	Score     float64          `json:"score"`
	Title     string           `json:"title,omitempty"`
	Text      string           `json:"text"`
	Source    string           `json:"source"`
	Sector    string           `json:"sector,omitempty"`
	Sentiment models.Sentiment `json:"sentiment,omitempty"`
	Published string           `json:"published_at,omitempty"`
}

type newsSearchResult struct {
	Query    string            `json:"query"`
	Results  []newsResult      `json:"results"`
	Ingested *news.IngestStats `json:"ingested,omitempty"`
}

func (t *NewsTools) search(ctx context.Context, args map[string]any) (any, error) {
	filter := news.Filter{}
	if s, ok := args["sector"].(string); ok {
		filter.Sector = sectorLabel(s)
	}
	if s, ok := args["sentiment"].(string); ok {
		filter.Sentiment = models.Sentiment(s)
	}
	if score, ok := args["min_score"].(float64); ok {
		filter.ScoreThreshold = score
	}
	return t.runSearch(ctx, args["query"].(string), filter, args["top_k"].(int))
}

func (t *NewsTools) runSearch(ctx context.Context, query string, filter news.Filter, topK int) (newsSearchResult, error) {
	hits, err := t.index.Search(ctx, query, filter, topK)
	if err != nil {
		return newsSearchResult{}, err
	}

	out := newsSearchResult{Query: query, Results: make([]newsResult, 0, len(hits))}
	for _, h := range hits {
		r := newsResult{
			Score:     scoring.Round(h.Score, 4),
			Title:     h.Article.Title,
			Text:      h.Article.Text,
			Source:    h.Article.Source,
			Sector:    h.Article.Sector,
			Sentiment: h.Article.Sentiment,
		}
		if !h.Article.PublishedAt.IsZero() {
			r.Published = h.Article.PublishedAt.Format("2006-01-02")
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}

func (t *NewsTools) ingestAndSearch(ctx context.Context, args map[string]any) (any, error) {
	raw := args["articles"].([]map[string]any)
	if len(raw) == 0 {
		return nil, errors.New("at least one article is required")
	}

	articles := make([]models.NewsArticle, 0, len(raw))
	for i, m := range raw {
		a, err := articleFromArgs(m)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", i, err)
		}
		articles = append(articles, a)
	}

	stats, err := t.index.Ingest(ctx, articles)
	if err != nil {
		return nil, err
	}

	out, err := t.runSearch(ctx, args["query"].(string), news.Filter{}, args["top_k"].(int))
	if err != nil {
		return nil, err
	}
	out.Ingested = &stats
	return out, nil
}

func articleFromArgs(m map[string]any) (models.NewsArticle, error) {
	str := func(k string) string {
		s, _ := m[k].(string)
		return strings.TrimSpace(s)
	}

	a := models.NewsArticle{
		Title:  str("title"),
		Text:   str("text"),
		Source: str("source"),
		Sector: sectorLabel(str("sector")),
		URL:    str("url"),
	}
	if a.Text == "" {
		return a, errors.New("text is required")
	}
	if ts := str("published_at"); ts != "" {
		parsed, err := parseDate(ts)
		if err != nil {
			return a, err
		}
		a.PublishedAt = parsed
	}
	return a, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized published_at %q", s)
}

// sectorLabel accepts a code or a label and returns the label.
func sectorLabel(s string) string {
	if code, ok := models.SectorCodeForLabel(s); ok {
		return code.Label()
	}
	return s
}
