package models

import "time"

// Sentiment is a lexicon label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsArticle is a sector news item stored in the vector index.
type NewsArticle struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Text                string    `json:"text"`
	Source              string    `json:"source"`
	Sector              string    `json:"sector,omitempty"`
	URL                 string    `json:"url,omitempty"`
	PublishedAt         time.Time `json:"published_at"`
	Sentiment           Sentiment `json:"sentiment,omitempty"`
	SentimentScore      float64   `json:"sentiment_score"`
	SentimentConfidence float64   `json:"sentiment_confidence"`
}
