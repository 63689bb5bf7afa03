package news

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
	punctuationRe = regexp.MustCompile(`[.,!?;:"'“”‘’·…()\[\]]+`)
	tokenRe       = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// Deduplicator remembers which articles were already ingested.
type Deduplicator interface {
	IsNew(a models.NewsArticle) bool
	Mark(a models.NewsArticle)
	Cleanup(olderThan time.Time)
}

// MemoryDeduplicator keeps content fingerprints for a sliding window.
type MemoryDeduplicator struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemoryDeduplicator(window time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (d *MemoryDeduplicator) IsNew(a models.NewsArticle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[ContentHash(a)]
	if !ok {
		return true
	}
	return d.window > 0 && d.now().Sub(at) > d.window
}

func (d *MemoryDeduplicator) Mark(a models.NewsArticle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[ContentHash(a)] = d.now()
}

func (d *MemoryDeduplicator) Cleanup(olderThan time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for hash, at := range d.seen {
		if at.Before(olderThan) {
			delete(d.seen, hash)
		}
	}
}

func (d *MemoryDeduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// ContentHash fingerprints an article by its normalized title and body.
// The URL is left out so syndicated copies collapse.
func ContentHash(a models.NewsArticle) string {
	sum := sha256.Sum256([]byte(NormalizeContent(a.Title) + "|" + NormalizeContent(a.Text)))
	return hex.EncodeToString(sum[:])
}

// NormalizeContent lower-cases, replaces links and strips punctuation and
// redundant whitespace.
func NormalizeContent(content string) string {
	normalized := strings.ToLower(content)
	normalized = urlRe.ReplaceAllString(normalized, "[URL]")
	normalized = punctuationRe.ReplaceAllString(normalized, "")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// Similarity is the Jaccard coefficient of the normalized token sets.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(ta)+len(tb)-intersection)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(NormalizeContent(s), -1) {
		set[tok] = true
	}
	return set
}

// DedupStats counts one filtering pass.
type DedupStats struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Unique     int `json:"unique"`
}

// Dedupe drops articles seen before and duplicates within the batch.
// Survivors are not marked; callers Mark them once they are stored.
func Dedupe(d Deduplicator, articles []models.NewsArticle, nearDuplicate float64) ([]models.NewsArticle, DedupStats) {
	var stats DedupStats
	unique := make([]models.NewsArticle, 0, len(articles))
	batch := make(map[string]bool, len(articles))

	for _, a := range articles {
		stats.Processed++
		hash := ContentHash(a)
		if batch[hash] || !d.IsNew(a) || nearDuplicateOf(unique, a, nearDuplicate) {
			stats.Duplicates++
			continue
		}
		batch[hash] = true
		unique = append(unique, a)
		stats.Unique++
	}
	return unique, stats
}

func nearDuplicateOf(kept []models.NewsArticle, a models.NewsArticle, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	for _, k := range kept {
		if a.URL != "" && a.URL == k.URL {
			return true
		}
		if Similarity(k.Title+" "+k.Text, a.Title+" "+a.Text) >= threshold {
			return true
		}
	}
	return false
}
