// Package reference holds the company registry snapshot shared by tools,
// prompts and validation.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// Loader reads the active companies.
type Loader interface {
	ListActive(ctx context.Context) ([]models.Company, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]models.Company, error)

func (f LoaderFunc) ListActive(ctx context.Context) ([]models.Company, error) { return f(ctx) }

// Snapshot is an immutable view of the registry. Do not modify the
// returned slices.
type Snapshot struct {
	Companies []models.Company
	Sectors   []models.SectorCode
	LoadedAt  time.Time
	Version   int64

	byTicker map[string]int
	bySector map[models.SectorCode][]int
}

// NewSnapshot indexes companies. Inactive rows and duplicate tickers are
// skipped.
func NewSnapshot(companies []models.Company, version int64, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		LoadedAt: loadedAt,
		Version:  version,
		byTicker: make(map[string]int, len(companies)),
		bySector: make(map[models.SectorCode][]int),
	}
	for _, c := range companies {
		c.Ticker = models.NormalizeTicker(c.Ticker)
		if !c.IsActive || c.Ticker == "" {
			continue
		}
		if _, dup := s.byTicker[c.Ticker]; dup {
			continue
		}
		idx := len(s.Companies)
		s.Companies = append(s.Companies, c)
		s.byTicker[c.Ticker] = idx
		s.bySector[c.SectorCode] = append(s.bySector[c.SectorCode], idx)
	}
	for _, code := range models.AllSectors() {
		if len(s.bySector[code]) > 0 {
			s.Sectors = append(s.Sectors, code)
		}
	}
	return s
}

func (s *Snapshot) CompanyByTicker(ticker string) (models.Company, bool) {
	idx, ok := s.byTicker[models.NormalizeTicker(ticker)]
	if !ok {
		return models.Company{}, false
	}
	return s.Companies[idx], true
}

func (s *Snapshot) CompaniesBySector(code models.SectorCode) []models.Company {
	idxs := s.bySector[code]
	out := make([]models.Company, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.Companies[i])
	}
	return out
}

// Universe resolves sector labels and tickers into the distinct companies
// they name, sector members first. Unknown names are returned separately.
func (s *Snapshot) Universe(sectors, tickers []string) ([]models.Company, []string) {
	var out []models.Company
	var unknown []string
	seen := map[string]bool{}
	add := func(c models.Company) {
		if !seen[c.Ticker] {
			seen[c.Ticker] = true
			out = append(out, c)
		}
	}

	for _, label := range sectors {
		code, ok := models.SectorCodeForLabel(label)
		if !ok {
			unknown = append(unknown, label)
			continue
		}
		for _, c := range s.CompaniesBySector(code) {
			add(c)
		}
	}
	for _, t := range tickers {
		c, ok := s.CompanyByTicker(t)
		if !ok {
			unknown = append(unknown, t)
			continue
		}
		add(c)
	}
	return out, unknown
}

var ErrNotLoaded = errors.New("reference data not loaded")

// Store publishes the current snapshot. Reload swaps it atomically;
// readers never block.
type Store struct {
	loader  Loader
	logger  *slog.Logger
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	version atomic.Int64
	mu      sync.Mutex
}

func NewStore(loader Loader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{loader: loader, logger: logger, now: time.Now}
}

// Reload loads the registry and installs it as a new version. On error
// the previous snapshot stays current.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	companies, err := s.loader.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}

	snap := NewSnapshot(companies, s.version.Add(1), s.now())
	s.current.Store(snap)
	s.logger.Info("reference data loaded",
		"version", snap.Version,
		"companies", len(snap.Companies),
		"sectors", len(snap.Sectors),
	)
	return snap, nil
}

// Current returns the installed snapshot, or an empty one before the
// first successful load.
func (s *Store) Current() *Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return NewSnapshot(nil, 0, time.Time{})
}

func (s *Store) Loaded() bool { return s.current.Load() != nil }

// Age is the time since the current snapshot was loaded.
func (s *Store) Age() time.Duration {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return s.now().Sub(snap.LoadedAt)
}

func (s *Store) CompanyByTicker(ticker string) (models.Company, bool) {
	return s.Current().CompanyByTicker(ticker)
}

func (s *Store) CompaniesBySector(code models.SectorCode) []models.Company {
	return s.Current().CompaniesBySector(code)
}

// Tickers lists the tickers of the current snapshot, sorted.
func (s *Store) Tickers() []string {
	snap := s.Current()
	out := make([]string, 0, len(snap.Companies))
	for _, c := range snap.Companies {
		out = append(out, c.Ticker)
	}
	slices.Sort(out)
	return out
}
