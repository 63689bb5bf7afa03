package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sectorfolio/sectorfolio/internal/app"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/news"
)

type globals struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "sectorctl",
		Short:         "Operate the sector portfolio advisor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Logging.Level = slog.LevelDebug
			}
			logger, err := logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.logger = logger
			return nil
		},
	}
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		newAnalyzeCmd(g),
		newIngestNewsCmd(g),
		newSearchNewsCmd(g),
		newReloadCmd(g),
		newMigrateCmd(g),
	)
	return root
}

type analyzeFlags struct {
	sectors []string
	tickers []string
	budget  int64
	risk    string
	period  string
	prompt  string
	model   string
	mode    string
}

func newAnalyzeCmd(g *globals) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build a portfolio for the given sectors and tickers",
		Example: `  sectorctl analyze --sector 반도체 --budget 5000000 --risk 중립
  sectorctl analyze --ticker 005930 --ticker 012450 --mode multi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := f.request()
			a, err := app.New(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Advisor.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringSliceVar(&f.sectors, "sector", nil, "Sector label or code (repeatable)")
	cmd.Flags().StringSliceVar(&f.tickers, "ticker", nil, "Ticker such as 005930 or 005930.KS (repeatable)")
	cmd.Flags().Int64Var(&f.budget, "budget", 10_000_000, "Budget in KRW")
	cmd.Flags().StringVar(&f.risk, "risk", string(models.RiskNeutral), "Risk profile: 안정, 중립, 공격")
	cmd.Flags().StringVar(&f.period, "period", string(models.PeriodMedium), "Investment period: 단기, 중기, 장기")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "Additional instructions for the model")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (default from LLM_MODEL)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "single or multi (default from AGENT_MODE)")
	return cmd
}

func (f analyzeFlags) request() models.PortfolioRequest {
	tickers := make([]string, 0, len(f.tickers))
	for _, t := range f.tickers {
		tickers = append(tickers, models.NormalizeTicker(t))
	}
	return models.PortfolioRequest{
		Budget:            f.budget,
		InvestmentTargets: models.InvestmentTargets{Sectors: f.sectors, Tickers: tickers},
		RiskProfile:       models.RiskProfile(f.risk),
		InvestmentPeriod:  models.InvestmentPeriod(f.period),
		AdditionalPrompt:  f.prompt,
		Model:             f.model,
		Mode:              models.AnalysisMode(f.mode),
	}
}

func newIngestNewsCmd(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest-news",
		Short: "Score, embed and index news articles from a JSON file",
		Long: `Reads a JSON array of articles, or an object with an "articles" array,
from --file (or stdin when --file is "-").`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "-" {
				fh, err := os.Open(file)
				if err != nil {
					return err
				}
				defer fh.Close()
				in = fh
			}
			articles, err := readArticles(in)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.News == nil {
				return app.ErrNoNews
			}

			stats, err := a.News.Ingest(cmd.Context(), articles)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Articles file")
	return cmd
}

// readArticles accepts either a bare array or {"articles": [...]}.
func readArticles(r io.Reader) ([]models.NewsArticle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("no articles given")
	}

	var articles []models.NewsArticle
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &articles)
	} else {
		var wrapped struct {
			Articles []models.NewsArticle `json:"articles"`
		}
		err = json.Unmarshal(raw, &wrapped)
		articles = wrapped.Articles
	}
	if err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, errors.New("no articles given")
	}
	return articles, nil
}

func newSearchNewsCmd(g *globals) *cobra.Command {
	var (
		sector   string
		topK     int
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "search-news QUERY",
		Short: "Search the news index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.News == nil {
				return app.ErrNoNews
			}

			hits, err := a.News.Search(cmd.Context(), strings.Join(args, " "), news.Filter{Sector: sector, ScoreThreshold: minScore}, topK)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), hits)
		},
	}
	cmd.Flags().StringVar(&sector, "sector", "", "Restrict to one sector label")
	cmd.Flags().IntVar(&topK, "top", 5, "Number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum similarity score")
	return cmd
}

func newReloadCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Load the company registry and print per-sector counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.Reference.Current()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "SECTOR\tLABEL\tCOMPANIES\n")
			for _, code := range models.AllSectors() {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", code, code.Label(), len(snap.CompaniesBySector(code)))
			}
			fmt.Fprintf(tw, "total\t\t%d\n", len(snap.Companies))
			return tw.Flush()
		},
	}
}

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Migrate(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
