package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cognicore/ontofix/pkg/ontofix"
	"github.com/cognicore/ontofix/pkg/ontofix/config"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/metrics"
	"github.com/cognicore/ontofix/pkg/ontofix/store"
	"github.com/cognicore/ontofix/pkg/ontofix/store/sqlite"
)

// rootFlags override values read from the config file.
type rootFlags struct {
	configPath  string
	ontology    string
	profile     []string
	alignment   string
	storePath   string
	logLevel    string
	method      string
	workers     int
	greedy      bool
	rankers     []string
	weights     []string
	metricsAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "ontofix",
		Short: "Find and repair unsatisfiable entities in an ontology",
		Long: `ontofix explains every unsatisfiable class or property of an ontology by its
minimal conflicts (MUPS) and diagnoses, then ranks the suspected axioms and
proposes the cheapest set of axioms whose removal repairs them all.

Axiom files hold one axiom per line, e.g.
  subclass(Margherita, Pizza)
  disjoint(Pizza, Topping)
  domain(hasTopping, Pizza)

Examples:
  ontofix debug -o pizza.ax                     # bugs and repairs
  ontofix debug -o pizza.ax -p upper.ax -r swoop
  ontofix bugs -o pizza.ax --method df-hitset   # bugs only
  ontofix mups -o pizza.ax -e Margherita        # one entity`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&flags.ontology, "ontology", "o", "", "ontology axiom file")
	pf.StringSliceVarP(&flags.profile, "profile", "p", nil, "trusted profile axiom files")
	pf.StringVar(&flags.alignment, "alignment", "", "alignment axiom file added to every profile voter")
	pf.StringVar(&flags.storePath, "store", "", "sqlite file for cached bug lists and reports")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.method, "method", "", "df-hitset, parallel-df-hitset, hitset or parallel-hitset")
	pf.IntVarP(&flags.workers, "workers", "w", -1, "worker goroutines (0 = GOMAXPROCS, 1 = sequential)")
	pf.BoolVar(&flags.greedy, "greedy", false, "use the greedy error search")
	pf.StringSliceVarP(&flags.rankers, "ranker", "r", nil, "axiom rankers")
	pf.StringSliceVar(&flags.weights, "weight", nil, "ranker=weight parts of one combined ranker")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(
		newDebugCmd(flags),
		newBugsCmd(flags),
		newMUPSCmd(flags),
	)
	return root
}

// loadConfig merges the config file and the command line.
func (f *rootFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		data, err := os.ReadFile(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		if cfg, err = config.Decode(data); err != nil {
			return config.Config{}, err
		}
	}
	if f.ontology != "" {
		cfg.Paths.Ontology = f.ontology
	}
	if len(f.profile) > 0 {
		cfg.Paths.Profile = f.profile
	}
	if f.alignment != "" {
		cfg.Paths.Alignment = f.alignment
	}
	if f.storePath != "" {
		cfg.Store.Path = f.storePath
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.method != "" {
		cfg.BugFinder.Method = f.method
	}
	if f.workers >= 0 {
		cfg.BugFinder.Workers = f.workers
	}
	if cmd.Flags().Changed("greedy") {
		cfg.ErrorSearch.Greedy = f.greedy
	}
	if len(f.rankers) > 0 {
		cfg.ErrorSearch.Rankers = f.rankers
	}
	if len(f.weights) > 0 {
		parts, err := parseWeights(f.weights)
		if err != nil {
			return config.Config{}, err
		}
		cfg.ErrorSearch.Weighted = parts
	}
	return cfg, cfg.Validate()
}

func parseWeights(flags []string) ([]config.WeightedPart, error) {
	parts := make([]config.WeightedPart, 0, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("%w: weight %q is not ranker=weight", internalerr.ErrInvalidConfig, f)
		}
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight %q: %v", internalerr.ErrInvalidConfig, f, err)
		}
		parts = append(parts, config.WeightedPart{Ranker: name, Weight: w})
	}
	return parts, nil
}

// session is everything a command needs to run one debugger.
type session struct {
	cfg      config.Config
	name     string
	comp     *config.Components
	debugger *ontofix.Debugger
	logger   *slog.Logger
	shutdown func()
}

func (f *rootFlags) open(cmd *cobra.Command, cfg config.Config) (*session, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	comp, err := config.NewLoader(cfg).Load()
	if err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.Store.Path != "" {
		if st, err = sqlite.OpenSQLite(cmd.Context(), cfg.Store.Path); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	d, err := ontofix.New(ontofix.Options{
		Config:    cfg,
		Store:     st,
		Profile:   comp.Profile,
		Alignment: comp.Alignment,
		Metrics:   metrics.NewRecorder(reg),
		Logger:    logger,
	})
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		name:     strings.TrimSuffix(filepath.Base(cfg.Paths.Ontology), filepath.Ext(cfg.Paths.Ontology)),
		comp:     comp,
		debugger: d,
		logger:   logger,
		shutdown: func() {},
	}
	if f.metricsAddr != "" {
		s.shutdown = serveMetrics(f.metricsAddr, reg, logger)
	}
	return s, nil
}

func (s *session) Close() error {
	s.shutdown()
	return s.debugger.Close()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
