package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyforge/api"
	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/pipeline"
	"storyforge/shutdown"
	"storyforge/story"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:   "storyforge",
		Short: "Generate slide images from story plans",
		Long: `storyforge turns an approved story plan into one image per slide.
Slides are generated in parallel against the selected provider tier, retried
when rate limited, optionally overlaid and watermarked, and written as PNG
files in slide order.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	root.AddCommand(newGenerateCmd(e), newServeCmd(e), newHistoryCmd(e))
	return root
}

type generateOptions struct {
	planPath        string
	provider        string
	brandID         string
	consistencyPath string
	outDir          string
	concurrency     int
	textOverlay     bool
}

func newGenerateCmd(e env) *cobra.Command {
	var o generateOptions
	cmd := &cobra.Command{
		Use:   "generate --plan FILE",
		Short: "Generate every slide of a plan",
		Long: `Generate one image per slide of a plan file (JSON or YAML).

Failed slides are reported but do not fail the command; it exits non-zero
only when the batch cannot start (invalid plan, unknown or unconfigured
provider, unwritable output directory).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, e, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.planPath, "plan", "", "story plan file (JSON or YAML)")
	f.StringVar(&o.provider, "provider", string(imagegen.SelectorFast), "provider tier: fast, high-fidelity or third-party")
	f.StringVar(&o.brandID, "brand", "", "brand id for the watermark (default: first configured brand)")
	f.StringVar(&o.consistencyPath, "consistency", "", "consistency file with characters, objects and environment")
	f.StringVar(&o.outDir, "out", "", "output directory (default: OUTPUT_DIR)")
	f.IntVar(&o.concurrency, "concurrency", 0, "slides generated in parallel (default: MAX_PARALLEL_WORKERS)")
	f.BoolVar(&o.textOverlay, "text-overlay", false, "draw title and key fact on each slide (default: TEXT_OVERLAY_ENABLED)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func runGenerate(cmd *cobra.Command, e env, o generateOptions) error {
	plan, err := story.LoadPlan(o.planPath)
	if err != nil {
		return err
	}
	var consistency *story.Consistency
	if o.consistencyPath != "" {
		if consistency, err = story.LoadConsistency(o.consistencyPath); err != nil {
			return err
		}
	}

	a, err := openApp(e, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := pipeline.GenerateRequest{
		Plan:           plan,
		OutputDir:      o.outDir,
		Provider:       imagegen.Selector(o.provider),
		BrandID:        o.brandID,
		Consistency:    consistency,
		MaxConcurrency: o.concurrency,
	}
	if cmd.Flags().Changed("text-overlay") {
		overlay := o.textOverlay
		req.TextOverlay = &overlay
	}

	report, err := a.generator.GenerateFromPlan(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	if m, ok := a.metrics.Provider(string(report.Provider)); ok {
		printProviderMetrics(out, string(report.Provider), m)
	}
	return nil
}

func newServeCmd(e env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Long: `Serve POST /generate_from_plan and the history, metrics and health
endpoints. SIGINT or SIGTERM drains running batches before exit; a second
signal exits immediately. SIGHUP reloads provider configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(e, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: LISTEN_ADDR or :8000)")
	return cmd
}

func runServe(e env, addr string) error {
	a, err := openApp(e, appOptions{asyncHistory: true})
	if err != nil {
		return err
	}
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	manager := shutdown.NewManagerWithConfig(a.logger, shutdown.Config{
		OnReload: func() { a.reloadRegistry(e) },
	})

	deps := api.Dependencies{
		Generator:   a.generator,
		Metrics:     a.metrics,
		Gate:        manager,
		Logger:      a.logger,
		BaseContext: manager.Context(),
	}
	if a.repo != nil {
		deps.History = a.repo
	}
	server, err := api.NewServer(api.ServerConfig{Addr: addr, OutputDir: a.cfg.OutputDir}, deps)
	if err != nil {
		a.close()
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	manager.Register("http-server", shutdown.StageServer, shutdown.HTTPServer(server.HTTPServer()))
	if a.writer != nil {
		manager.Register("history-writer", shutdown.StageWorkers, a.writer.Shutdown)
	}
	if a.database != nil {
		manager.Register("database", shutdown.StageStorage, shutdown.Closer(a.database))
		if days := a.cfg.HistoryRetentionDays; days > 0 {
			log := a.logger.Named("history")
			a.database.StartPruneScheduler(manager.Context(), db.PruneSchedulerConfig{
				Retention: time.Duration(days) * 24 * time.Hour,
				Interval:  24 * time.Hour,
				OnPrune: func(res db.PruneResult, err error) {
					if err != nil {
						log.Error("history prune failed", zap.Error(err))
						return
					}
					log.Info("history pruned",
						zap.Int64("batches", res.BatchesDeleted),
						zap.Int64("slides", res.SlidesDeleted))
				},
			})
		}
	}
	manager.Register("logger", shutdown.StageLogger, shutdown.SyncLogger(a.logger))

	manager.Start()
	go func() {
		if err := server.Serve(ln); err != nil {
			a.logger.Error("http server stopped", zap.Error(err))
			manager.Trigger("http server failed")
		}
	}()
	if e.serveReady != nil {
		e.serveReady(ln.Addr().String(), manager.Trigger)
	}

	<-manager.Context().Done()
	return manager.Shutdown()
}

func newHistoryCmd(e env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [BATCH_ID]",
		Short: "List recent batches, or show one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, e, limit, args)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of batches to list")
	return cmd
}

func runHistory(cmd *cobra.Command, e env, limit int, args []string) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled {
		return errors.New("history is disabled (HISTORY_ENABLED=false)")
	}
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()
	repo := db.NewRepository(database, nil)

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		batch, err := repo.QueryBatch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printBatch(out, batch)
		return nil
	}

	if limit < 1 {
		limit = 10
	}
	batches, err := repo.QueryRecentBatches(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printHistory(out, batches)
	return nil
}
