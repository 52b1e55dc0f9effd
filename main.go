package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"auto_social_post_publisher/config"
	"auto_social_post_publisher/generator"
	"auto_social_post_publisher/pipeline"
	"auto_social_post_publisher/publisher"
	"auto_social_post_publisher/report"
	"auto_social_post_publisher/server"
)

var (
	configPath string
	verbose    bool
	dryRun     bool
	addr       string

	logger *zap.Logger
)

// errRunFailed ends the process with exit code 1 after the failure was logged.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "Generate a short post with an LLM and publish it to X",
	Long: `autopost asks a text-generation model for one short post, extracts and
normalizes the text (length limit, required link) and publishes it to X.

It is meant to be invoked once per scheduled run. Without a subcommand it
behaves like "autopost run".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runOnce,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and publish one post",
	RunE:  runOnce,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Generate and normalize one post without publishing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun = true
		return runOnce(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server that triggers runs on demand",
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the post instead of publishing it")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the post instead of publishing it")
	serveCmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config server_addr)")
	rootCmd.AddCommand(runCmd, previewCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(!dryRun); err != nil {
		return err
	}
	p, closeFn, err := buildPipeline(ctx, cfg, dryRun)
	if err != nil {
		return err
	}
	defer closeFn()

	res := p.Run(ctx)
	switch {
	case res.Status == pipeline.StatusPreview:
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	case res.Status == pipeline.StatusPublished:
		fmt.Fprintln(cmd.OutOrStdout(), res.PostID)
	case res.Fatal():
		return errRunFailed
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	p, closeFn, err := buildPipeline(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeFn()

	srv, err := server.New(p, logger)
	if err != nil {
		return err
	}
	listen := cfg.ServerAddr
	if addr != "" {
		listen = addr
	}
	if listen == "" {
		listen = ":8080"
	}

	hs := &http.Server{Addr: listen, Handler: srv.Routes()}
	go func() {
		<-ctx.Done()
		_ = hs.Shutdown(context.Background())
	}()
	logger.Info("starting web server", zap.String("addr", listen))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildPipeline wires the generator, publisher and reporter from cfg. The
// publisher is left out when dryRun is set or X credentials are missing.
func buildPipeline(ctx context.Context, cfg config.Config, dryRun bool) (*pipeline.Pipeline, func(), error) {
	closeFn := func() {}

	gen, err := generator.New(ctx, cfg.GeneratorSettings())
	if err != nil {
		return nil, closeFn, err
	}

	var pub pipeline.Publisher
	if !dryRun && cfg.Validate(true) == nil {
		xc, err := cfg.PublisherConfig()
		if err != nil {
			return nil, closeFn, err
		}
		x, err := publisher.New(xc, logger)
		if err != nil {
			return nil, closeFn, err
		}
		pub = x
	}

	var rep pipeline.Reporter = report.Nop{}
	if cfg.Report.AMQPURL != "" {
		a, err := report.NewAMQP(cfg.Report.AMQPURL, cfg.Report.Exchange, logger)
		if err != nil {
			// Outcome reporting is best effort; the post still goes out.
			logger.Warn("amqp reporter unavailable", zap.Error(err))
		} else {
			rep = a
			closeFn = func() { _ = a.Close() }
		}
	}

	pc, err := cfg.PipelineConfig(dryRun)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	p, err := pipeline.New(pc, gen, pub, rep, logger)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return p, closeFn, nil
}
