package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/config"
	"github.com/xxxsen/pdfqa/internal/handler"
	"github.com/xxxsen/pdfqa/internal/job"
	"github.com/xxxsen/pdfqa/internal/middleware"
	"github.com/xxxsen/pdfqa/internal/schedule"
	"github.com/xxxsen/pdfqa/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "pdfqa",
		Short:        "pdf question answering service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(context.Background(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "ingest local pdf files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, file := range args {
				n, err := ingestFile(cmd.Context(), a.svc, file)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", file, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", file, n)
			}
			return nil
		},
	}

	var k int
	askCmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "answer a question from ingested documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ans, err := a.svc.Answer(cmd.Context(), args[0], k)
			if ans != nil {
				sims := make([]handler.Similarity, 0, len(ans.Matches))
				for _, m := range ans.Matches {
					sims = append(sims, handler.Similarity{Score: m.Score, Text: service.Snippet(m.Text, a.cfg.Retrieval.SnippetChars)})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode([]interface{}{ans.Text, sims}); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	askCmd.Flags().IntVar(&k, "k", 0, "number of passages to retrieve")

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func initLogger(cfg *config.Config) {
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
}

func ingestFile(ctx context.Context, svc *service.QAService, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	chunks, err := svc.Ingest(ctx, service.Document{Name: filepath.Base(path), Reader: f, Size: st.Size()})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.String("addr", addr),
		zap.Int64("max_upload_bytes", cfg.Ingest.MaxUploadBytes),
	)

	qaHandler := handler.NewQAHandler(a.svc, handler.QAHandlerConfig{
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		PreviewChunks:  cfg.Retrieval.PreviewChunks,
		SnippetChars:   cfg.Retrieval.SnippetChars,
	})
	deps := handler.RouterDeps{
		QA:        qaHandler,
		RateLimit: middleware.RateLimit(time.Duration(cfg.RateLimitMS) * time.Millisecond),
	}

	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StatsCron != "" {
		scheduler := schedule.NewCronScheduler(time.Minute)
		if err := scheduler.AddJob(job.NewStoreStatsJob(a.svc, a.cache), cfg.StatsCron); err != nil {
			return fmt.Errorf("schedule stats job: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		logutil.GetLogger(ctx).Info("scheduler started",
			zap.Strings("jobs", scheduler.Jobs()),
			zap.String("spec", cfg.StatsCron),
		)
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
