package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"MathAgent/internal/api"
	"MathAgent/internal/auth"
	"MathAgent/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API、任务处理器与指标服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	a, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L().Error("释放资源失败", slog.Any("error", err))
		}
	}()

	service, processor, err := a.wireTasks(ctx)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(cfg.Server.Auth)
	if err != nil {
		return err
	}

	serverOpts := []api.Option{
		api.WithAuth(authService),
		api.WithTaskService(service),
		api.WithCatalog(a.catalog),
		api.WithCORSOrigins(cfg.Server.CORSOrigins...),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if a.metrics != nil {
		path := cfg.Metrics.Path
		if cfg.Metrics.Address != "" {
			path = ""
		}
		serverOpts = append(serverOpts, api.WithMetrics(a.metrics, path))
	}
	server := api.NewServer(cfg.Server.Address, a.agent, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(processor.Start(gctx))
	})
	g.Go(func() error {
		return server.Start(gctx)
	})
	if a.metrics != nil && cfg.Metrics.Address != "" {
		g.Go(func() error {
			return ignoreCanceled(a.metrics.StartServer(gctx, cfg.Metrics.Address, cfg.Metrics.Path))
		})
	}

	logger.L().Info("MathAgent 已启动",
		slog.String("addr", cfg.Server.Address),
		slog.String("llm", cfg.LLM.Provider),
		slog.String("queue", cfg.TaskQueue.Driver),
		slog.String("task_store", cfg.TaskStore.Driver),
		slog.String("memory_sink", cfg.Memory.Sink),
		slog.Int("tools", a.catalog.Len()),
	)
	err = g.Wait()
	logger.L().Info("MathAgent 已停止")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
