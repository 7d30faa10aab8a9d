package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lgc202/llm-gateway/internal/api"
	"github.com/lgc202/llm-gateway/internal/knowledge"
	"github.com/lgc202/llm-gateway/internal/settings"
	"github.com/lgc202/llm-gateway/version"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务，配置文件变化时热加载 provider 表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖 server.addr")
	return cmd
}

func (o *rootOptions) serve(ctx context.Context, addr string) error {
	c, logger, err := o.load(true)
	if err != nil {
		return err
	}
	s := c.Get()

	gw, err := s.NewGateway(logger)
	if err != nil {
		return err
	}
	kb := newKnowledgeClient(s, logger)

	if addr == "" {
		addr = s.Server.Addr
	}
	srv := api.New(api.Config{
		Addr:         addr,
		AllowOrigins: s.Server.AllowOrigins,
		Version:      version.Get().String(),
		TempDataset:  s.Knowledge.TempDataset,
		Logger:       logger,
	}, gw, s.DefaultProvider, kb)

	c.OnChange(func(old, new settings.Settings) {
		if !settings.ProvidersChanged(old, new) {
			return
		}
		if err := new.Validate(); err != nil {
			logger.Error().Err(err).Msg("reloaded config rejected, keeping previous providers")
			return
		}
		next, err := new.NewGateway(logger)
		if err != nil {
			logger.Error().Err(err).Msg("rebuild gateway failed, keeping previous providers")
			return
		}
		srv.SetGateway(next, new.DefaultProvider)
		logger.Info().Strs("providers", next.Registry().IDs()).Str("default", new.DefaultProvider).Msg("providers reloaded")
	})

	logger.Info().
		Str("version", version.Get().String()).
		Strs("providers", gw.Registry().IDs()).
		Str("default", s.DefaultProvider).
		Bool("knowledge", kb != nil).
		Msg("gateway starting")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newKnowledgeClient 未配置地址时返回 nil，知识库接口随之返回 503
func newKnowledgeClient(s settings.Settings, logger zerolog.Logger) *knowledge.Client {
	kb, err := knowledge.New(knowledge.Config{
		BaseURL:   s.Knowledge.Endpoint,
		APIKey:    s.Knowledge.APIKey,
		Timeout:   s.Knowledge.Timeout,
		UserAgent: version.Get().UserAgent(),
		Logger:    logger,
	})
	if err != nil {
		if !errors.Is(err, knowledge.ErrNotConfigured) {
			logger.Warn().Err(err).Msg("knowledge client disabled")
		}
		return nil
	}
	return kb
}
