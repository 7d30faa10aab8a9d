package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lgc202/llm-gateway/config"
	"github.com/lgc202/llm-gateway/internal/logging"
	"github.com/lgc202/llm-gateway/internal/settings"
	"github.com/lgc202/llm-gateway/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "统一访问多个 LLM provider 的网关",
		Version:      version.Get().String(),
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "配置文件路径 (yaml/json/toml)，为空时只使用默认值与环境变量")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "覆盖配置中的日志级别")

	cmd.AddCommand(
		newServeCmd(o),
		newGenerateCmd(o),
		newProbeCmd(o),
		newProvidersCmd(o),
		newInfoCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// load 读取配置并构建日志。watch 为 true 时监听配置文件变化。
func (o *rootOptions) load(watch bool) (*config.Config[settings.Settings], zerolog.Logger, error) {
	boot, err := logging.New(o.logLevel, logging.FormatConsole)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	c, err := settings.Load(o.configPath, boot, watch)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}

	s := c.Get()
	level := s.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logging.New(level, s.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return c, logger, nil
}
