package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// providerInfo 是 info 命令的输出结构，api key 已脱敏
type providerInfo struct {
	ID        string         `json:"id" yaml:"id"`
	Style     string         `json:"style" yaml:"style"`
	Model     string         `json:"model" yaml:"model"`
	Endpoint  string         `json:"endpoint" yaml:"endpoint"`
	APIKey    string         `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Preflight bool           `json:"preflight" yaml:"preflight"`
	Available bool           `json:"available" yaml:"available"`
	ModelInfo map[string]any `json:"model_info" yaml:"model_info"`
}

func newInfoCmd(o *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "info ID",
		Short: "显示 provider 配置、可用性与模型信息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := o.load(false)
			if err != nil {
				return err
			}
			gw, err := c.Get().NewGateway(logger)
			if err != nil {
				return err
			}
			p, err := gw.Registry().Resolve(args[0])
			if err != nil {
				return err
			}
			p = p.Redacted()

			info := providerInfo{
				ID:        p.ID,
				Style:     p.Style.String(),
				Model:     p.Model,
				Endpoint:  p.Endpoint,
				APIKey:    p.APIKey,
				Preflight: p.Preflight,
				Available: gw.IsAvailable(cmd.Context(), p.ID),
				ModelInfo: gw.ModelInfo(cmd.Context(), p.ID),
			}
			return printInfo(cmd, info, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "输出格式 (yaml, json)")
	return cmd
}

func printInfo(cmd *cobra.Command, info providerInfo, output string) error {
	var (
		b   []byte
		err error
	)
	switch output {
	case "yaml":
		b, err = yaml.Marshal(info)
	case "json":
		b, err = json.MarshalIndent(info, "", "  ")
		b = append(b, '\n')
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
