package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lgc202/llm-gateway/llm"
)

type generateOptions struct {
	provider    string
	system      string
	temperature float64
	maxTokens   int
	stop        []string
	stream      bool
}

func newGenerateCmd(o *rootOptions) *cobra.Command {
	g := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [flags] PROMPT...",
		Short: "调用 provider 生成文本",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.generate(cmd, g, strings.Join(args, " "))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&g.provider, "provider", "p", "", "provider id，默认使用 default_provider")
	f.StringVarP(&g.system, "system", "s", "", "系统提示词")
	f.Float64VarP(&g.temperature, "temperature", "t", llm.DefaultTemperature, "采样温度 [0, 1]")
	f.IntVar(&g.maxTokens, "max-tokens", 0, "最大生成长度，0 表示不限制")
	f.StringSliceVar(&g.stop, "stop", nil, "停止词，可重复指定")
	f.BoolVar(&g.stream, "stream", false, "流式输出")
	return cmd
}

func (o *rootOptions) generate(cmd *cobra.Command, g *generateOptions, prompt string) error {
	c, logger, err := o.load(false)
	if err != nil {
		return err
	}
	s := c.Get()
	gw, err := s.NewGateway(logger)
	if err != nil {
		return err
	}

	provider := g.provider
	if provider == "" {
		provider = s.DefaultProvider
	}
	opts := []llm.RequestOption{
		llm.WithSystemPrompt(g.system),
		llm.WithTemperature(g.temperature),
		llm.WithMaxTokens(g.maxTokens),
	}
	if len(g.stop) > 0 {
		opts = append(opts, llm.WithStop(g.stop...))
	}
	req := llm.NewRequest(prompt, opts...)
	out := cmd.OutOrStdout()

	if !g.stream {
		text, err := gw.Generate(cmd.Context(), provider, req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, text)
		return err
	}

	stream, err := gw.Stream(cmd.Context(), provider, req)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, chunk); err != nil {
			return err
		}
	}
	if n := stream.Skipped(); n > 0 {
		logger.Warn().Int("skipped", n).Msg("malformed stream lines skipped")
	}
	_, err = fmt.Fprintln(out)
	return err
}
