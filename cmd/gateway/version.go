package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgc202/llm-gateway/version"
)

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch output {
			case "json":
				s, err := info.ToJSONIndent()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
			case "yaml":
				s, err := info.ToYAML()
				if err != nil {
					return err
				}
				fmt.Fprint(out, s)
			case "short":
				fmt.Fprintln(out, info.ShortString())
			case "text":
				fmt.Fprintln(out, info.Text())
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "输出格式 (text, json, yaml, short)")
	return cmd
}
