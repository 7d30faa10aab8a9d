package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newProvidersCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "列出已配置的 provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.load(false)
			if err != nil {
				return err
			}
			s := c.Get()

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("ID", "STYLE", "MODEL", "ENDPOINT", "API KEY", "PREFLIGHT", "DEFAULT")
			for _, p := range s.Profiles() {
				p = p.Redacted()
				def := ""
				if p.ID == s.DefaultProvider {
					def = "*"
				}
				table.AddRow(p.ID, p.Style, p.Model, p.Endpoint, p.APIKey, p.Preflight, def)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}
}
