package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/lgc202/llm-gateway/llm"
)

func newProbeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [ID...]",
		Short: "探测 provider 可用性，不指定 id 时探测全部",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := o.load(false)
			if err != nil {
				return err
			}
			gw, err := c.Get().NewGateway(logger)
			if err != nil {
				return err
			}

			var (
				profiles []llm.Profile
				avail    map[string]bool
			)
			if len(args) == 0 {
				profiles = gw.Profiles()
				avail = gw.Availability(cmd.Context())
			} else {
				avail = make(map[string]bool, len(args))
				for _, id := range args {
					p, err := gw.Registry().Resolve(id)
					if err != nil {
						return err
					}
					profiles = append(profiles, p)
					avail[id] = gw.IsAvailable(cmd.Context(), id)
				}
			}

			table := uitable.New()
			table.AddRow("ID", "STYLE", "MODEL", "AVAILABLE")
			for _, p := range profiles {
				table.AddRow(p.ID, p.Style, p.Model, avail[p.ID])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}
}
