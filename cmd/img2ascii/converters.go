package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "converters",
		Short: "List the registered converters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			active := engine.Active()
			for _, info := range engine.Converters() {
				marker := " "
				if info.Name == active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", marker, info.Name, info.Description)
			}
			return nil
		},
	}
}
