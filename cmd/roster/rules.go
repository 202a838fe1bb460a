package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paiban/roster/internal/constraints"
	"github.com/paiban/roster/internal/render"
	"github.com/paiban/roster/pkg/scheduler"
)

func rulesCmd(_ *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "列出可在 roster.yaml 中开关的规则",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			library := constraints.GetLibrary(scheduler.New(scheduler.DefaultSettings()).Manager())
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(constraints.LibraryResponse{Library: library})
			}
			fmt.Fprintln(out, render.Rules(library))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}
