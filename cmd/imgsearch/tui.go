package main

import (
	"github.com/FranksOps/imgsearch/internal/search"
	"github.com/FranksOps/imgsearch/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Search interactively in a terminal UI",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{quietLogs: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			orch := search.New(client,
				search.WithLogger(a.logger),
				search.WithContext(cmd.Context()),
			)
			defer orch.Close()

			return tui.Run(cmd.Context(), orch, a.logger)
		},
	}
}
