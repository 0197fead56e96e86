package main

import (
	"fmt"
	"io"
	"os"

	"github.com/FranksOps/imgsearch/internal/extractor"
	"github.com/spf13/cobra"
)

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [FILE]",
		Short: "Print the thumbnail URLs in a saved results page (stdin if no FILE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			name := "stdin"
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r, name = f, args[0]
			}

			urls, err := extractor.ExtractReader(r)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			a.logger.Debug("page extracted", "source", name, "items", len(urls))

			for _, u := range urls {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), u); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
