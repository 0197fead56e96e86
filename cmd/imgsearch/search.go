package main

import (
	"fmt"
	"io"

	"github.com/FranksOps/imgsearch/internal/pipeline"
	"github.com/FranksOps/imgsearch/internal/report"
	"github.com/FranksOps/imgsearch/internal/search"
	"github.com/spf13/cobra"
)

var formats = map[string]func(io.Writer, []search.Result) error{
	"urls": writeURLs,
	"text": func(w io.Writer, r []search.Result) error { return report.WriteText(w, report.New(r)) },
	"json": func(w io.Writer, r []search.Result) error { return report.WriteJSON(w, report.New(r)) },
	"html": func(w io.Writer, r []search.Result) error { return report.WriteHTML(w, report.New(r)) },
	"csv":  func(w io.Writer, r []search.Result) error { return report.WriteCSV(w, report.New(r)) },
}

func writeURLs(w io.Writer, results []search.Result) error {
	for _, r := range results {
		for _, u := range r.Items {
			if _, err := fmt.Fprintln(w, u); err != nil {
				return err
			}
		}
	}
	return nil
}

func newSearchCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "search TERM...",
		Short: "Search each term and print the image URLs or a report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, ok := formats[format]
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			runner := &pipeline.Runner{
				Client:      client,
				Concurrency: a.cfg.Concurrency,
				Logger:      a.logger,
			}
			results, err := runner.Run(cmd.Context(), args)
			if err != nil {
				return err
			}

			if err := write(cmd.OutOrStdout(), results); err != nil {
				return fmt.Errorf("write %s output: %w", format, err)
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					if format == "urls" {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Query, r.Err)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d searches failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "urls", "output format: urls, text, json, html, csv")
	return cmd
}
