package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"carpics/fetcher/internal/container"
	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/plan"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List exterior codes from the exterior table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(_ context.Context, c *container.Container) error {
			tbl, err := c.Exteriors.Table()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(tbl.Codes())
			}
			for _, code := range tbl.Codes() {
				fmt.Println(code)
			}
			return nil
		})
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the URLs and filenames that would be downloaded",
	Long: `Print the download plan without fetching anything.

Examples:
  carpics plan
  carpics plan --url "https://.../Query?producttoken=...&..." --prefix Car1
  carpics plan --url "..." --prefix Car1 --customize --exterior RED --exterior BLK --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(_ context.Context, c *container.Container) error {
			results := c.Service.Plan(requests(c.Config))
			if err := checkRequests(results); err != nil {
				return err
			}
			return printPlan(results)
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Build the plan and download every image",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(ctx context.Context, c *container.Container) error {
			reqs := requests(c.Config)
			if len(reqs) == 0 {
				return errors.New("no requests: set --url/--prefix or add requests to config.yaml")
			}
			summary, err := c.Service.FetchAll(ctx, reqs)
			log.Infof("📦 %d requests, %d failed, %d images saved to %s",
				summary.Requests, summary.Failed, summary.Images, c.Config.Fetcher.OutputDir)
			return err
		})
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Push plan entries onto the Redis fetch stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(ctx context.Context, c *container.Container) error {
			n, err := c.Service.Enqueue(ctx, requests(c.Config))
			log.Infof("📨 Enqueued %d images", n)
			return err
		})
	},
}

var workers int

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Fetch images from the Redis stream until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(ctx context.Context, c *container.Container) error {
			n := workers
			if n <= 0 {
				n = c.Config.Fetcher.MaxWorkers
			}
			return c.Service.RunWorkers(ctx, n)
		})
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent fetches recorded in Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(func(ctx context.Context, c *container.Container) error {
			if c.Repository == nil {
				return errors.New("fetch history needs database.enabled: true")
			}
			return printHistory(ctx, c.Repository, historyLimit, os.Stdout)
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of fetches to show")
	workCmd.Flags().IntVar(&workers, "workers", 0, "Number of workers (default fetcher.max_workers)")
}

// checkRequests reports every request that failed to build and returns an
// error if none succeeded.
func checkRequests(results []plan.Result) error {
	if len(results) == 0 {
		return errors.New("no requests: set --url/--prefix or add requests to config.yaml")
	}
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", r.Err)
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == len(results) {
		return errors.Join(errs...)
	}
	return nil
}

func printPlan(results []plan.Result) error {
	var entries []domain.PlanEntry
	for _, r := range results {
		entries = append(entries, r.Entries...)
	}

	if jsonOutput {
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tURL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.Filename, e.URL)
	}
	return w.Flush()
}

type historySource interface {
	RecentFetches(ctx context.Context, limit int) ([]domain.FetchRecord, error)
}

func printHistory(ctx context.Context, repo historySource, limit int, out io.Writer) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	records, err := repo.RecentFetches(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, records)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FETCHED\tFILENAME\tBYTES\tSTATUS")
	for _, r := range records {
		status := "ok"
		if !r.OK() {
			status = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.FetchedAt.Format(time.DateTime), r.Filename, r.Bytes, status)
	}
	return w.Flush()
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
