package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/runlog"
)

var errIndexDisabled = errors.New("run index is disabled (set database.enabled = true)")

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run index",
	}
	cmd.AddCommand(newRunsListCmd(a))
	cmd.AddCommand(newRunsReindexCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	var (
		filter db.JobRecordFilter
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed job records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
			}

			database, err := a.openIndex()
			if err != nil {
				return err
			}
			if database == nil {
				return errIndexDisabled
			}
			defer database.Close()

			records, err := database.ListJobRecords(filter)
			if err != nil {
				return fmt.Errorf("list job records: %w", err)
			}

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only records of this session id")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only records with this status")
	cmd.Flags().StringVar(&filter.TagPrefix, "tag-prefix", "", "Only records whose tag starts with this prefix (ts_, dist_, sd_)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of records (0 = all)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func printRecords(w io.Writer, records []db.JobRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tTAG\tJOB ID\tBACKEND\tSTATUS\tELAPSED\tSUCCESS")
	for _, r := range records {
		success := "-"
		if r.Success != nil {
			success = strconv.FormatFloat(*r.Success, 'f', 4, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1fs\t%s\n",
			r.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z"),
			r.Tag, r.JobID, r.Backend, r.Status, r.ElapsedSeconds, success)
	}
	return tw.Flush()
}

func newRunsReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the run index from the JSONL run log",
		Long:  "Loads every record of the run log into the sqlite index. Records already indexed are skipped, so reindexing is safe to repeat.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openIndex()
			if err != nil {
				return err
			}
			if database == nil {
				return errIndexDisabled
			}
			defer database.Close()

			path := a.cfg.Data.RunLogPath()
			records, err := runlog.ReadFile(path)
			if err != nil {
				return err
			}

			res, err := runlog.Reindex(database, records)
			if err != nil {
				return fmt.Errorf("reindex %s: %w", path, err)
			}

			a.logger.Info("run index rebuilt",
				"run_log", path,
				"read", res.Read,
				"inserted", res.Inserted,
				"skipped", res.Skipped)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "read %d records: %d inserted, %d already indexed\n", res.Read, res.Inserted, res.Skipped)
			return err
		},
	}
}
