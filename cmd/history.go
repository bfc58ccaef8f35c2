/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage recorded translation runs",
	Long: `Every run records its documents and completed batches in the database.
A document completed by an earlier run with the same model, mode and language
pair is reused instead of being translated again.`,
}

var historyLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := mustOpenStore()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tSERVICE\tMODEL\tLANGS\tDOCS\tBATCHES")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s→%s\t%d\t%d\n",
				r.ID, r.Timestamp.Local().Format(time.DateTime), r.Status, r.Service, r.Model,
				r.SourceLang, r.TargetLang, r.Documents, r.Batches)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := mustOpenStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		run, err := db.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		docs, err := db.RunDocuments(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}

		fmt.Printf("Run:          %s\n", run.ID)
		fmt.Printf("Status:       %s\n", run.Status)
		fmt.Printf("Started:      %s\n", run.Timestamp.Local().Format(time.DateTime))
		if run.FinishedAt.Valid {
			fmt.Printf("Finished:     %s\n", run.FinishedAt.Time.Local().Format(time.DateTime))
		}
		fmt.Printf("Service:      %s (%s)\n", run.Service, run.Model)
		fmt.Printf("Mode:         %s\n", run.Mode)
		fmt.Printf("Languages:    %s → %s\n", run.SourceLang, run.TargetLang)
		fmt.Printf("Batch size:   %d\n", run.BatchSize)
		if run.ThinkBudget > 0 {
			fmt.Printf("Think budget: %d\n", run.ThinkBudget)
		}
		if run.Error != "" {
			fmt.Printf("Error:        %s\n", run.Error)
		}
		if len(docs) == 0 {
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tOUTPUT\tLINES\tSTATUS")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Path, d.OutputPath, d.Lines, d.Status)
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := mustOpenStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Runs:             %d (%d completed, %d failed)\n", stats.Runs, stats.CompletedRuns, stats.FailedRuns)
		fmt.Printf("Documents:        %d (%d from cache)\n", stats.Documents, stats.CachedDocuments)
		fmt.Printf("Batches:          %d\n", stats.Batches)
		fmt.Printf("Lines translated: %d\n", stats.LinesTranslated)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded runs (the glossary is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := mustOpenStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Clear(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Removed %d runs\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyClearCmd)
}
