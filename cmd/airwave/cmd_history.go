package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"airwave/internal/store"
)

var (
	historyKind    string
	historyLimit   int
	historySummary bool
	historyPrune   time.Duration
)

// historyCmd queries the local event history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded gesture, voice, and mood events",
	Long: `Every event the launcher sees on the bus is recorded in a local
SQLite database. This command lists recent events, summarizes them by type,
or prunes old rows.

Examples:
  airwave history
  airwave history --kind mood --limit 10
  airwave history --summary
  airwave history --prune 720h`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", store.KindGesture, "Event kind: gesture, voice, mood, status")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum events to show")
	historyCmd.Flags().BoolVar(&historySummary, "summary", false, "Show counts per event type instead of a list")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete events older than this and exit")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := store.Open(filepath.Join(filepath.Dir(configPath), ".airwave", "history.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	if historyPrune > 0 {
		n, err := st.Prune(historyPrune)
		if err != nil {
			return err
		}
		fmt.Printf("%s pruned %d events\n", okStyle.Render("✓"), n)
		return nil
	}

	if historySummary {
		counts, err := st.Summary(historyKind)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println(dimStyle.Render("no " + historyKind + " events recorded"))
			return nil
		}
		details := make([]string, 0, len(counts))
		for d := range counts {
			details = append(details, d)
		}
		sort.Slice(details, func(i, j int) bool { return counts[details[i]] > counts[details[j]] })
		fmt.Println(titleStyle.Render(historyKind + " events"))
		for _, d := range details {
			fmt.Printf("  %5d  %s\n", counts[d], d)
		}
		return nil
	}

	events, err := st.Recent(historyKind, historyLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println(dimStyle.Render("no " + historyKind + " events recorded"))
		return nil
	}
	for _, ev := range events {
		fmt.Printf("%s  %-8s %-12s %s\n",
			dimStyle.Render(ev.CreatedAt.Format("2006-01-02 15:04:05")),
			ev.Device, ev.Detail, dimStyle.Render(ev.EventID))
	}
	return nil
}
