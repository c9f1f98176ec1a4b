package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stampede/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := history.Open("")
		if err != nil {
			fatalf("error: %v", err)
		}
		defer store.Close()

		entries, err := store.List()
		if err != nil {
			fatalf("error: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("no runs recorded")
			return
		}

		fmt.Printf("%-20s %-10s %9s %8s %10s %9s\n", "START", "SCENARIO", "REQUESTS", "ERR%", "P95", "BREACHES")
		for _, e := range entries {
			fmt.Printf("%-20s %-10s %9d %7.2f%% %10s %9d\n",
				e.StartTime.Local().Format("2006-01-02 15:04:05"),
				e.Scenario,
				e.Requests,
				e.ErrorRate*100,
				e.P95.Truncate(time.Millisecond),
				e.Breaches)
		}
	},
}
