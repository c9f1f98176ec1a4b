package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stampede/internal/workload"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the built-in run scenarios",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-11s %6s %11s %10s  %s\n", "NAME", "USERS", "SPAWN-RATE", "DURATION", "DESCRIPTION")
		for _, s := range workload.Scenarios() {
			fmt.Printf("%-11s %6d %11d %10s  %s\n", s.Name, s.Users, s.SpawnRate, s.Duration, s.Description)
		}
	},
}
