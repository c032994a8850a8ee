package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// consolesCmd represents the consoles command
var consolesCmd = &cobra.Command{
	Use:   "consoles",
	Short: "List known consoles and their ids",
	Long:  `List every console the RetroAchievements API knows about, with the id used by the fetch, dat and collection commands.`,
	RunE:  runConsoles,
}

func init() {
	rootCmd.AddCommand(consolesCmd)
}

func runConsoles(cmd *cobra.Command, args []string) error {
	consoles, err := client.GetConsoleIDs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get console list: %w", err)
	}

	sort.Slice(consoles, func(i, j int) bool {
		return consoles[i].ID < consoles[j].ID
	})

	fmt.Printf("%-6s %s\n", "ID", "CONSOLE")
	fmt.Println(strings.Repeat("-", 40))
	for _, console := range consoles {
		fmt.Printf("%-6d %s\n", console.ID, console.Name)
	}

	return nil
}
