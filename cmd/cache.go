package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// cacheCmd groups the cache maintenance subcommands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the local cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached consoles",
	RunE:  runCacheList,
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean [console-id...]",
	Short: "Delete cached data for the given consoles, or all of it",
	RunE:  runCacheClean,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	entries, err := store.Entries()
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}

	if len(entries) == 0 {
		fmt.Printf("Cache is empty (%s)\n", store.Dir())
		return nil
	}

	fmt.Printf("%-12s %-10s %s\n", "CONSOLE ID", "SIZE", "FILE")
	fmt.Println(strings.Repeat("-", 60))
	for _, entry := range entries {
		fmt.Printf("%-12d %-10s %s\n", entry.ConsoleID, formatSize(entry.Size), entry.Path)
	}
	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		entries, err := store.Entries()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		for _, entry := range entries {
			store.Delete(entry.ConsoleID)
			fmt.Printf("✓ Removed console %d\n", entry.ConsoleID)
		}
		if len(entries) == 0 {
			fmt.Println("Cache is already empty")
		}
		return nil
	}

	for _, arg := range args {
		consoleID, err := strconv.Atoi(arg)
		if err != nil || consoleID <= 0 {
			return fmt.Errorf("invalid console id: %s", arg)
		}
		if store.Delete(consoleID) {
			fmt.Printf("✓ Removed console %d\n", consoleID)
		} else {
			fmt.Printf("- Console %d was not cached\n", consoleID)
		}
	}
	return nil
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/float64(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
