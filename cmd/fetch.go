package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	fetchRefresh bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <console-id>",
	Short: "Fetch and cache game data for a console",
	Long: `Fetch the game list for a console, retrieve hashes and extended details
per game, and persist the results to the local cache. A cached console is
served from disk; use --refresh to discard the cache first.

Press Ctrl+C to stop after the current game; completed work is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "discard any cached data and fetch again")
}

// consoleObserver prints fetch progress to stdout
type consoleObserver struct{}

func (consoleObserver) Status(message string) {
	fmt.Println(message)
}

func (consoleObserver) Progress(current, total int, title string) {
	fmt.Printf("[%d/%d] %s\n", current, total, title)
}

func runFetch(cmd *cobra.Command, args []string) error {
	consoleID, err := strconv.Atoi(args[0])
	if err != nil || consoleID <= 0 {
		return fmt.Errorf("invalid console id: %s", args[0])
	}

	if fetchRefresh {
		store.Delete(consoleID)
	}

	task, err := manager.Start(cmd.Context(), consoleID, fetchOptions(), consoleObserver{})
	if err != nil {
		return err
	}

	// First SIGINT requests a cooperative stop after the current game;
	// a second one terminates the process the usual way.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Println("\nStopping after current game... (Ctrl+C again to force quit)")
			task.Cancel()
			signal.Stop(sigCh)
		}
	}()

	result, err := task.Wait()
	if err != nil {
		return err
	}

	switch {
	case result.FromCache:
		fmt.Printf("✓ Console %d already cached (%d games). Use --refresh to fetch again.\n", consoleID, len(result.Records))
	case result.Cancelled:
		fmt.Printf("✓ Stopped early; %d games cached for console %d\n", len(result.Records), consoleID)
	default:
		fmt.Printf("✓ Cached %d games for console %d\n", len(result.Records), consoleID)
	}

	if len(result.ItemErrors) > 0 {
		fmt.Printf("⚠ Skipped %d games due to errors:\n", len(result.ItemErrors))
		for _, itemErr := range result.ItemErrors {
			fmt.Printf("  - %s (ID: %d): %v\n", itemErr.Title, itemErr.GameID, itemErr.Err)
		}
	}

	return nil
}
