package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/radatool/radatool/artifact"
	"github.com/radatool/radatool/filter"
	"github.com/radatool/radatool/ra"
)

var (
	datFilterExpr string
	datOutputDir  string
)

// datCmd represents the dat command
var datCmd = &cobra.Command{
	Use:   "dat <console-id>",
	Short: "Generate a clrmamepro DAT file from cached data",
	Long: `Render the cached game data for a console into a clrmamepro-style DAT
file. Run 'radatool fetch' first to populate the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: runDAT,
}

func init() {
	rootCmd.AddCommand(datCmd)

	datCmd.Flags().StringVarP(&datFilterExpr, "filter", "f", "", "filter expression, e.g. 'AchievementCount > 0'")
	datCmd.Flags().StringVarP(&datOutputDir, "output", "o", "", "output directory (default from config)")
}

// cachedRecords loads a console's cached records and applies an optional
// filter expression
func cachedRecords(consoleID int, filterExpr string) ([]ra.TitleRecord, error) {
	records, ok := manager.Cached(consoleID)
	if !ok {
		return nil, fmt.Errorf("no cached data for console %d, run 'radatool fetch %d' first", consoleID, consoleID)
	}

	if filterExpr == "" {
		return records, nil
	}

	f, err := filter.Compile(filterExpr)
	if err != nil {
		return nil, err
	}
	matched, err := f.Apply(records)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("filter", filterExpr).
		Int("matched", len(matched)).
		Int("total", len(records)).
		Msg("Filter applied")
	return matched, nil
}

func runDAT(cmd *cobra.Command, args []string) error {
	consoleID, err := strconv.Atoi(args[0])
	if err != nil || consoleID <= 0 {
		return fmt.Errorf("invalid console id: %s", args[0])
	}

	records, err := cachedRecords(consoleID, datFilterExpr)
	if err != nil {
		return err
	}

	name := consoleName(cmd, consoleID)

	outDir := datOutputDir
	if outDir == "" {
		outDir = cfg.Paths.DATDir
	}
	outPath := filepath.Join(outDir, artifact.DATFileName(name))

	opts := artifact.DATOptions{
		IncludeAchievements: cfg.Options.IncludeAchievements,
		IncludePatchURLs:    cfg.Options.IncludePatchURLs,
		ROMExtension:        cfg.Options.ROMExtension,
	}

	err = manager.Generate(cmd.Context(), func(ctx context.Context) error {
		return artifact.WriteDAT(outPath, name, records, opts)
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ Wrote %d games to %s\n", len(records), outPath)
	return nil
}
