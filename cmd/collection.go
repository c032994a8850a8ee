package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/radatool/radatool/artifact"
)

var (
	collectionFilterExpr string
	collectionOutputDir  string
)

// collectionCmd represents the collection command
var collectionCmd = &cobra.Command{
	Use:   "collection <console-id>",
	Short: "Generate RetroPie and Batocera collection manifests from cached data",
	Long: `Render the cached game data for a console into custom-collection
manifests, one per configured front-end base path. Run 'radatool fetch'
first to populate the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollection,
}

func init() {
	rootCmd.AddCommand(collectionCmd)

	collectionCmd.Flags().StringVarP(&collectionFilterExpr, "filter", "f", "", "filter expression, e.g. 'AchievementCount > 0'")
	collectionCmd.Flags().StringVarP(&collectionOutputDir, "output", "o", "", "output directory (default from config)")
}

func runCollection(cmd *cobra.Command, args []string) error {
	consoleID, err := strconv.Atoi(args[0])
	if err != nil || consoleID <= 0 {
		return fmt.Errorf("invalid console id: %s", args[0])
	}

	records, err := cachedRecords(consoleID, collectionFilterExpr)
	if err != nil {
		return err
	}

	name := consoleName(cmd, consoleID)

	outDir := collectionOutputDir
	if outDir == "" {
		outDir = cfg.Paths.CollectionDir
	}

	collectionCfg := artifact.CollectionConfig{
		RetroPieBase: cfg.Paths.RetroPieBasePath,
		BatoceraBase: cfg.Paths.BatoceraBasePath,
		ROMExtension: cfg.Options.ROMExtension,
	}

	var written []string
	err = manager.Generate(cmd.Context(), func(ctx context.Context) error {
		var genErr error
		written, genErr = artifact.WriteCollections(ctx, outDir, name, records, collectionCfg)
		return genErr
	})
	if err != nil {
		return err
	}

	for _, path := range written {
		fmt.Printf("✓ Wrote %d entries to %s\n", len(records), path)
	}
	return nil
}
