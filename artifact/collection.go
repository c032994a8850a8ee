package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/radatool/radatool/ra"
)

// CollectionConfig describes the target front-ends for collection manifests
type CollectionConfig struct {
	// RetroPieBase is the ROM base path on a RetroPie install
	RetroPieBase string
	// BatoceraBase is the ROM base path on a Batocera install
	BatoceraBase string
	// ROMExtension is appended to each title to form the expected filename
	ROMExtension string
}

// CollectionFileName returns the manifest file name for one flavor
func CollectionFileName(consoleName, flavor string) string {
	if flavor == "batocera" {
		return fmt.Sprintf("RetroAchievements - %s.batocera.cfg", consoleName)
	}
	return fmt.Sprintf("RetroAchievements - %s.cfg", consoleName)
}

// WriteCollections writes RetroPie and Batocera collection manifests for
// the records into outDir, one file per configured base path. The flavors
// are independent files and are written concurrently. Returns the paths
// written.
func WriteCollections(ctx context.Context, outDir, consoleName string, records []ra.TitleRecord, cfg CollectionConfig) ([]string, error) {
	ext := normalizeExtension(cfg.ROMExtension)

	type flavor struct {
		name string
		base string
	}
	flavors := []flavor{
		{name: "retropie", base: cfg.RetroPieBase},
		{name: "batocera", base: cfg.BatoceraBase},
	}

	var written []string
	g, _ := errgroup.WithContext(ctx)

	for _, f := range flavors {
		f := f
		if f.base == "" {
			continue
		}
		out := filepath.Join(outDir, CollectionFileName(consoleName, f.name))
		written = append(written, out)

		g.Go(func() error {
			content := renderCollection(f.base, consoleName, ext, records)
			if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
				return fmt.Errorf("write %s collection: %w", f.name, err)
			}
			return nil
		})
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("no collection base paths configured")
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return written, nil
}

// renderCollection builds one manifest: a quoted target-device path per
// title. Target devices are Linux front-ends, so paths always use forward
// slashes regardless of the host platform.
func renderCollection(base, consoleName, ext string, records []ra.TitleRecord) string {
	var b strings.Builder
	for _, record := range records {
		title := strings.ReplaceAll(record.Title, `"`, `'`)
		romPath := path.Join(base, consoleName, title+ext)
		fmt.Fprintf(&b, "\"%s\"\n", romPath)
	}
	return b.String()
}
