// Package artifact renders cached title records into the output files
// consumed by ROM managers and emulator front-ends. It only ever receives
// records that carry at least one valid hash.
package artifact

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/radatool/radatool/ra"
)

// DATOptions controls what a DAT file includes per game
type DATOptions struct {
	// IncludeAchievements adds achievement counts as game comments
	IncludeAchievements bool
	// IncludePatchURLs adds patch locations as game comments
	IncludePatchURLs bool
	// ROMExtension is the extension used to synthesize filenames for hashes
	// that carry none; normalized to a leading dot
	ROMExtension string
}

func (o DATOptions) extension() string {
	return normalizeExtension(o.ROMExtension)
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = ".zip"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DATFileName returns the conventional DAT file name for a console
func DATFileName(consoleName string) string {
	return fmt.Sprintf("RetroAchievements - %s.dat", consoleName)
}

// WriteDAT renders records into a clrmamepro-style DAT file at path
func WriteDAT(path, consoleName string, records []ra.TitleRecord, opts DATOptions) error {
	var b strings.Builder

	fmt.Fprintf(&b, "clrmamepro (\n")
	fmt.Fprintf(&b, "\tname %s\n", quote(consoleName+" (RetroAchievements)"))
	fmt.Fprintf(&b, "\tdescription %s\n", quote(consoleName+" (RetroAchievements)"))
	fmt.Fprintf(&b, "\tversion %s\n", quote(time.Now().Format("2006-01-02 15-04-05")))
	fmt.Fprintf(&b, "\thomepage %s\n", quote("https://retroachievements.org"))
	fmt.Fprintf(&b, ")\n")

	ext := opts.extension()
	for _, record := range records {
		writeGame(&b, record, ext, opts)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write DAT file: %w", err)
	}
	return nil
}

func writeGame(b *strings.Builder, record ra.TitleRecord, ext string, opts DATOptions) {
	fmt.Fprintf(b, "\ngame (\n")
	fmt.Fprintf(b, "\tname %s\n", quote(record.Title))
	fmt.Fprintf(b, "\tdescription %s\n", quote(record.Title))
	fmt.Fprintf(b, "\tcomment %s\n", quote("ID: "+record.ID))

	if opts.IncludeAchievements && record.Extended != nil && record.Extended.AchievementCount > 0 {
		fmt.Fprintf(b, "\tcomment %s\n",
			quote(fmt.Sprintf("Achievements: %d (%d points)", record.Extended.AchievementCount, record.Extended.Points)))
	}
	if opts.IncludePatchURLs && record.Extended != nil && record.Extended.PatchURL != "" {
		fmt.Fprintf(b, "\tcomment %s\n", quote("Patch URL: "+record.Extended.PatchURL))
	}

	for _, hash := range record.Hashes {
		name := hash.Filename
		if name == "" {
			name = record.Title + ext
		}
		fmt.Fprintf(b, "\trom ( name %s size 0 md5 %s )\n", quote(name), hash.Digest)
	}

	fmt.Fprintf(b, ")\n")
}

// quote wraps a value in double quotes; embedded quotes are replaced since
// the format has no escaping
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `'`) + `"`
}
