// Package dist assembles the publishable artifact tree: data files are
// copied only for dates that actually have rendered reports, so published
// data always aligns with published content.
package dist

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"peerpipe/internal/manifest"
	"peerpipe/internal/render"
)

// Stats summarizes one collection pass.
type Stats struct {
	Dates      int
	Files      int
	TotalBytes int64
}

// CollectData copies each rendered date's data partition from dataDir into
// destDir, plus the pipeline manifest itself. Dates present in the render
// manifest but missing on disk are skipped.
func CollectData(dataDir, renderedDir, destDir string, log *slog.Logger) (Stats, error) {
	if log == nil {
		log = slog.Default()
	}
	var stats Stats

	rm := render.LoadManifest(renderedDir)
	dates := make([]string, 0, len(rm.Dates))
	for d := range rm.Dates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	if len(dates) == 0 {
		log.Info("no rendered dates, nothing to collect")
		return stats, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return stats, err
	}

	for _, date := range dates {
		files, size, err := copyDate(dataDir, destDir, date)
		if err != nil {
			return stats, err
		}
		if files == 0 {
			log.Warn("no data files for rendered date", "date", date)
			continue
		}
		stats.Dates++
		stats.Files += files
		stats.TotalBytes += size
		log.Info("collected date", "date", date, "files", files, "bytes", size)
	}

	src := filepath.Join(dataDir, manifest.FileName)
	if _, err := os.Stat(src); err == nil {
		n, err := copyFile(src, filepath.Join(destDir, manifest.FileName))
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.TotalBytes += n
	}

	return stats, nil
}

func copyDate(dataDir, destDir, date string) (int, int64, error) {
	srcDir := filepath.Join(dataDir, date)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading %s: %w", srcDir, err)
	}

	dstDir := filepath.Join(destDir, date)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, 0, err
	}

	files := 0
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(dstDir, e.Name()))
		if err != nil {
			return files, total, err
		}
		files++
		total += n
	}
	return files, total, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", src, err)
	}
	return n, out.Sync()
}
