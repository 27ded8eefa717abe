package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Func executes one notebook for one date and converts it to HTML, returning
// the output path. The rendering engine is a black box behind this contract.
type Func func(ctx context.Context, source, date, outDir string) (string, error)

// Papermill renders through the papermill and nbconvert CLIs. Both blocking
// calls happen inside worker tasks; no timeout is imposed here beyond
// context cancellation.
type Papermill struct {
	// TemplateDir is passed to nbconvert when set.
	TemplateDir string
}

// Render executes source with the date parameter injected, converts the
// executed notebook to HTML under outDir, and returns the HTML path. On
// failure the error carries the tool's output detail.
func (p Papermill) Render(ctx context.Context, source, date, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	id := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	tmpDir, err := os.MkdirTemp("", "peerpipe-render-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	executed := filepath.Join(tmpDir, id+"_executed.ipynb")

	execCmd := exec.CommandContext(ctx, "papermill", source, executed,
		"-p", "target_date", date,
		"--cwd", filepath.Dir(source))
	if out, err := execCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("papermill %s: %w: %s", id, err, clip(out))
	}

	args := []string{
		"nbconvert", "--to", "html",
		"--no-input",
		"--output", id,
		"--output-dir", outDir,
	}
	if p.TemplateDir != "" {
		args = append(args, "--TemplateExporter.extra_template_basedirs="+p.TemplateDir)
	}
	args = append(args, executed)

	convCmd := exec.CommandContext(ctx, "jupyter", args...)
	if out, err := convCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("nbconvert %s: %w: %s", id, err, clip(out))
	}

	return filepath.Join(outDir, id+".html"), nil
}

// clip bounds tool output carried inside error detail.
func clip(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 500 {
		return s[:500]
	}
	return s
}
