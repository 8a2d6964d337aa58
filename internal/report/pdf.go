package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Export: HTML to file, or to PDF via wkhtmltopdf / headless chromium
// ════════════════════════════════════════════════════════════════════

// PDFEngine specifies which engine to use for HTML to PDF conversion.
type PDFEngine string

const (
	EngineWKHTML   PDFEngine = "wkhtmltopdf"
	EngineChromium PDFEngine = "chromium"
	EngineNone     PDFEngine = "none"
)

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// ExportConfig holds settings for writing a rendered dashboard to disk.
type ExportConfig struct {
	Engine     PDFEngine     // empty means auto-detect
	PageSize   string        // default: "A4"
	Landscape  bool          // the dashboard has three columns, so default true
	Timeout    time.Duration // default: 60s
	OutputPath string        // required; ".pdf" selects PDF output
}

// DefaultExportConfig returns defaults for path.
func DefaultExportConfig(path string) ExportConfig {
	return ExportConfig{
		PageSize:   "A4",
		Landscape:  true,
		Timeout:    60 * time.Second,
		OutputPath: path,
	}
}

// DetectPDFEngine checks which PDF engine is available on the system.
func DetectPDFEngine() PDFEngine {
	if _, err := exec.LookPath("wkhtmltopdf"); err == nil {
		return EngineWKHTML
	}
	for _, name := range chromiumBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return EngineChromium
		}
	}
	return EngineNone
}

// Export writes html to cfg.OutputPath and returns the path actually
// written. A ".pdf" path is converted with the first available engine; when
// none is installed the HTML is written next to it with an ".html" extension.
func Export(ctx context.Context, html string, cfg ExportConfig) (string, error) {
	if cfg.OutputPath == "" {
		return "", fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(cfg.OutputPath), ".pdf") {
		return cfg.OutputPath, writeHTML(html, cfg.OutputPath)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PageSize == "" {
		cfg.PageSize = "A4"
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	engine := cfg.Engine
	if engine == "" {
		engine = DetectPDFEngine()
	}

	switch engine {
	case EngineWKHTML:
		return cfg.OutputPath, convertWithWKHTML(ctx, html, cfg)
	case EngineChromium:
		return cfg.OutputPath, convertWithChromium(ctx, html, cfg)
	case EngineNone:
		fallback := strings.TrimSuffix(cfg.OutputPath, filepath.Ext(cfg.OutputPath)) + ".html"
		return fallback, writeHTML(html, fallback)
	default:
		return "", fmt.Errorf("unsupported PDF engine: %s", engine)
	}
}

func convertWithWKHTML(ctx context.Context, html string, cfg ExportConfig) error {
	tmpFile, err := writeTempHTML(html)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	orientation := "Portrait"
	if cfg.Landscape {
		orientation = "Landscape"
	}
	args := []string{
		"--page-size", cfg.PageSize,
		"--orientation", orientation,
		"--encoding", "UTF-8",
		"--enable-local-file-access",
		"--quiet",
		tmpFile,
		cfg.OutputPath,
	}

	cmd := exec.CommandContext(ctx, "wkhtmltopdf", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wkhtmltopdf failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func convertWithChromium(ctx context.Context, html string, cfg ExportConfig) error {
	tmpFile, err := writeTempHTML(html)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	var chromiumBin string
	for _, name := range chromiumBinaries {
		if path, err := exec.LookPath(name); err == nil {
			chromiumBin = path
			break
		}
	}
	if chromiumBin == "" {
		return fmt.Errorf("chromium not found in PATH")
	}

	absOutput, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}

	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--print-to-pdf=" + absOutput,
		"--print-to-pdf-no-header",
	}
	if cfg.Landscape {
		args = append(args, "--landscape")
	}
	args = append(args, "file://"+tmpFile)

	cmd := exec.CommandContext(ctx, chromiumBin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("chromium PDF export failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func writeTempHTML(html string) (string, error) {
	f, err := os.CreateTemp("", "signalroi-dashboard-*.html")
	if err != nil {
		return "", fmt.Errorf("creating temp HTML: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(html); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temp HTML: %w", err)
	}
	return f.Name(), nil
}

func writeHTML(html, path string) error {
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing HTML: %w", err)
	}
	return nil
}
