package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/internal/report"
	"github.com/signalroi/signalroi/pkg/models"
)

// --- Compute Command ---

var computeCmd = &cobra.Command{
	Use:   "compute [files...]",
	Short: "Compute metrics for input files or a stored snapshot",
	Long: `Compute the CEO's Snapshot for one or more input files (JSON or YAML).
Files are processed concurrently and printed in argument order. With no
files the stored snapshot under --key is used.`,
	Example: `  signalroi compute
  signalroi compute --key brand-b --format json
  signalroi compute jan.json feb.yaml mar.json --workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported format %q (text, json, yaml)", format)
		}

		if len(args) == 0 {
			key := snapshotKey(cmd)
			m, err := loadMetrics(ctx, key)
			if err != nil {
				return err
			}
			return writeResult(os.Stdout, format, result{Name: key, Metrics: m})
		}

		workers, _ := cmd.Flags().GetInt("workers")
		quiet, _ := cmd.Flags().GetBool("quiet")
		var bar *progressbar.ProgressBar
		if !quiet && len(args) > 1 {
			bar = progressbar.NewOptions(len(args),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("computing"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		results, err := computeFiles(ctx, args, workers, func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		for i, r := range results {
			if i > 0 && format == "text" {
				fmt.Println()
			}
			if err := writeResult(os.Stdout, format, r); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	computeCmd.Flags().String("key", "", "snapshot key when no files are given (default: store.default_key)")
	computeCmd.Flags().String("format", "text", "output format: text, json or yaml")
	computeCmd.Flags().Int("workers", runtime.NumCPU(), "files computed in parallel")
	computeCmd.Flags().BoolP("quiet", "q", false, "no progress bar")
}

// result is one computed snapshot as printed by compute.
type result struct {
	Name    string          `json:"name"    yaml:"name"`
	Metrics metrics.Metrics `json:"metrics" yaml:"metrics"`
}

// computeFiles reads and computes every path with at most workers in flight.
// Results keep the order of paths. done is called after each file.
func computeFiles(ctx context.Context, paths []string, workers int, done func()) ([]result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := readInputFile(path)
			if err != nil {
				return err
			}
			results[i] = result{Name: path, Metrics: metrics.Compute(in)}
			if done != nil {
				done()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// readInputFile decodes an input record. .yaml and .yml files are read as
// YAML, everything else as JSON. "-" reads JSON from stdin.
func readInputFile(path string) (models.Input, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Input{}, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLInput(data, path)
	default:
		in, err := models.ParseInput(data)
		if err != nil {
			return models.Input{}, fmt.Errorf("%s: inputs must be a JSON object", path)
		}
		return in, nil
	}
}

// parseYAMLInput converts a YAML mapping to JSON so the lenient decoder
// applies the same coercion rules to both formats.
func parseYAMLInput(data []byte, path string) (models.Input, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return models.Input{}, fmt.Errorf("%s: %w", path, err)
	}
	if raw == nil {
		return models.Input{}, nil
	}
	for k, v := range raw {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			delete(raw, k)
		}
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return models.Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return models.ParseInput(js)
}

func writeResult(w io.Writer, format string, r result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		out, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(append([]byte("---\n"), out...)); err != nil {
			return err
		}
		return nil
	default:
		text, err := report.GenerateText(r.Metrics, report.Options{Key: r.Name})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, text)
		return err
	}
}

// --- Inputs Command ---

var inputsCmd = &cobra.Command{
	Use:   "inputs",
	Short: "Manage stored input snapshots",
}

var inputsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored inputs for a key as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		in, err := st.Load(cmd.Context(), snapshotKey(cmd))
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(in)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var inputsSetCmd = &cobra.Command{
	Use:   "set [file | field=value...]",
	Short: "Save inputs for a key from a file or field=value pairs",
	Long: `Save inputs for a key. A single argument without "=" is read as an input
file (JSON or YAML) and replaces the record. field=value pairs update the
stored record in place, e.g. ad_spend_total=1500000.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, key := cmd.Context(), snapshotKey(cmd)
		var in models.Input
		if len(args) == 1 && !strings.Contains(args[0], "=") {
			if in, err = readInputFile(args[0]); err != nil {
				return err
			}
		} else {
			if in, err = st.Load(ctx, key); err != nil {
				return err
			}
			if err := applyAssignments(&in, args); err != nil {
				return err
			}
		}

		if err := st.Save(ctx, key, in); err != nil {
			return err
		}
		fmt.Printf("✅ Saved %s\n", key)
		return nil
	},
}

var inputsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the stored inputs so the default scenario is used",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		key := snapshotKey(cmd)
		if err := st.Reset(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("↺ Reset %s to the default scenario\n", key)
		return nil
	},
}

var inputsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshot keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No saved snapshots; the default scenario is in use.")
			return nil
		}
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key < snaps[j].Key })
		for _, s := range snaps {
			fmt.Printf("  %-30s %s\n", s.Key, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{inputsGetCmd, inputsSetCmd, inputsResetCmd} {
		c.Flags().String("key", "", "snapshot key (default: store.default_key)")
	}
	inputsCmd.AddCommand(inputsGetCmd, inputsSetCmd, inputsResetCmd, inputsListCmd)
}

// applyAssignments parses field=value pairs onto in.
func applyAssignments(in *models.Input, pairs []string) error {
	for _, p := range pairs {
		field, raw, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", p)
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %q is not a number", field, raw)
		}
		if err := in.Set(strings.TrimSpace(field), v); err != nil {
			return fmt.Errorf("%w; known fields: %s", err, strings.Join(models.Keys(), ", "))
		}
	}
	return nil
}
