// SignalROI: D2C unit economics for founders.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalroi/signalroi/api"
	"github.com/signalroi/signalroi/internal/advisor"
	"github.com/signalroi/signalroi/internal/config"
	"github.com/signalroi/signalroi/internal/logger"
	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/internal/report"
	"github.com/signalroi/signalroi/internal/store"
	"github.com/signalroi/signalroi/internal/waitlist"
	"github.com/signalroi/signalroi/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "signalroi",
	Short: "SignalROI: profitability, efficiency and scaling metrics for D2C brands",
	Long: `SignalROI turns one month of raw D2C figures (sales, returns, logistics,
ad spend, overhead, cash) into the CEO's Snapshot: net revenue, contribution
margin, EBITDA, MER, blended CAC, the safe maximum CPA and cash runway, each
with the receipt that produced it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		log = logger.New(logger.Config{Level: level, Format: cfg.Logging.Format})
		logger.SetGlobalLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(inputsCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("opening input store: %w", err)
	}
	return st, nil
}

// snapshotKey returns the --key flag or the configured default key.
func snapshotKey(cmd *cobra.Command) string {
	if k, _ := cmd.Flags().GetString("key"); k != "" {
		return k
	}
	if cfg.Store.DefaultKey != "" {
		return cfg.Store.DefaultKey
	}
	return store.DefaultKey
}

// loadMetrics loads the stored inputs under key and computes them.
func loadMetrics(ctx context.Context, key string) (metrics.Metrics, error) {
	st, err := openStore()
	if err != nil {
		return metrics.Metrics{}, err
	}
	defer st.Close()

	in, err := st.Load(ctx, key)
	if err != nil {
		return metrics.Metrics{}, fmt.Errorf("loading %q: %w", key, err)
	}
	return metrics.Compute(in), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SignalROI %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Insights Command ---

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Ask the advisor for a structured analysis of a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		m, err := loadMetrics(ctx, snapshotKey(cmd))
		if err != nil {
			return err
		}
		svc := advisor.New(ctx, cfg.Advisor, log)
		text, err := svc.Insights(ctx, m)
		if err != nil && !errors.Is(err, advisor.ErrTruncated) {
			return err
		}

		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			if text, err = report.PlainText(text); err != nil {
				return err
			}
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	insightsCmd.Flags().String("key", "", "snapshot key (default: store.default_key)")
	insightsCmd.Flags().Bool("plain", false, "strip markdown formatting")
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the advisor a question about a snapshot",
	Example: `  signalroi ask "Can I afford to double ad spend?"
  signalroi ask --key brand-b "Why is my CAC so high?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		m, err := loadMetrics(ctx, snapshotKey(cmd))
		if err != nil {
			return err
		}
		svc := advisor.New(ctx, cfg.Advisor, log)
		reply, err := svc.Chat(ctx, m, []advisor.ChatMessage{
			{Role: "user", Content: strings.Join(args, " ")},
		})
		if err != nil && !errors.Is(err, advisor.ErrTruncated) {
			return err
		}
		fmt.Println(reply)
		if err != nil {
			fmt.Fprintln(os.Stderr, "(reply was cut short)")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("key", "", "snapshot key (default: store.default_key)")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the dashboard as HTML or PDF",
	Long: `Render the CEO's Snapshot for a stored key and write it to --out.
A .pdf path is converted with wkhtmltopdf or headless Chromium when one is
installed; otherwise the HTML is written next to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		key := snapshotKey(cmd)
		m, err := loadMetrics(ctx, key)
		if err != nil {
			return err
		}

		theme, _ := cmd.Flags().GetString("theme")
		if theme == "" {
			theme = cfg.Display.Theme
		}
		opts := report.Options{Theme: report.ParseTheme(theme), Key: key, Charts: true}

		if withInsights, _ := cmd.Flags().GetBool("insights"); withInsights {
			svc := advisor.New(ctx, cfg.Advisor, log)
			text, err := svc.Insights(ctx, m)
			if err != nil && !errors.Is(err, advisor.ErrTruncated) {
				log.Warn().Err(err).Msg("exporting without advisor commentary")
			} else {
				opts.Commentary = text
			}
		}

		html, err := report.GenerateHTML(m, opts)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		written, err := report.Export(ctx, html, report.DefaultExportConfig(out))
		if err != nil {
			return err
		}
		fmt.Printf("📄 Dashboard written to %s\n", written)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("key", "", "snapshot key (default: store.default_key)")
	reportCmd.Flags().String("out", "signalroi-dashboard.html", "output path (.html or .pdf)")
	reportCmd.Flags().String("theme", "", "light or dark (default: display.theme)")
	reportCmd.Flags().Bool("insights", false, "include advisor commentary")
}

// --- Subscribe Command ---

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [email]",
	Short: "Add an email address to the waitlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		list, _ := cmd.Flags().GetString("list")
		client := waitlist.NewClient(cfg.Waitlist, log)
		sub, err := client.Subscribe(ctx, args[0], waitlist.ParseListType(list))
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s (%s, id %s)\n", sub.Message, sub.List.Tag(), sub.ID)
		return nil
	},
}

func init() {
	subscribeCmd.Flags().String("list", "beta", "waitlist: beta or automation")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		srv := api.NewServer(cfg, api.Deps{
			Store:    st,
			Advisor:  advisor.New(ctx, cfg.Advisor, log),
			Waitlist: waitlist.NewClient(cfg.Waitlist, log),
			Logger:   log,
			Version:  version,
		})

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.API.Addr()
		}
		fmt.Printf("🌐 SignalROI dashboard on http://%s/dashboard\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  SignalROI System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Period:        %s\n", utils.PeriodLabel(utils.NowIST()))
		fmt.Printf("  Time (IST):    %s\n", utils.FormatDateTimeIST(utils.NowIST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Advisor:       %s (model: %s)\n", cfg.Advisor.Backend, cfg.Advisor.Insights.Model)
		fmt.Printf("    Store:         %s %s\n", cfg.Store.Driver, cfg.Store.Path)
		fmt.Printf("    Default key:   %s\n", cfg.Store.DefaultKey)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Printf("    Theme:         %s\n", report.ParseTheme(cfg.Display.Theme))
		fmt.Printf("    PDF engine:    %s\n", report.DetectPDFEngine())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
