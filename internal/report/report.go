// Package report renders the CEO's Snapshot dashboard for one set of metrics,
// as HTML for the browser and as plain text for the terminal. Every figure is
// formatted with the same helpers the advisor prompts use.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/pkg/utils"
)

// Theme selects the dashboard palette.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps free text to a Theme, defaulting to light.
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatPDF  ReportFormat = "pdf"
	FormatText ReportFormat = "text"
)

// Options controls one rendering. The zero value renders a light dashboard
// without charts or commentary.
type Options struct {
	Theme       Theme
	Title       string
	Key         string    // snapshot key shown in the header, optional
	Commentary  string    // advisor markdown, optional
	Charts      bool      // embed SVG waterfalls and the margin gauge
	GeneratedAt time.Time // defaults to now in IST
}

// ════════════════════════════════════════════════════════════════════
// Dashboard model, flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// Dashboard is the template model.
type Dashboard struct {
	Title       string
	Subtitle    string
	Key         string
	GeneratedAt string
	Theme       Theme
	ToggleTheme Theme
	Sections    []Section
	Commentary  template.HTML
	Plain       string // commentary as plain text
}

// Section is one column of the dashboard.
type Section struct {
	Title string
	Sub   string
	Cards []Card
}

// Card is one metric with its receipt and explanation.
type Card struct {
	Key     string
	Title   string
	Value   string
	Sub     string
	Note    string
	Tone    string // CSS tone: neutral, blue, green, red, indigo, purple, orange
	Rows    []Row
	Insight string
	GoodIf  string
	Chart   template.HTML
}

// Row is one formatted receipt line.
type Row struct {
	Label    string
	Value    string
	Base     bool
	Negative bool
}

// Build flattens metrics into the dashboard model.
func Build(m metrics.Metrics, opts Options) (*Dashboard, error) {
	theme := opts.Theme
	if theme == "" {
		theme = ThemeLight
	}
	at := opts.GeneratedAt
	if at.IsZero() {
		at = utils.NowIST()
	}

	d := &Dashboard{
		Title:       opts.Title,
		Subtitle:    "For decision makers in e-commerce",
		Key:         opts.Key,
		GeneratedAt: utils.FormatDateTimeIST(at),
		Theme:       theme,
		ToggleTheme: theme.Toggle(),
	}
	if d.Title == "" {
		d.Title = "CEO's Snapshot"
	}

	if strings.TrimSpace(opts.Commentary) != "" {
		h, err := RenderMarkdown(opts.Commentary)
		if err != nil {
			return nil, err
		}
		plain, err := PlainText(opts.Commentary)
		if err != nil {
			return nil, err
		}
		d.Commentary = h
		d.Plain = plain
	}

	chartCfg := ChartConfigFor(theme)
	chart := func(lines []metrics.Line) template.HTML {
		if !opts.Charts {
			return ""
		}
		return template.HTML(WaterfallChart(lines, chartCfg))
	}

	ebitdaTone, ebitdaSub := "red", "Loss Making"
	if m.EBITDA > 0 {
		ebitdaTone, ebitdaSub = "green", "Profitable"
	}

	cm := card("cmDollars", utils.FormatCurrency(m.CMDollars), "blue", m.Breakdowns.CM)
	cm.Sub = utils.FormatMarginPct(m.CMPercent) + " Margin"
	cm.Chart = chart(m.Breakdowns.CM)
	if opts.Charts {
		cm.Chart += template.HTML(MarginGauge(m.CMPercent, "Contribution Margin", 200, chartCfg))
	}

	netRevenue := card("netRevenue", utils.FormatCurrency(m.NetRevenue), "neutral", m.Breakdowns.NetRevenue)
	netRevenue.Chart = chart(m.Breakdowns.NetRevenue)

	ebitda := card("ebitda", utils.FormatCurrency(m.EBITDA), ebitdaTone, m.Breakdowns.EBITDA)
	ebitda.Sub = ebitdaSub
	ebitda.Chart = chart(m.Breakdowns.EBITDA)

	cpo := card("costPerOrder", utils.FormatCurrency(m.CostPerOrder), "indigo", m.Breakdowns.CostPerOrder)
	cpo.Sub = "All Orders (Blended)"

	safe := card("safeMaxCpa", utils.FormatCurrency(m.SafeMaxCPA), "purple", m.Breakdowns.SafeCPA)
	safe.Sub = "Max Bid Limit"
	safe.Chart = chart(m.Breakdowns.SafeCPA)

	burn := card("netBurn", utils.FormatCurrency(m.NetBurn), "orange", m.Breakdowns.Burn)
	burn.Sub = "Includes Inventory Buys"
	burn.Note = runwayNote(m.NetBurn, m.RunwayMonths)
	burn.Chart = chart(m.Breakdowns.Burn)

	d.Sections = []Section{
		{
			Title: "1. Are we Profitable?",
			Sub:   "Financial Health & Margins",
			Cards: []Card{netRevenue, cm, ebitda},
		},
		{
			Title: "2. Efficiency",
			Sub:   "Team Performance & Ad Spend",
			Cards: []Card{
				card("mer", utils.FormatRatio(m.MER), "neutral", m.Breakdowns.MER),
				card("blendedCac", utils.FormatCurrency(m.BlendedCAC), "neutral", m.Breakdowns.BlendedCAC),
				cpo,
			},
		},
		{
			Title: "3. Scaling Logic",
			Sub:   "Budget Limits & Cash Traps",
			Cards: []Card{safe, burn},
		},
	}
	return d, nil
}

func card(key, value, tone string, lines []metrics.Line) Card {
	def := definition(key)
	rows := make([]Row, len(lines))
	for i, l := range lines {
		rows[i] = formatLine(l)
	}
	return Card{
		Key:     key,
		Title:   def.Title,
		Value:   value,
		Tone:    tone,
		Rows:    rows,
		Insight: def.Insight,
		GoodIf:  def.GoodIf,
	}
}

func formatLine(l metrics.Line) Row {
	r := Row{Label: l.Label, Negative: l.Value < 0}
	switch l.Kind {
	case metrics.KindBase:
		r.Base = true
		r.Value = utils.FormatCurrency(l.Value)
	case metrics.KindAdd, metrics.KindSub:
		r.Value = utils.FormatCurrency(l.Value)
	case metrics.KindSubText:
		r.Value = strconv.FormatFloat(l.Value, 'f', -1, 64)
	default:
		r.Value = fmt.Sprintf("%v (%s)", l.Value, l.Kind)
	}
	return r
}

func runwayNote(burn, months float64) string {
	switch {
	case burn <= 0:
		return "Not burning cash"
	case months <= 0:
		return "Add cash on hand to see runway"
	}
	return utils.FormatFixed(months, 1) + " months of runway"
}

// ════════════════════════════════════════════════════════════════════
// Renderers
// ════════════════════════════════════════════════════════════════════

var dashboardTmpl = template.Must(template.New("dashboard").Parse(DashboardTemplate))

// GenerateHTML renders the dashboard as a standalone HTML page.
func GenerateHTML(m metrics.Metrics, opts Options) (string, error) {
	d, err := Build(m, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders the dashboard for a terminal.
func GenerateText(m metrics.Metrics, opts Options) (string, error) {
	d, err := Build(m, opts)
	if err != nil {
		return "", err
	}
	return renderText(d), nil
}

func renderText(d *Dashboard) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  %s\n", d.Subtitle))
	if d.Key != "" {
		sb.WriteString(fmt.Sprintf("  Snapshot: %s | Generated: %s\n", d.Key, d.GeneratedAt))
	} else {
		sb.WriteString(fmt.Sprintf("  Generated: %s\n", d.GeneratedAt))
	}
	sb.WriteString(line + "\n")

	for _, sec := range d.Sections {
		sb.WriteString(fmt.Sprintf("\n  ■ %s\n", strings.ToUpper(sec.Title)))
		sb.WriteString(fmt.Sprintf("    %s\n", sec.Sub))
		sb.WriteString(thinLine + "\n")
		for _, c := range sec.Cards {
			sb.WriteString(fmt.Sprintf("  %-28s %20s\n", c.Title, c.Value))
			if c.Sub != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", c.Sub))
			}
			if c.Note != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", c.Note))
			}
			for _, r := range c.Rows {
				label := "      " + r.Label
				if r.Base {
					label = "    " + r.Label
				}
				sb.WriteString(fmt.Sprintf("%-34s %20s\n", label, r.Value))
			}
			sb.WriteString("\n")
		}
	}

	if d.Plain != "" {
		sb.WriteString(thinLine + "\n")
		sb.WriteString("  ★ ADVISOR COMMENTARY\n\n")
		for _, l := range strings.Split(d.Plain, "\n") {
			sb.WriteString("  " + l + "\n")
		}
	}

	sb.WriteString(line + "\n")
	return sb.String()
}
