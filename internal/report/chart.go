package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Receipt Charts
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width         int    // SVG width in pixels (default: 360)
	Height        int    // set from the row count by WaterfallChart
	RowHeight     int    // height of one waterfall row (default: 26)
	MarginTop     int    // top margin (default: 28)
	MarginRight   int    // right margin, room for value labels (default: 70)
	MarginBottom  int    // bottom margin (default: 10)
	MarginLeft    int    // left margin, room for line labels (default: 150)
	BgColor       string // background color
	GridColor     string // zero line color
	TextColor     string // label color
	BaseColor     string // starting bar
	PositiveColor string // additions
	NegativeColor string // deductions
	TotalColor    string // result bar
	FontSize      int    // label font size (default: 11)
	Title         string // chart title
}

// DefaultChartConfig returns light-theme defaults.
func DefaultChartConfig() ChartConfig {
	return ChartConfigFor(ThemeLight)
}

// ChartConfigFor returns defaults coloured for the given theme.
func ChartConfigFor(theme Theme) ChartConfig {
	cfg := ChartConfig{
		Width:         360,
		RowHeight:     26,
		MarginTop:     28,
		MarginRight:   70,
		MarginBottom:  10,
		MarginLeft:    150,
		BgColor:       "#ffffff",
		GridColor:     "#d1d5db",
		TextColor:     "#374151",
		BaseColor:     "#64748b",
		PositiveColor: "#16a34a",
		NegativeColor: "#dc2626",
		TotalColor:    "#2563eb",
		FontSize:      11,
	}
	if theme == ThemeDark {
		cfg.BgColor = "#111827"
		cfg.GridColor = "#374151"
		cfg.TextColor = "#e5e7eb"
		cfg.BaseColor = "#94a3b8"
		cfg.PositiveColor = "#4ade80"
		cfg.NegativeColor = "#f87171"
		cfg.TotalColor = "#60a5fa"
	}
	return cfg
}

type waterfallStep struct {
	label      string
	start, end float64
	color      string
}

// WaterfallChart draws a receipt as a horizontal waterfall: the base bar,
// one floating bar per addition or deduction, and a final bar for the
// resulting figure. Divisor lines are not drawn.
func WaterfallChart(lines []metrics.Line, cfg ChartConfig) string {
	if cfg.Width == 0 {
		title := cfg.Title
		cfg = DefaultChartConfig()
		cfg.Title = title
	}

	var steps []waterfallStep
	var running float64
	for _, l := range lines {
		switch l.Kind {
		case metrics.KindBase:
			steps = append(steps, waterfallStep{l.Label, 0, l.Value, cfg.BaseColor})
			running = l.Value
		case metrics.KindAdd, metrics.KindSub:
			color := cfg.PositiveColor
			if l.Value < 0 {
				color = cfg.NegativeColor
			}
			steps = append(steps, waterfallStep{l.Label, running, running + l.Value, color})
			running += l.Value
		case metrics.KindSubText:
		}
	}
	if len(steps) == 0 {
		return emptySVG(cfg, "No data")
	}
	steps = append(steps, waterfallStep{"Result", 0, running, cfg.TotalColor})

	lo, hi := 0.0, 0.0
	for _, s := range steps {
		lo = math.Min(lo, math.Min(s.start, s.end))
		hi = math.Max(hi, math.Max(s.start, s.end))
	}
	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		span = 1
	}

	cfg.Height = cfg.MarginTop + cfg.MarginBottom + cfg.RowHeight*len(steps)
	pw := float64(cfg.Width - cfg.MarginLeft - cfg.MarginRight)
	x := func(v float64) float64 { return float64(cfg.MarginLeft) + (v-lo)/span*pw }
	barH := float64(cfg.RowHeight) * 0.65

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	if cfg.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="18" font-size="12" font-weight="bold" fill="%s">%s</text>`,
			cfg.MarginLeft, cfg.TextColor, escapeXML(cfg.Title)))
	}

	zeroX := x(0)
	sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-width="1"/>`,
		zeroX, cfg.MarginTop, zeroX, cfg.Height-cfg.MarginBottom, cfg.GridColor))

	for i, s := range steps {
		y := float64(cfg.MarginTop + i*cfg.RowHeight)
		bx := math.Min(x(s.start), x(s.end))
		bw := math.Abs(x(s.end) - x(s.start))
		if bw < 1 {
			bw = 1
		}
		sb.WriteString(fmt.Sprintf(`<rect class="bar" x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			bx, y, bw, barH, s.color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			cfg.MarginLeft-6, y+barH-4, cfg.FontSize, cfg.TextColor, escapeXML(s.label)))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s">%s</text>`,
			cfg.Width-cfg.MarginRight+6, y+barH-4, cfg.FontSize, cfg.TextColor,
			escapeXML(utils.FormatINRCompact(s.end-s.start))))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Margin Gauge
// ════════════════════════════════════════════════════════════════════

// MarginGauge draws a semicircular gauge for a percentage such as the
// contribution margin. Values are clamped to 0-100 for the dial only; the
// printed figure is the real one.
func MarginGauge(pct float64, label string, width int, cfg ChartConfig) string {
	if width == 0 {
		width = 200
	}
	if cfg.BgColor == "" {
		cfg = DefaultChartConfig()
	}
	height := width/2 + 30

	cx := float64(width) / 2
	cy := float64(width)/2 - 10
	radius := float64(width)/2 - 20

	dial := pct
	if math.IsNaN(dial) || dial < 0 {
		dial = 0
	}
	if dial > 100 {
		dial = 100
	}

	var color string
	switch {
	case pct < 10:
		color = cfg.NegativeColor
	case pct < 25:
		color = "#ea580c"
	case pct < 40:
		color = "#eab308"
	default:
		color = cfg.PositiveColor
	}

	angle := math.Pi - (dial/100)*math.Pi
	needleX := cx + radius*0.85*math.Cos(angle)
	needleY := cy - radius*0.85*math.Sin(angle)
	endX := cx + radius*math.Cos(angle)
	endY := cy - radius*math.Sin(angle)
	largeArc := 0
	if dial > 50 {
		largeArc = 1
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`, width, height, width, height))
	sb.WriteString(fmt.Sprintf(`<rect width="%d" height="%d" fill="%s"/>`, width, height, cfg.BgColor))
	sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, cx+radius, cy, cfg.GridColor))
	if dial > 0 {
		sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
			cx-radius, cy, radius, radius, largeArc, endX, endY, color))
	}
	sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"/>`,
		cx, cy, needleX, needleY, cfg.TextColor))
	sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="5" fill="%s"/>`, cx, cy, cfg.TextColor))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="20" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cx, cy+25, color, utils.FormatMarginPct(pct)))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="11" fill="%s" text-anchor="middle">%s</text>`,
		cx, height-5, cfg.TextColor, escapeXML(label)))
	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 360
	}
	if cfg.Height == 0 {
		cfg.Height = 120
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="%s"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.BgColor, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
