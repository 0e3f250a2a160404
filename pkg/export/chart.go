package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
)

// ChartOptions controls SaveChart.
type ChartOptions struct {
	Path    string // Output path; format inferred from the extension when Format is empty
	Format  string // "svg" or "png"
	Subject string // Subject whose partitions are charted
	Metric  model.Metric
}

var (
	chartBackground = color.RGBA{R: 0x16, G: 0x1b, B: 0x22, A: 0xff}
	chartAxis       = color.RGBA{R: 0x4b, G: 0x55, B: 0x63, A: 0xff}
	chartText       = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	chartSubtle     = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	chartPositive   = color.RGBA{R: 0x4a, G: 0xde, B: 0x80, A: 0xff}
	chartNegative   = color.RGBA{R: 0xf8, G: 0x71, B: 0x71, A: 0xff}
	chartNeutral    = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

const (
	chartWidth  = 720
	chartHeader = 64
	chartRowH   = 28
	chartLabelW = 180
	chartPad    = 24
)

// ChartBar is one partition in a chart.
type ChartBar struct {
	Label string
	Delta float64
}

type chartLayout struct {
	Title    string
	Subtitle string
	Bars     []ChartBar
	Width    int
	Height   int
	Scale    float64 // Largest |delta|, at least 1
}

// ChartBars merges a subject's best and worst partitions for m into one
// list, best first, without duplicates.
func ChartBars(r *pipeline.Report, subject string, m model.Metric) []ChartBar {
	rp := r.Ranked[subject]
	top, bottom := rp.TopWinRate, rp.BottomWinRate
	if m == model.MetricPickRate {
		top, bottom = rp.TopPickRate, rp.BottomPickRate
	}
	seen := make(map[string]bool)
	var bars []ChartBar
	add := func(rk analysis.Ranking) {
		for _, e := range rk {
			if seen[e.PartitionID] {
				continue
			}
			seen[e.PartitionID] = true
			label := e.DisplayName
			if label == "" {
				label = e.PartitionID
			}
			bars = append(bars, ChartBar{Label: label, Delta: e.Delta})
		}
	}
	add(top)
	add(bottom)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Delta > bars[j].Delta })
	return bars
}

// SaveChart renders a diverging bar chart of the subject's best and worst
// partitions as SVG or PNG.
func SaveChart(r *pipeline.Report, opts ChartOptions) error {
	defer metrics.Timer(metrics.ExportWrite)()

	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Metric == "" {
		opts.Metric = model.MetricWinRate
	}
	format, err := chartFormat(opts)
	if err != nil {
		return err
	}
	bars := ChartBars(r, opts.Subject, opts.Metric)
	if len(bars) == 0 {
		return fmt.Errorf("no ranked partitions for %q", opts.Subject)
	}
	layout := newChartLayout(
		fmt.Sprintf("%s: %s by map", r.Name(opts.Subject), opts.Metric.Label()),
		fmt.Sprintf("delta vs %s, %d maps", r.Baseline, len(bars)),
		bars,
	)

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if format == "png" {
		return renderChartPNG(layout).SavePNG(opts.Path)
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := renderChartSVG(f, layout); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func chartFormat(opts ChartOptions) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(opts.Path), "."))
	}
	switch format {
	case "svg", "png":
		return format, nil
	case "":
		return "", fmt.Errorf("cannot infer chart format from %q (want .svg or .png)", opts.Path)
	default:
		return "", fmt.Errorf("unsupported chart format %q (want svg or png)", format)
	}
}

func newChartLayout(title, subtitle string, bars []ChartBar) chartLayout {
	scale := 1.0
	for _, b := range bars {
		scale = math.Max(scale, math.Abs(b.Delta))
	}
	return chartLayout{
		Title:    title,
		Subtitle: subtitle,
		Bars:     bars,
		Width:    chartWidth,
		Height:   chartHeader + len(bars)*chartRowH + chartPad,
		Scale:    scale,
	}
}

// geometry returns the x of the zero axis and the pixels per delta unit.
func (l chartLayout) geometry() (axis, perUnit float64) {
	plotLeft := float64(chartLabelW + chartPad)
	plotW := float64(l.Width) - plotLeft - 2*chartPad - 48 // room for value labels
	return plotLeft + plotW/2, (plotW / 2) / l.Scale
}

func barColor(d float64) color.RGBA {
	switch analysis.Classify(d) {
	case analysis.BadgePositive:
		return chartPositive
	case analysis.BadgeNegative:
		return chartNegative
	default:
		return chartNeutral
	}
}

func renderChartPNG(l chartLayout) *gg.Context {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(chartBackground)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(chartText)
	dc.DrawStringAnchored(l.Title, chartPad, 24, 0, 0.5)
	dc.SetColor(chartSubtle)
	dc.DrawStringAnchored(l.Subtitle, chartPad, 44, 0, 0.5)

	axis, perUnit := l.geometry()
	for i, b := range l.Bars {
		y := float64(chartHeader + i*chartRowH)
		dc.SetColor(chartText)
		dc.DrawStringAnchored(clip(b.Label, 24), chartPad, y+chartRowH/2, 0, 0.5)

		w := b.Delta * perUnit
		x := axis
		if w < 0 {
			x, w = axis+w, -w
		}
		dc.SetColor(barColor(b.Delta))
		dc.DrawRectangle(x, y+5, math.Max(w, 1), chartRowH-10)
		dc.Fill()

		dc.SetColor(chartSubtle)
		label := analysis.FormatDelta(b.Delta)
		if b.Delta >= 0 {
			dc.DrawStringAnchored(label, x+w+6, y+chartRowH/2, 0, 0.5)
		} else {
			dc.DrawStringAnchored(label, x-6, y+chartRowH/2, 1, 0.5)
		}
	}

	dc.SetColor(chartAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(axis, chartHeader-4, axis, float64(l.Height-chartPad)+4)
	dc.Stroke()
	return dc
}

func renderChartSVG(w io.Writer, l chartLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, "fill:"+hex(chartBackground))
	canvas.Text(chartPad, 28, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", hex(chartText)))
	canvas.Text(chartPad, 48, l.Subtitle, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", hex(chartSubtle)))

	axis, perUnit := l.geometry()
	for i, b := range l.Bars {
		y := chartHeader + i*chartRowH
		canvas.Text(chartPad, y+chartRowH/2+4, clip(b.Label, 24), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", hex(chartText)))

		bw := b.Delta * perUnit
		x := axis
		if bw < 0 {
			x, bw = axis+bw, -bw
		}
		canvas.Rect(int(x), y+5, int(math.Max(bw, 1)), chartRowH-10, "fill:"+hex(barColor(b.Delta)))

		label := analysis.FormatDelta(b.Delta)
		style := fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", hex(chartSubtle))
		if b.Delta >= 0 {
			canvas.Text(int(x+bw)+6, y+chartRowH/2+4, label, style)
		} else {
			canvas.Text(int(x)-6, y+chartRowH/2+4, label, style+";text-anchor:end")
		}
	}
	canvas.Line(int(axis), chartHeader-4, int(axis), l.Height-chartPad+4, fmt.Sprintf("stroke:%s;stroke-width:1", hex(chartAxis)))
	canvas.End()
	return nil
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
