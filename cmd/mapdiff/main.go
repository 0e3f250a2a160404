// Command mapdiff compares hero stats on one map against the all-maps
// baseline and ranks every hero's best and worst maps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/mapdiff/pkg/batch"
	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/coordinator"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
	"github.com/vanderheijden86/mapdiff/pkg/ui"
	"github.com/vanderheijden86/mapdiff/pkg/version"
	"github.com/vanderheijden86/mapdiff/pkg/watcher"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code. Deferred
// work (stats dump, CPU profile) completes before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mapdiff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	urlFlag := fs.String("url", "", "Stats page location (overrides config and MAPDIFF_URL)")
	configPath := fs.String("config", "", "Config file (default: ~/.config/mapdiff/config.yaml)")
	jsonFlag := fs.Bool("json", false, "Print the report as JSON and exit")
	markdownFlag := fs.Bool("markdown", false, "Print the report as markdown and exit")
	sortFlag := fs.String("sort", "", "Row order for -markdown: winrate, pickrate, winrate-asc, pickrate-asc")
	sqlitePath := fs.String("export-sqlite", "", "Append the report to a SQLite database and exit")
	chartPath := fs.String("chart", "", "Write a per-map chart (.svg or .png) and exit")
	chartSubject := fs.String("chart-subject", "", "Hero to chart (default: first ranked hero)")
	chartMetric := fs.String("chart-metric", "winrate", "Metric to chart: winrate or pickrate")
	tuiFlag := fs.Bool("tui", false, "Force the interactive view even when stdout is not a terminal")
	settingsFlag := fs.Bool("settings", false, "Edit feature settings and exit")
	locationFile := fs.String("location-file", "", "Follow the host location written to this file (TUI only)")
	statsFlag := fs.Bool("stats", false, "Print timing and cache statistics to stderr on exit")
	cpuProfile := fs.String("cpu-profile", "", "Write CPU profile to file")
	help := fs.Bool("help", false, "Show help")
	versionFlag := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Fprintln(stdout, "Usage: mapdiff [options]")
		fmt.Fprintln(stdout, "\nCompare per-map hero stats against the all-maps baseline.")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}
	if *versionFlag {
		fmt.Fprintf(stdout, "mapdiff %s\n", version.String())
		return 0
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	if *settingsFlag {
		if _, err := ui.EditSettings(cfg, path); err != nil {
			if errors.Is(err, ui.ErrSettingsCancelled) {
				fmt.Fprintln(stdout, "Settings unchanged")
				return 0
			}
			fmt.Fprintf(stderr, "Error editing settings: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Saved settings to %s\n", path)
		return 0
	}

	if *urlFlag != "" {
		cfg.Source.URL = *urlFlag
	}
	if cfg.Source.URL == "" {
		fmt.Fprintln(stderr, "Error: no location. Pass -url, set MAPDIFF_URL or source.url in the config.")
		return 2
	}
	fc, err := model.NewFilterContext(cfg.Source.URL, cfg.Source.PartitionParam)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	sort, err := parseSort(*sortFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	metric, err := parseMetric(*chartMetric)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	out := outputs{
		JSON:         *jsonFlag,
		Markdown:     *markdownFlag,
		Sort:         sort,
		SQLitePath:   *sqlitePath,
		ChartPath:    *chartPath,
		ChartSubject: *chartSubject,
		ChartMetric:  metric,
	}

	s := newStack(cfg)
	if *statsFlag {
		defer func() {
			if err := writeStats(stderr, s.cache); err != nil {
				fmt.Fprintf(stderr, "Error writing stats: %v\n", err)
			}
		}()
	}

	interactive := *tuiFlag || (!out.any() && isTerminal(stdout))
	if !interactive {
		if !out.any() {
			out.Markdown = true
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		r, err := runOnce(ctx, cfg, fc, s, stdout, out)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if r.Err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", r.Err)
			if fatal(r) {
				return 1
			}
		}
		return 0
	}

	if err := runTUI(cfg, path, fc, s, *locationFile); err != nil {
		fmt.Fprintf(stderr, "Error running mapdiff: %v\n", err)
		return 1
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runTUI(cfg config.Config, configPath string, fc model.FilterContext, s stack, locationFile string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var p *tea.Program
	coord := coordinator.New(ctx, s.pipeline, fc, cfg.Settings(),
		coordinator.WithWindows(cfg.Debounce),
		coordinator.WithPublish(func(r *pipeline.Report) { p.Send(ui.ReportMsg{Report: r}) }),
		coordinator.WithProgress(func(gen uint64, pr batch.Progress) {
			p.Send(ui.ProgressMsg{Generation: gen, Progress: pr})
		}),
	)
	defer coord.Close()

	p = tea.NewProgram(
		ui.NewModel(coord),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	if _, err := os.Stat(configPath); err == nil {
		w, err := watcher.WatchSettings(ctx, configPath, cfg.Debounce.Settings, coord.OnSettingsChanged, func(err error) {
			debug.Log("settings: %v", err)
		})
		if err != nil {
			debug.Log("settings watch disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}
	if locationFile != "" {
		go coord.PollLocation(ctx, cfg.Debounce.PollInterval, readLocation(locationFile))
	}

	coord.RunNow()

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
