package ui

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/mapdiff/pkg/config"
)

// ErrSettingsCancelled is returned when the user leaves the editor
// without saving.
var ErrSettingsCancelled = errors.New("settings not saved")

// SettingsForm edits the feature flags and batch size of a config. A
// running TUI picks the saved file up through its settings watcher.
type SettingsForm struct {
	base      config.Config
	enabled   []config.Feature
	groupSize string
	save      bool
}

// NewSettingsForm seeds the editor from cfg.
func NewSettingsForm(cfg config.Config) *SettingsForm {
	s := cfg.Settings()
	f := &SettingsForm{
		base:      cfg,
		groupSize: strconv.Itoa(cfg.Batch.GroupSize),
		save:      true,
	}
	for _, feat := range config.Features {
		if s.Enabled(feat) {
			f.enabled = append(f.enabled, feat)
		}
	}
	return f
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Form builds the huh form bound to f.
func (f *SettingsForm) Form() *huh.Form {
	options := make([]huh.Option[config.Feature], len(config.Features))
	for i, feat := range config.Features {
		options[i] = huh.NewOption(feat.Label(), feat).Selected(slices.Contains(f.enabled, feat))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[config.Feature]().
				Title("Features").
				Description("Space toggles, enter confirms").
				Options(options...).
				Value(&f.enabled),
			huh.NewInput().
				Title("Batch size").
				Description("Maps fetched at once").
				Value(&f.groupSize).
				Validate(validateGroupSize),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save settings?").
				Value(&f.save).
				Affirmative("Save").
				Negative("Discard"),
		),
	).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func validateGroupSize(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of at least 1")
	}
	return nil
}

// Result returns the edited config. It fails with ErrSettingsCancelled
// when the user chose not to save.
func (f *SettingsForm) Result() (config.Config, error) {
	if !f.save {
		return f.base, ErrSettingsCancelled
	}
	if err := validateGroupSize(f.groupSize); err != nil {
		return f.base, err
	}

	cfg := f.base
	cfg.Features = make(map[config.Feature]bool, len(config.Features))
	for _, feat := range config.Features {
		if !slices.Contains(f.enabled, feat) {
			cfg.Features[feat] = false
		}
	}
	cfg.Batch.GroupSize, _ = strconv.Atoi(strings.TrimSpace(f.groupSize))
	return cfg, cfg.Validate()
}

// EditSettings runs the editor for cfg and writes the result to path.
func EditSettings(cfg config.Config, path string) (config.Config, error) {
	f := NewSettingsForm(cfg)
	if err := f.Form().Run(); err != nil {
		return cfg, err
	}
	out, err := f.Result()
	if err != nil {
		return cfg, err
	}
	if err := config.SaveTo(out, path); err != nil {
		return cfg, err
	}
	return out, nil
}
