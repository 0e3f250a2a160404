package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	SortWin  key.Binding
	SortPick key.Binding
	Refresh  key.Binding
	PrevPart key.Binding
	NextPart key.Binding
	Baseline key.Binding
	OpenBest key.Binding
	Panel    key.Binding
	Focus    key.Binding
	Copy     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		SortWin:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "sort win Δ")),
		SortPick: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "sort pick Δ")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		PrevPart: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev map")),
		NextPart: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next map")),
		Baseline: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "all maps")),
		OpenBest: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open best map")),
		Panel:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analysis")),
		Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus panel")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy markdown")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SortWin, k.SortPick, k.PrevPart, k.NextPart, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPart, k.NextPart, k.Baseline, k.OpenBest},
		{k.SortWin, k.SortPick, k.Refresh},
		{k.Panel, k.Focus, k.Copy, k.Help, k.Quit},
	}
}
