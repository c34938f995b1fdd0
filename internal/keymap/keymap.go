// Package keymap resolves dashboard keyboard shortcuts.
package keymap

import (
	"strings"
	"time"
)

type Kind string

const (
	KindReload   Kind = "reload"
	KindHelp     Kind = "help"
	KindNavigate Kind = "navigate"
)

// HelpTimeout is how long the help notice stays up.
const HelpTimeout = 10 * time.Second

const HelpText = "Shortcuts: Ctrl+R (reload), Ctrl+1..5 (navigate), Ctrl+/ (help)"

// Combo is a key press as reported by the browser (KeyboardEvent.key plus modifiers).
type Combo struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
}

type Action struct {
	Kind    Kind          `json:"kind"`
	Target  string        `json:"target,omitempty"`
	Message string        `json:"message,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Binding describes one shortcut for help listings.
type Binding struct {
	Combo  string `json:"combo"`
	Action Action `json:"action"`
}

var navTargets = map[string]string{
	"1": "/",
	"2": "/query",
	"3": "/alerts",
	"4": "/export",
	"5": "/maintenance",
}

// Resolve maps a key press to an action.
func Resolve(c Combo) (Action, bool) {
	key := c.Key
	if (c.Ctrl && strings.EqualFold(key, "r")) || key == "F5" {
		return Action{Kind: KindReload}, true
	}
	if c.Ctrl && key == "/" {
		return Action{Kind: KindHelp, Message: HelpText, Timeout: HelpTimeout}, true
	}
	if c.Ctrl && !c.Shift && !c.Alt {
		if target, ok := navTargets[key]; ok {
			return Action{Kind: KindNavigate, Target: target}, true
		}
	}
	return Action{}, false
}

// Bindings lists every shortcut in display order.
func Bindings() []Binding {
	out := []Binding{
		{Combo: "Ctrl+R", Action: Action{Kind: KindReload}},
		{Combo: "F5", Action: Action{Kind: KindReload}},
		{Combo: "Ctrl+/", Action: Action{Kind: KindHelp, Message: HelpText, Timeout: HelpTimeout}},
	}
	for _, k := range []string{"1", "2", "3", "4", "5"} {
		out = append(out, Binding{Combo: "Ctrl+" + k, Action: Action{Kind: KindNavigate, Target: navTargets[k]}})
	}
	return out
}
