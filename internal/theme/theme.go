// Package theme holds the visual templates a profile can pick from.
//
// A theme is only a palette. Every profile renders through the same HTML
// template; the profile's templateId selects which palette fills in the CSS
// variables.
package theme

import "sort"

// DefaultID is the theme new profiles start with.
const DefaultID = "black_white"

// Theme is one palette.
type Theme struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Text       string `json:"text"`
	Muted      string `json:"muted"`
	Accent     string `json:"accent"`
	ButtonText string `json:"buttonText"`
}

var themes = map[string]Theme{
	"black_white": {
		ID: "black_white", Name: "Black & White",
		Background: "#000000", Surface: "#111111", Text: "#ffffff",
		Muted: "#9ca3af", Accent: "#ffffff", ButtonText: "#000000",
	},
	"neon": {
		ID: "neon", Name: "Neon",
		Background: "#0b0221", Surface: "#1a0b3d", Text: "#f5f3ff",
		Muted: "#a78bfa", Accent: "#ec4899", ButtonText: "#ffffff",
	},
	"pastel": {
		ID: "pastel", Name: "Pastel",
		Background: "#fdf2f8", Surface: "#ffffff", Text: "#1f2937",
		Muted: "#6b7280", Accent: "#f9a8d4", ButtonText: "#1f2937",
	},
	"sunset": {
		ID: "sunset", Name: "Sunset",
		Background: "#1c1917", Surface: "#292524", Text: "#fef3c7",
		Muted: "#d6d3d1", Accent: "#f97316", ButtonText: "#1c1917",
	},
	"ocean": {
		ID: "ocean", Name: "Ocean",
		Background: "#082f49", Surface: "#0c4a6e", Text: "#f0f9ff",
		Muted: "#7dd3fc", Accent: "#38bdf8", ButtonText: "#082f49",
	},
}

// Lookup returns the theme for id, falling back to the default for unknown
// ids so a stale templateId still renders.
func Lookup(id string) Theme {
	if t, ok := themes[id]; ok {
		return t
	}
	return themes[DefaultID]
}

// Valid reports whether id names a theme.
func Valid(id string) bool {
	_, ok := themes[id]
	return ok
}

// All lists every theme ordered by ID, default first.
func All() []Theme {
	out := make([]Theme, 0, len(themes))
	for _, t := range themes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID == DefaultID || out[j].ID == DefaultID {
			return out[i].ID == DefaultID
		}
		return out[i].ID < out[j].ID
	})
	return out
}
