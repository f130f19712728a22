// Package landing serves click-to-continue redirect pages.
//
// A landing is pure data: where it goes, how long the countdown lasts, and
// whether the visitor may cancel. Definitions are read from TOML; an
// embedded file provides the defaults.
package landing

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed landings.toml
var defaultLandings []byte

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Landing is one redirect page.
type Landing struct {
	Name        string        `toml:"name"`
	Title       string        `toml:"title"`
	Heading     string        `toml:"heading"`
	Card        string        `toml:"card"`
	Message     string        `toml:"message"`
	Target      string        `toml:"target"`
	Delay       time.Duration `toml:"delay"`
	Cancellable bool          `toml:"cancellable"`
}

type file struct {
	Landings []Landing `toml:"landing"`
}

// Registry holds landings by name.
type Registry struct {
	byName map[string]Landing
}

// Load reads landings from a TOML file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("landing: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded landings.
func Default() *Registry {
	r, err := Parse(defaultLandings)
	if err != nil {
		panic(fmt.Sprintf("landing: embedded landings are invalid: %v", err))
	}
	return r
}

// Parse decodes and validates TOML landing definitions.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("landing: parsing definitions: %w", err)
	}

	r := &Registry{byName: make(map[string]Landing, len(f.Landings))}
	for i, l := range f.Landings {
		l = withDefaults(l)
		if err := l.validate(); err != nil {
			return nil, fmt.Errorf("landing: entry %d: %w", i, err)
		}
		if _, dup := r.byName[l.Name]; dup {
			return nil, fmt.Errorf("landing: duplicate name %q", l.Name)
		}
		r.byName[l.Name] = l
	}
	return r, nil
}

func withDefaults(l Landing) Landing {
	if l.Title == "" {
		l.Title = l.Name
	}
	if l.Heading == "" {
		l.Heading = l.Title
	}
	if l.Card == "" {
		l.Card = "Tap to continue"
	}
	if l.Message == "" {
		l.Message = "Hang on! We are redirecting you..."
	}
	return l
}

func (l Landing) validate() error {
	if !namePattern.MatchString(l.Name) {
		return fmt.Errorf("invalid name %q", l.Name)
	}
	if l.Delay < 0 {
		return fmt.Errorf("%s: delay must not be negative", l.Name)
	}
	if l.Target == "" {
		return fmt.Errorf("%s: target is required", l.Name)
	}
	if strings.HasPrefix(l.Target, "/") {
		if strings.HasPrefix(l.Target, "//") {
			return fmt.Errorf("%s: target %q is protocol-relative", l.Name, l.Target)
		}
		return nil
	}
	u, err := url.Parse(l.Target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: target %q must be a path or an http(s) URL", l.Name, l.Target)
	}
	return nil
}

// Get returns the landing called name.
func (r *Registry) Get(name string) (Landing, bool) {
	l, ok := r.byName[name]
	return l, ok
}

// Names lists the registered landings in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
