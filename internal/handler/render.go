package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

// Page names, one per template file besides base.html.
const (
	pageLogin     = "login"
	pageRegister  = "register"
	pageDashboard = "dashboard"
	pageProfile   = "profile"
	pageLanding   = "landing"
	pagePlayer    = "player"
)

var pageNames = []string{pageLogin, pageRegister, pageDashboard, pageProfile, pageLanding, pagePlayer}

// Renderer holds one parsed template set per page. Each set is base.html
// plus the page, so every page can define its own "content" block.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses all page templates from fsys, which must contain a
// templates/ directory. Parsing happens once at startup.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	rd := &Renderer{pages: make(map[string]*template.Template), logger: logger}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys,
			"templates/base.html",
			path.Join("templates", name+".html"),
		)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		rd.pages[name] = tmpl
	}
	return rd, nil
}

// Render executes page into a buffer first so a template error still
// produces a clean 500 instead of half a page.
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("client went away during render", slog.String("error", err.Error()))
	}
}

var socialPrefixes = map[string]string{
	"instagram": "https://instagram.com/",
	"twitter":   "https://twitter.com/",
	"youtube":   "https://youtube.com/@",
	"tiktok":    "https://tiktok.com/@",
	"linkedin":  "https://linkedin.com/in/",
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

var templateFuncs = template.FuncMap{
	// socialURL turns a stored handle into a profile URL. Full URLs pass
	// through unchanged.
	"socialURL": func(network, handle string) string {
		if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
			return handle
		}
		return socialPrefixes[network] + handle
	},
	"isImage": func(rawURL string) bool {
		lower := strings.ToLower(rawURL)
		if i := strings.IndexAny(lower, "?#"); i >= 0 {
			lower = lower[:i]
		}
		for _, ext := range imageExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
		return false
	},
	"seconds": func(d time.Duration) int {
		return int((d + time.Second - 1) / time.Second)
	},
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
}
