package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const banner = "Looking Glass API - see /api/health\n"

// Static serves the dashboard build as a single page app: paths without a
// file extension that match no file get index.html so client-side routes
// survive a reload.
type Static struct {
	dir string
}

func NewStatic(dir string) *Static {
	return &Static{dir: dir}
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.available() {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(banner))
		logWriteError("banner", err)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.dir, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	switch {
	case err == nil && !info.IsDir():
		http.ServeFile(w, r, full)
	case err == nil || !strings.Contains(path.Base(clean), "."):
		s.serveIndex(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Static) serveIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, index)
}

func (s *Static) available() bool {
	if s.dir == "" {
		return false
	}
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}
