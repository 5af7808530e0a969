package portalhandler

import (
	"net/http"
	"os"
	"path/filepath"
)

// SPA serves the built frontend. Unknown paths fall back to the index so the
// client router can take over.
type SPA struct {
	StaticPath string
	IndexPath  string
}

func (h SPA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.StaticPath, filepath.Clean("/"+r.URL.Path))
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		http.FileServer(http.Dir(h.StaticPath)).ServeHTTP(w, r)
		return
	}

	if err == nil || os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.StaticPath, h.IndexPath))
		return
	}

	http.NotFound(w, r)
}
