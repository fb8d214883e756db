package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

const generatedPrefix = "/generated/"

// generatedFiles serves written slides from OutputDir. Directories are not
// listed.
func (s *Server) generatedFiles() http.Handler {
	root := s.config.OutputDir
	files := http.FileServer(http.Dir(root))
	return http.StripPrefix("/generated", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}))
}
