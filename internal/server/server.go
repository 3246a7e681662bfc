package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
)

func Handler(staticFS fs.FS, hub *Hub, ingestor *Ingestor, state *session.State, index StateIndex, media *storage.MediaStore) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, ingestor)
	registerAPIRoutes(mux, state, index, media)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/index.html"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
