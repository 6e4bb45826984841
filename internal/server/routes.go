package server

import "net/http"

// Routes builds the request multiplexer wrapped with the request logger.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/layers", s.HandleLayers)
	mux.HandleFunc("/api/layers/", s.HandleLayer)
	mux.HandleFunc("/api/failures", s.HandleFailures)
	mux.HandleFunc("/tiles/", s.HandleTile)
	mux.HandleFunc("/preview.webp", s.HandlePreview)
	mux.HandleFunc("/favicon.ico", s.HandleFavicon)
	mux.HandleFunc("/favicon.svg", s.HandleFavicon)
	mux.HandleFunc("/", s.HandleIndex)

	return RequestLogger(mux)
}
