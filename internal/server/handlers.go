// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/windlayer/internal/feature"
	"github.com/woozymasta/windlayer/internal/observation"
	"github.com/woozymasta/windlayer/internal/render"

	"github.com/rs/zerolog/log"
)

const etagCap = 64

// layerInfo is the client-side description of a layer.
type layerInfo struct {
	Symbol     *render.Symbol        `json:"symbol,omitempty"`
	Shader     *render.ShaderProgram `json:"shader,omitempty"`
	Name       string                `json:"name"`
	Projection string                `json:"projection,omitempty"`
	Attributes feature.AttributeSpec `json:"attributes"`
	Layout     []render.Slot         `json:"layout"`
	ZIndex     int                   `json:"zIndex"`
	Stride     int                   `json:"stride"`
	Count      int                   `json:"count"`
}

type failure struct {
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
	Index int    `json:"index"`
}

type failureReport struct {
	Source []failure            `json:"source"`
	Layers map[string][]failure `json:"layers"`
}

// HandleLayers serves the JSON description of all layers.
func (s *ServerContext) HandleLayers(w http.ResponseWriter, r *http.Request) {
	infos := make([]layerInfo, 0, len(s.Pass.Layers))
	for _, out := range s.Pass.Layers {
		infos = append(infos, layerInfo{
			Name:       out.Layer.Name,
			ZIndex:     out.Layer.ZIndex,
			Projection: out.Layer.Projection,
			Symbol:     out.Layer.Symbol,
			Shader:     out.Layer.Shader,
			Attributes: out.Layer.Attributes,
			Layout:     out.Buffer.Layout,
			Stride:     out.Buffer.Stride,
			Count:      out.Buffer.Count,
		})
	}

	writeJSON(w, "application/json", infos)
}

// HandleLayer serves per-layer data: /api/layers/{name}/features.geojson or
// /api/layers/{name}/buffer.
func (s *ServerContext) HandleLayer(w http.ResponseWriter, r *http.Request) {
	// parts: api, layers, name, resource
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 {
		http.NotFound(w, r)
		return
	}

	out, ok := s.Pass.Layer(parts[2])
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch parts[3] {
	case "features.geojson":
		writeJSON(w, "application/geo+json", feature.Collection(out.Features))
	case "buffer":
		layout, err := json.Marshal(out.Buffer.Layout)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Stride", strconv.Itoa(out.Buffer.Stride))
		w.Header().Set("X-Count", strconv.Itoa(out.Buffer.Count))
		w.Header().Set("X-Layout", string(layout))
		_, _ = w.Write(out.Buffer.Bytes())
	default:
		http.NotFound(w, r)
	}
}

// HandleFailures serves the records skipped while loading and building.
func (s *ServerContext) HandleFailures(w http.ResponseWriter, r *http.Request) {
	report := failureReport{
		Source: failures(s.Pass.Batch.Failures),
		Layers: make(map[string][]failure, len(s.Pass.Layers)),
	}
	for _, out := range s.Pass.Layers {
		report.Layers[out.Layer.Name] = failures(out.Failures)
	}

	writeJSON(w, "application/json", report)
}

// HandlePreview serves the quicklook image.
func (s *ServerContext) HandlePreview(w http.ResponseWriter, r *http.Request) {
	data, err := s.previewImage()
	if err != nil {
		log.Error().Err(err).Msg("Failed to render preview")
		http.Error(w, "preview unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(data)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the viewer page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleTile serves cached basemap tiles: /tiles/{z}/{x}/{y}.webp. Tiles not
// in the cache are answered with a transparent tile.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	// parts: tiles, z, x, y.webp
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || !strings.HasSuffix(parts[3], ".webp") {
		http.NotFound(w, r)
		return
	}

	// numeric components only to prevent path probing
	z, errZ := strconv.Atoi(parts[1])
	x, errX := strconv.Atoi(parts[2])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[3], ".webp"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || x < 0 || y < 0 {
		http.NotFound(w, r)
		return
	}

	if s.TileDir != "" {
		path := filepath.Join(s.TileDir, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+".webp")
		if s.serveFile(w, r, path, "image/webp") {
			return
		}
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTile)
}

func failures(errs []observation.RecordError) []failure {
	out := make([]failure, 0, len(errs))
	for _, e := range errs {
		out = append(out, failure{Index: e.Index, Field: e.Field, Error: e.Err.Error()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
