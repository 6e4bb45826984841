package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chai2010/webp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// TileOptions configures a basemap sync.
type TileOptions struct {
	URLTemplate string
	Dir         string
	UserAgent   string
	ZoomLimit   int
	Concurrency int
	// Padding adds this many tiles around the covered area on every side.
	Padding int
	Force   bool
}

// TileStats counts the outcome of a sync.
type TileStats struct {
	Requested int64
	Written   int64
	Cached    int64
	Missing   int64
	Failed    int64
}

type tileJob struct {
	Tile maptile.Tile
	Path string
}

// TilePath returns the cache location of a tile below dir.
func TilePath(dir string, t maptile.Tile) string {
	return filepath.Join(
		dir,
		strconv.Itoa(int(t.Z)),
		strconv.Itoa(int(t.X)),
		strconv.Itoa(int(t.Y))+".webp")
}

// CoverTiles lists the tiles covering a longitude/latitude bound for zoom
// levels 0..zoomLimit, padded by padding tiles and clipped to the world.
func CoverTiles(bound orb.Bound, zoomLimit, padding int) []maptile.Tile {
	var tiles []maptile.Tile

	for z := 0; z <= zoomLimit; z++ {
		zoom := maptile.Zoom(z)
		maxIndex := int64(1)<<z - 1

		// tile Y grows southwards
		nw := maptile.At(orb.Point{bound.Min[0], bound.Max[1]}, zoom)
		se := maptile.At(orb.Point{bound.Max[0], bound.Min[1]}, zoom)

		minX := max(int64(nw.X)-int64(padding), 0)
		minY := max(int64(nw.Y)-int64(padding), 0)
		maxX := min(int64(se.X)+int64(padding), maxIndex)
		maxY := min(int64(se.Y)+int64(padding), maxIndex)

		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, maptile.Tile{X: uint32(x), Y: uint32(y), Z: zoom})
			}
		}
	}

	return tiles
}

// SyncTiles downloads the tiles covering bound, converts them to WebP and
// stores them under opts.Dir. Individual tile failures are counted, not
// returned; the error reports cancellation only.
func SyncTiles(ctx context.Context, client *http.Client, bound orb.Bound, opts TileOptions) (TileStats, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	tiles := CoverTiles(bound, opts.ZoomLimit, opts.Padding)

	log.Info().
		Str("dir", opts.Dir).
		Int("zoom", opts.ZoomLimit).
		Int("tiles", len(tiles)).
		Msg("Starting basemap sync")

	jobs := make(chan tileJob)
	var stats TileStats

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- tileJob{Tile: t, Path: TilePath(opts.Dir, t)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				atomic.AddInt64(&stats.Requested, 1)

				written, err := downloadAndConvert(ctx, client, j, opts)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.Failed, 1)
					log.Trace().
						Err(err).
						Str("url", buildURL(opts.URLTemplate, j.Tile)).
						Msg("Failed to download tile")
				case written == tileCached:
					atomic.AddInt64(&stats.Cached, 1)
				case written == tileMissing:
					atomic.AddInt64(&stats.Missing, 1)
				default:
					atomic.AddInt64(&stats.Written, 1)
				}
			}
		}()
	}
	wg.Wait()

	log.Info().
		Int64("requested", stats.Requested).
		Int64("written", stats.Written).
		Int64("cached", stats.Cached).
		Int64("missing", stats.Missing).
		Int64("failed", stats.Failed).
		Msg("Basemap sync finished")

	return stats, ctx.Err()
}

type tileOutcome int

const (
	tileWritten tileOutcome = iota
	tileCached
	tileMissing
)

func downloadAndConvert(ctx context.Context, client *http.Client, j tileJob, opts TileOptions) (tileOutcome, error) {
	// Check existence if not forcing overwrite
	if !opts.Force && exists(j.Path) {
		return tileCached, nil
	}

	url := buildURL(opts.URLTemplate, j.Tile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tileMissing, err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return tileMissing, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return tileMissing, nil
	}
	if resp.StatusCode != http.StatusOK {
		return tileMissing, fmt.Errorf("status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tileMissing, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode image")
		return tileMissing, nil
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return tileMissing, nil
	}

	if err := os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		return tileMissing, err
	}

	outFile, err := os.Create(j.Path)
	if err != nil {
		return tileMissing, err
	}
	defer func() { _ = outFile.Close() }()

	if err := webp.Encode(outFile, img, &webp.Options{Lossless: false, Quality: 80}); err != nil {
		return tileMissing, err
	}

	return tileWritten, nil
}

func buildURL(tpl string, t maptile.Tile) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(int(t.Z)))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(int(t.X)))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(int(t.Y)))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << t.Z) - 1
		tmsY := maxCoord - int(t.Y)
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(tmsY))
	}

	return s
}
