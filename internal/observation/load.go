package observation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Source kinds.
const (
	KindInline = "inline"
	KindFile   = "file"
	KindURL    = "url"
	KindNetCDF = "netcdf"
)

// Source describes where observations come from.
type Source struct {
	Kind   string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Path   string   `yaml:"path,omitempty" json:"path,omitempty"`
	URL    string   `yaml:"url,omitempty" json:"url,omitempty"`
	Inline []Record `yaml:"inline,omitempty" json:"-"`
	Stride int      `yaml:"stride,omitempty" json:"stride,omitempty"` // netcdf grid subsampling
}

// ResolveKind returns the explicit kind or infers one from the populated fields.
// Inline data wins over URL, URL over path.
func (s Source) ResolveKind() string {
	if s.Kind != "" {
		return s.Kind
	}

	switch {
	case s.Inline != nil:
		return KindInline
	case s.URL != "":
		return KindURL
	case strings.EqualFold(filepath.Ext(s.Path), ".nc"):
		return KindNetCDF
	case s.Path != "":
		return KindFile
	}

	return ""
}

// String names the source for logs and errors.
func (s Source) String() string {
	switch s.ResolveKind() {
	case KindInline:
		return "inline"
	case KindURL:
		return s.URL
	default:
		return s.Path
	}
}

type document struct {
	List *[]json.RawMessage `json:"list"`
}

// Load reads every record of the source. Structurally invalid records are
// skipped and reported in Batch.Failures; a fetch or document level failure
// returns a *LoadError and no batch.
func Load(ctx context.Context, client *http.Client, src Source) (Batch, error) {
	kind := src.ResolveKind()

	log.Debug().
		Str("kind", kind).
		Str("source", src.String()).
		Msg("Loading observations")

	var (
		batch Batch
		err   error
	)

	switch kind {
	case KindInline:
		batch = FromRecords(src.Inline)
	case KindFile:
		batch, err = loadFile(src.Path)
	case KindURL:
		batch, err = fetch(ctx, client, src.URL)
	case KindNetCDF:
		batch, err = loadNetCDF(src.Path, src.Stride)
	default:
		err = fmt.Errorf("unknown source kind %q", src.Kind)
	}

	if err != nil {
		return Batch{}, &LoadError{Source: src.String(), Err: err}
	}

	log.Info().
		Str("source", src.String()).
		Int("observations", len(batch.Observations)).
		Int("failures", len(batch.Failures)).
		Msg("Observations loaded")

	return batch, nil
}

// FromRecords converts in-memory records, preserving their order.
func FromRecords(records []Record) Batch {
	batch := Batch{Observations: make([]Observation, 0, len(records))}
	for i, r := range records {
		obs, err := r.Observation(i)
		if err != nil {
			batch.addFailure(err)
			continue
		}
		batch.Observations = append(batch.Observations, obs)
	}

	return batch
}

// Decode parses an observation document.
func Decode(r io.Reader) (Batch, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Batch{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.List == nil {
		return Batch{}, errors.New(`document has no "list" field`)
	}

	items := *doc.List
	batch := Batch{Observations: make([]Observation, 0, len(items))}
	for i, raw := range items {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			batch.Failures = append(batch.Failures, RecordError{
				Index: i,
				Err:   fmt.Errorf("%w: %v", ErrMalformedRecord, err),
			})
			continue
		}

		obs, err := rec.Observation(i)
		if err != nil {
			batch.addFailure(err)
			continue
		}
		batch.Observations = append(batch.Observations, obs)
	}

	return batch, nil
}

func (b *Batch) addFailure(err error) {
	var recErr *RecordError
	if errors.As(err, &recErr) {
		b.Failures = append(b.Failures, *recErr)
		return
	}
	b.Failures = append(b.Failures, RecordError{Index: -1, Err: err})
}

func loadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

func fetch(ctx context.Context, client *http.Client, url string) (Batch, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Batch{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Batch{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	// Read fully so a cancelled context mid-body surfaces as a load failure
	// rather than a truncated document.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Batch{}, err
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	return Decode(bytes.NewReader(body))
}
