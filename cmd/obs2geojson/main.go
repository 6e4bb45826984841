package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/woozymasta/windlayer/internal/feature"
	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input      string   `short:"i" long:"in"         description:"Input observation document. Reads from stdin if empty"`
	Output     string   `short:"o" long:"out"        description:"Output file path. Writes to stdout if empty"`
	Format     string   `short:"f" long:"format"     description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Projection string   `short:"P" long:"projection" description:"Position projection" choice:"identity" choice:"web-mercator" choice:"clip-space" default:"identity"`
	Attributes []string `short:"a" long:"attr"       description:"Attribute as name:derive[:arity], repeatable" default:"speed:speed" default:"rotation:rotation"`
	Seed       uint64   `short:"s" long:"seed"       description:"Seed for randomized attributes" default:"1"`
	Strict     bool     `long:"strict"               description:"Fail if any record is skipped"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	spec, err := parseAttributes(opts.Attributes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	project, err := geo.ByName(opts.Projection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Read Input
	var in io.Reader = os.Stdin
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	batch, err := observation.Decode(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding observations: %v\n", err)
		os.Exit(1)
	}

	res, err := feature.Build(batch.Observations, spec,
		feature.WithProjection(project),
		feature.WithSeed(opts.Seed))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building features: %v\n", err)
		os.Exit(1)
	}

	skipped := skippedRecords(batch, res)
	for _, f := range skipped {
		fmt.Fprintf(os.Stderr, "Skipping %v\n", &f)
	}
	if opts.Strict && len(skipped) > 0 {
		os.Exit(1)
	}

	fc := feature.Collection(res.Features)

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = toYAML(fc)
	} else {
		outputData, err = json.MarshalIndent(fc, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d observations to %s (format: %s, skipped: %d)\n",
			len(res.Features), opts.Output, opts.Format, len(skipped))
	} else {
		fmt.Println(string(outputData))
	}
}

// skippedRecords lists load and build failures in a fresh slice.
func skippedRecords(batch observation.Batch, res feature.Result) []observation.RecordError {
	return slices.Concat(batch.Failures, res.Failures)
}

// parseAttributes reads name:derive[:arity] definitions. Arity defaults to
// the natural width of the derivation.
func parseAttributes(defs []string) (feature.AttributeSpec, error) {
	spec := make(feature.AttributeSpec, 0, len(defs))
	for _, def := range defs {
		parts := strings.Split(def, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("attribute %q: want name:derive[:arity]", def)
		}

		d := feature.AttributeDef{Name: parts[0], Derive: parts[1], Arity: naturalArity(parts[1])}
		if len(parts) == 3 {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", def, err)
			}
			d.Arity = n
		}
		spec = append(spec, d)
	}

	return spec, spec.Validate()
}

func naturalArity(derive string) int {
	switch derive {
	case feature.DeriveCoords, feature.DeriveWindVector:
		return 2
	case feature.DeriveRandomColor, feature.DeriveHemisphereColor, feature.DeriveSpeedColor:
		return 4
	}
	return 1
}

// toYAML round-trips through JSON so the GeoJSON field names are kept.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
