package main

import (
	"errors"
	"testing"

	"github.com/woozymasta/windlayer/internal/feature"
	"github.com/woozymasta/windlayer/internal/observation"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name  string
		defs  []string
		arity []int
		ok    bool
	}{
		{"defaults", []string{"speed:speed", "rotation:rotation"}, []int{1, 1}, true},
		{"natural arity", []string{"coords:coords", "color:speed_color"}, []int{2, 4}, true},
		{"explicit arity", []string{"color:random_color:4"}, []int{4}, true},
		{"missing derive", []string{"speed"}, nil, false},
		{"bad arity", []string{"speed:speed:x"}, nil, false},
		{"unknown derive", []string{"p:pressure"}, nil, false},
		{"reserved", []string{"index:speed"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := parseAttributes(tt.defs)
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, d := range spec {
				if d.Arity != tt.arity[i] {
					t.Errorf("%s arity = %d, want %d", d.Name, d.Arity, tt.arity[i])
				}
			}
		})
	}
}

func TestSkippedRecords(t *testing.T) {
	loadFailures := make([]observation.RecordError, 1, 4)
	loadFailures[0] = observation.RecordError{Index: 0, Err: observation.ErrMalformedRecord}
	batch := observation.Batch{Failures: loadFailures}
	res := feature.Result{Failures: []observation.RecordError{
		{Index: 2, Err: observation.ErrMissingField},
	}}

	got := skippedRecords(batch, res)
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 2 {
		t.Fatalf("skipped = %+v", got)
	}

	got[0].Index = 9
	if batch.Failures[0].Index != 0 {
		t.Error("result shares the batch backing array")
	}
	if spare := loadFailures[:2]; errors.Is(spare[1].Err, observation.ErrMissingField) {
		t.Error("build failures written into the batch backing array")
	}
}
