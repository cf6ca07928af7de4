package vision

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "ordinal prefixes",
			input: "0 Common Green Darner\n1 Blue Dasher\n2\tScarlet Skimmer\n",
			want:  []string{"Common Green Darner", "Blue Dasher", "Scarlet Skimmer"},
		},
		{
			name:  "blank lines dropped",
			input: "\nBlue Dasher\n\n   \nWidow Skimmer\n",
			want:  []string{"Blue Dasher", "Widow Skimmer"},
		},
		{
			name:  "digits inside name kept",
			input: "9 Twelve-spotted Skimmer\n10 Species 12b\n",
			want:  []string{"Twelve-spotted Skimmer", "Species 12b"},
		},
		{
			name:  "crlf",
			input: "3 Golden-ringed Dragonfly\r\n4 Widow Skimmer\r\n",
			want:  []string{"Golden-ringed Dragonfly", "Widow Skimmer"},
		},
		{
			name:  "byte order mark",
			input: "\ufeff0 Common Green Darner\n1 Blue Dasher\n",
			want:  []string{"Common Green Darner", "Blue Dasher"},
		},
		{
			name:  "ordinal only lines dropped",
			input: "0 Blue Dasher\n7 \n  8\t\n9 Widow Skimmer\n",
			want:  []string{"Blue Dasher", "Widow Skimmer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseLabels() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLabels() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabelStoreLoadsFileOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("0 Alpha\n1 Beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewLabelStore(path)
	first := store.Load()
	if !reflect.DeepEqual(first, []string{"Alpha", "Beta"}) {
		t.Fatalf("Load() = %q", first)
	}

	if err := os.WriteFile(path, []byte("Gamma\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if second := store.Load(); !reflect.DeepEqual(second, first) {
		t.Errorf("second Load() = %q, want memoized %q", second, first)
	}
}

func TestLabelStoreFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"", filepath.Join(dir, "missing.txt"), empty, dir} {
		got := NewLabelStore(path).Load()
		if !reflect.DeepEqual(got, DefaultLabels) {
			t.Errorf("Load(%q) = %q, want defaults", path, got)
		}
	}
	if len(DefaultLabels) != 10 {
		t.Errorf("expected 10 default labels, got %d", len(DefaultLabels))
	}
}
