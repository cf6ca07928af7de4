package vision

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
)

// DefaultLabels is the species list the bundled model was trained on, in class index order.
var DefaultLabels = []string{
	"Common Green Darner",
	"Blue Dasher",
	"Scarlet Skimmer",
	"Golden-ringed Dragonfly",
	"Widow Skimmer",
	"Emperor Dragonfly",
	"Brown Hawker",
	"Red-veined Darter",
	"Violet Dropwing",
	"Twelve-spotted Skimmer",
}

var ordinalPrefix = regexp.MustCompile(`^\d+\s+`)

// LabelSource supplies the ordered label set.
type LabelSource interface {
	Load() []string
}

// StaticLabels is a fixed, already loaded label set.
type StaticLabels []string

func (l StaticLabels) Load() []string { return l }

// LabelStore loads the class labels once and hands out the same ordered set afterwards.
type LabelStore struct {
	path string

	once   sync.Once
	labels []string
}

func NewLabelStore(path string) *LabelStore {
	return &LabelStore{path: path}
}

// Load returns the label set, reading the file on first use. It never fails: a missing or
// unusable file yields DefaultLabels.
func (s *LabelStore) Load() []string {
	s.once.Do(func() {
		labels, err := readLabels(s.path)
		if err != nil {
			log.Printf("labels: %v, using built-in species list", err)
			labels = append([]string(nil), DefaultLabels...)
		}
		s.labels = labels
	})
	return s.labels
}

func readLabels(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty labels path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s has no entries", path)
	}
	return labels, nil
}

// ParseLabels reads one label per line, dropping blank lines and a leading
// "<digits><whitespace>" ordinal.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		// The ordinal is matched before trailing space is trimmed, so "7 " is an empty entry.
		line = strings.TrimLeft(line, " \t")
		line = strings.TrimSpace(ordinalPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}
