package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dragonfly-id/internal/history"
	"dragonfly-id/internal/model"
	"dragonfly-id/internal/vision"
)

type stubIdentifier struct {
	result *vision.Prediction
	paths  []string
}

func (s *stubIdentifier) Identify(path string) *vision.Prediction {
	s.paths = append(s.paths, path)
	if s.result == nil {
		return nil
	}
	p := *s.result
	return &p
}

func (s *stubIdentifier) Labels() []string        { return vision.DefaultLabels }
func (s *stubIdentifier) InferenceAvailable() bool { return false }

type mapCache struct {
	entries map[uint64]*vision.Prediction
	sets    int
}

func (c *mapCache) Get(_ context.Context, h uint64) (*vision.Prediction, bool, error) {
	p, ok := c.entries[h]
	return p, ok, nil
}

func (c *mapCache) Set(_ context.Context, h uint64, p *vision.Prediction) error {
	c.sets++
	c.entries[h] = p
	return nil
}

type recordingPublisher struct {
	published []model.Sighting
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, s model.Sighting) error {
	p.published = append(p.published, s)
	return p.err
}

func newService(t *testing.T, ident Identifier, cache PredictionCache, pub SightingPublisher) (*IdentifyService, string) {
	t.Helper()
	root := t.TempDir()
	refDir := filepath.Join(root, "examples")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return NewIdentifyService(ident, history.NewLog(), cache, pub, filepath.Join(root, "uploads"), refDir), refDir
}

func TestIdentifyRecordsSighting(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Blue Dasher", Confidence: 0.91, Source: vision.SourceModel}}
	pub := &recordingPublisher{}
	svc, _ := newService(t, ident, nil, pub)

	res, err := svc.Identify(context.Background(), IdentifyInput{ObserverID: 4, Filename: "C:\\phone\\p2.jpg", Data: []byte("jpeg bytes")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Prediction.Label != "Blue Dasher" || res.Cached {
		t.Errorf("result = %+v", res)
	}
	if filepath.Base(ident.paths[0]) != "p2.jpg" {
		t.Errorf("upload stored as %s, original name should be kept", ident.paths[0])
	}
	if data, err := os.ReadFile(ident.paths[0]); err != nil || string(data) != "jpeg bytes" {
		t.Errorf("stored upload = %q, %v", data, err)
	}

	sightings, _ := svc.ListSightings(4)
	if len(sightings) != 1 || sightings[0].Label != "Blue Dasher" || sightings[0].Source != "model" {
		t.Errorf("sightings = %+v", sightings)
	}
	if len(pub.published) != 1 || pub.published[0].EventID != sightings[0].EventID {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestIdentifyUsesCacheForModelResults(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Brown Hawker", Confidence: 0.77, Source: vision.SourceModelRotated}}
	cache := &mapCache{entries: map[uint64]*vision.Prediction{}}
	svc, _ := newService(t, ident, cache, nil)
	in := IdentifyInput{ObserverID: 1, Filename: "a.png", Data: []byte("same bytes")}

	if _, err := svc.Identify(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Identify(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached || res.Prediction.Label != "Brown Hawker" {
		t.Errorf("second result = %+v", res)
	}
	if len(ident.paths) != 1 || cache.sets != 1 {
		t.Errorf("identify calls = %d, cache sets = %d", len(ident.paths), cache.sets)
	}
	if st, _ := svc.Stats(1); st.Total != 2 {
		t.Errorf("stats total = %d, want 2", st.Total)
	}
}

func TestIdentifyDoesNotCacheFallback(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Violet Dropwing", Confidence: 0.3, Source: vision.SourceGuess}}
	cache := &mapCache{entries: map[uint64]*vision.Prediction{}}
	svc, _ := newService(t, ident, cache, nil)

	if _, err := svc.Identify(context.Background(), IdentifyInput{ObserverID: 1, Filename: "x.png", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 0 {
		t.Errorf("fallback result was cached")
	}
}

func TestIdentifyPublishErrorIsNotReturned(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Blue Dasher", Confidence: 0.85, Source: vision.SourceReference}}
	pub := &recordingPublisher{err: errors.New("broker gone")}
	svc, _ := newService(t, ident, nil, pub)

	if _, err := svc.Identify(context.Background(), IdentifyInput{ObserverID: 1, Filename: "p2.jpg", Data: []byte("x")}); err != nil {
		t.Errorf("publish failure leaked: %v", err)
	}
}

func TestIdentifyErrors(t *testing.T) {
	svc, _ := newService(t, &stubIdentifier{}, nil, nil)
	ctx := context.Background()

	invalid := []IdentifyInput{
		{ObserverID: 0, Filename: "a.jpg", Data: []byte("x")},
		{ObserverID: 1, Filename: "", Data: []byte("x")},
		{ObserverID: 1, Filename: "..", Data: []byte("x")},
		{ObserverID: 1, Filename: "a.jpg"},
	}
	for _, in := range invalid {
		if _, err := svc.Identify(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Identify(%+v) error = %v, want ErrInvalidInput", in, err)
		}
	}

	if _, err := svc.Identify(ctx, IdentifyInput{ObserverID: 1, Filename: "a.jpg", Data: []byte("x")}); !errors.Is(err, ErrUnidentified) {
		t.Errorf("absent prediction error = %v, want ErrUnidentified", err)
	}
	if sightings, _ := svc.ListSightings(1); len(sightings) != 0 {
		t.Errorf("absent prediction must not be logged: %+v", sightings)
	}
}

func TestIdentifyReference(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Emperor Dragonfly", Confidence: 0.85, Source: vision.SourceReference}}
	svc, refDir := newService(t, ident, nil, nil)
	for _, name := range []string{"p6.jpeg", "p1.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(refDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.IdentifyReference(context.Background(), 2, "../../p6.jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sighting.ImagePath != filepath.Join(refDir, "p6.jpeg") {
		t.Errorf("image path = %s", res.Sighting.ImagePath)
	}

	if _, err := svc.IdentifyReference(context.Background(), 2, "p9.jpg"); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("missing reference error = %v", err)
	}

	refs, err := svc.ListReferences()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(refs, ",") != "p1.jpg,p6.jpeg" {
		t.Errorf("references = %v", refs)
	}
}

func TestCloseRemovesUploads(t *testing.T) {
	ident := &stubIdentifier{result: &vision.Prediction{Label: "Brown Hawker", Confidence: 0.85, Source: vision.SourceReference}}
	svc, refDir := newService(t, ident, nil, nil)
	uploadDir := filepath.Join(filepath.Dir(refDir), "uploads")

	res, err := svc.Identify(context.Background(), IdentifyInput{ObserverID: 2, Filename: "p7.jpg", Data: []byte("a")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.Sighting.ImagePath); err != nil {
		t.Fatalf("upload not stored: %v", err)
	}

	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload slots left after Close: %d", len(entries))
	}
}

func TestUnidentifiedUploadIsDiscarded(t *testing.T) {
	svc, refDir := newService(t, &stubIdentifier{}, nil, nil)
	uploadDir := filepath.Join(filepath.Dir(refDir), "uploads")

	_, err := svc.Identify(context.Background(), IdentifyInput{ObserverID: 2, Filename: "a.jpg", Data: []byte("x")})
	if !errors.Is(err, ErrUnidentified) {
		t.Fatalf("err = %v, want ErrUnidentified", err)
	}
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("unidentified upload kept: %d slots", len(entries))
	}
}
