package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"dragonfly-id/internal/history"
	"dragonfly-id/internal/model"
	"dragonfly-id/internal/vision"
)

var (
	ErrUnidentified      = errors.New("unable to identify")
	ErrReferenceNotFound = errors.New("reference image not found")
)

// Identifier is the classification pipeline.
type Identifier interface {
	Identify(imagePath string) *vision.Prediction
	Labels() []string
	InferenceAvailable() bool
}

type SightingPublisher interface {
	Publish(ctx context.Context, sighting model.Sighting) error
}

type PredictionCache interface {
	Get(ctx context.Context, contentHash uint64) (*vision.Prediction, bool, error)
	Set(ctx context.Context, contentHash uint64, p *vision.Prediction) error
}

type IdentifyService struct {
	identifier   Identifier
	log          *history.Log
	cache        PredictionCache
	publisher    SightingPublisher
	uploadDir    string
	referenceDir string
	now          func() time.Time

	// Upload slots live as long as the in-memory sightings that point at them.
	mu      sync.Mutex
	uploads []string
}

type IdentifyInput struct {
	ObserverID uint
	Filename   string
	Data       []byte
}

type IdentifyResult struct {
	Prediction *vision.Prediction `json:"prediction"`
	Sighting   model.Sighting     `json:"sighting"`
	Cached     bool               `json:"cached"`
}

// NewIdentifyService wires the pipeline to the sighting log. cache and publisher may be nil.
func NewIdentifyService(
	identifier Identifier,
	sightings *history.Log,
	cache PredictionCache,
	publisher SightingPublisher,
	uploadDir string,
	referenceDir string,
) *IdentifyService {
	if sightings == nil {
		sightings = history.NewLog()
	}
	return &IdentifyService{
		identifier:   identifier,
		log:          sightings,
		cache:        cache,
		publisher:    publisher,
		uploadDir:    uploadDir,
		referenceDir: referenceDir,
		now:          time.Now,
	}
}

// Identify stores the upload, classifies it and records the sighting.
func (s *IdentifyService) Identify(ctx context.Context, input IdentifyInput) (*IdentifyResult, error) {
	name := sanitizeFilename(input.Filename)
	if input.ObserverID == 0 || name == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}

	path, err := s.storeUpload(name, input.Data)
	if err != nil {
		return nil, err
	}

	hash := xxhash.Sum64(input.Data)
	if p, ok := s.cachedPrediction(ctx, hash); ok {
		return s.record(ctx, input.ObserverID, path, p, true)
	}

	p := s.identifier.Identify(path)
	if p == nil {
		s.discardUpload(path)
		return nil, ErrUnidentified
	}
	if s.cache != nil && (p.Source == vision.SourceModel || p.Source == vision.SourceModelRotated) {
		if err := s.cache.Set(ctx, hash, p); err != nil {
			log.Printf("identify: cache prediction failed: %v", err)
		}
	}
	return s.record(ctx, input.ObserverID, path, p, false)
}

// IdentifyReference classifies one of the bundled reference images.
func (s *IdentifyService) IdentifyReference(ctx context.Context, observerID uint, name string) (*IdentifyResult, error) {
	name = sanitizeFilename(name)
	if observerID == 0 || name == "" {
		return nil, ErrInvalidInput
	}

	path := filepath.Join(s.referenceDir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, ErrReferenceNotFound
	}

	p := s.identifier.Identify(path)
	if p == nil {
		return nil, ErrUnidentified
	}
	return s.record(ctx, observerID, path, p, false)
}

// ListReferences returns the image file names in the reference directory.
func (s *IdentifyService) ListReferences() ([]string, error) {
	entries, err := os.ReadDir(s.referenceDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read reference dir failed: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *IdentifyService) ListSightings(observerID uint) ([]model.Sighting, error) {
	if observerID == 0 {
		return nil, ErrInvalidInput
	}
	return s.log.List(observerID), nil
}

func (s *IdentifyService) Stats(observerID uint) (history.Stats, error) {
	if observerID == 0 {
		return history.Stats{}, ErrInvalidInput
	}
	return s.log.Stats(observerID), nil
}

func (s *IdentifyService) Labels() []string {
	return s.identifier.Labels()
}

func (s *IdentifyService) InferenceAvailable() bool {
	return s.identifier.InferenceAvailable()
}

func (s *IdentifyService) record(ctx context.Context, observerID uint, path string, p *vision.Prediction, cached bool) (*IdentifyResult, error) {
	sighting := model.NewSighting(observerID, p.Label, p.Confidence, string(p.Source), path, s.now())
	s.log.Append(sighting)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, sighting); err != nil {
			log.Printf("identify: publish sighting %s failed: %v", sighting.EventID, err)
		}
	}
	return &IdentifyResult{Prediction: p, Sighting: sighting, Cached: cached}, nil
}

func (s *IdentifyService) cachedPrediction(ctx context.Context, hash uint64) (*vision.Prediction, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, ok, err := s.cache.Get(ctx, hash)
	if err != nil {
		log.Printf("identify: read prediction cache failed: %v", err)
		return nil, false
	}
	return p, ok
}

// storeUpload writes data under a per-upload directory so the original file name, which the
// reference fallback matches on, is kept.
func (s *IdentifyService) storeUpload(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	dir, err := os.MkdirTemp(s.uploadDir, "upload-")
	if err != nil {
		return "", fmt.Errorf("create upload slot failed: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write upload failed: %w", err)
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, dir)
	s.mu.Unlock()
	return path, nil
}

// discardUpload removes the slot of an upload no sighting refers to.
func (s *IdentifyService) discardUpload(path string) {
	dir := filepath.Dir(path)

	s.mu.Lock()
	for i, d := range s.uploads {
		if d == dir {
			s.uploads = append(s.uploads[:i], s.uploads[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		log.Printf("identify: remove upload %s failed: %v", dir, err)
	}
}

// Close removes every stored upload. The sighting log is process-lifetime, so its image
// paths are not expected to outlive the service.
func (s *IdentifyService) Close() error {
	s.mu.Lock()
	uploads := s.uploads
	s.uploads = nil
	s.mu.Unlock()

	var closeErr error
	for _, dir := range uploads {
		if err := os.RemoveAll(dir); err != nil {
			closeErr = fmt.Errorf("remove upload %s failed: %w", dir, err)
		}
	}
	return closeErr
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return true
	}
	return false
}
