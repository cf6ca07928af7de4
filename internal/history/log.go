package history

import (
	"sort"
	"sync"
	"time"

	"dragonfly-id/internal/model"
)

// Log is the in-process, append-only sighting history. It is owned by the caller of the
// identification pipeline and lives as long as the process.
type Log struct {
	mu        sync.RWMutex
	sightings []model.Sighting
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(s model.Sighting) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sightings = append(l.sightings, s)
}

// List returns the observer's sightings, newest first. observerID 0 lists everyone's.
func (l *Log) List(observerID uint) []model.Sighting {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Sighting, 0)
	for i := len(l.sightings) - 1; i >= 0; i-- {
		if observerID == 0 || l.sightings[i].ObserverID == observerID {
			out = append(out, l.sightings[i])
		}
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sightings)
}

// Stats summarizes a set of sightings.
type Stats struct {
	Total             int            `json:"total"`
	DistinctSpecies   int            `json:"distinct_species"`
	BySpecies         map[string]int `json:"by_species"`
	AverageConfidence float32        `json:"average_confidence"`
	MostSeen          string         `json:"most_seen,omitempty"`
	FirstSeen         *time.Time     `json:"first_seen,omitempty"`
	LastSeen          *time.Time     `json:"last_seen,omitempty"`
}

func (l *Log) Stats(observerID uint) Stats {
	return Summarize(l.List(observerID))
}

// Summarize computes Stats. Ties for MostSeen go to the alphabetically first species.
func Summarize(sightings []model.Sighting) Stats {
	st := Stats{BySpecies: make(map[string]int)}
	if len(sightings) == 0 {
		return st
	}

	var sum float64
	first, last := sightings[0].Timestamp, sightings[0].Timestamp
	for _, s := range sightings {
		st.BySpecies[s.Label]++
		sum += float64(s.Confidence)
		if s.Timestamp.Before(first) {
			first = s.Timestamp
		}
		if s.Timestamp.After(last) {
			last = s.Timestamp
		}
	}

	st.Total = len(sightings)
	st.DistinctSpecies = len(st.BySpecies)
	st.AverageConfidence = float32(sum / float64(len(sightings)))
	st.FirstSeen = &first
	st.LastSeen = &last

	species := make([]string, 0, len(st.BySpecies))
	for name := range st.BySpecies {
		species = append(species, name)
	}
	sort.Strings(species)
	best := 0
	for _, name := range species {
		if st.BySpecies[name] > best {
			best = st.BySpecies[name]
			st.MostSeen = name
		}
	}
	return st
}
