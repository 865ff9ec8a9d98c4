package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexgetty/roux/internal/graphmodel"
)

// CheckReport is the result of an integrity sweep (spec supplement: `roux
// check`, grounded on the teacher's memory.MemoryStore.Check/Repair
// contract). It never mutates state; every finding is surfaced as a
// warning, not silently repaired.
type CheckReport struct {
	CaseCollisions []string
	DimensionDrift []int
	OrphanTagRows  int
	MirrorVersion  uint64
	Warnings       []string
}

// Check runs a read-only integrity sweep over the current Cache + Graph
// Mirror snapshot, reporting I7 case collisions on disk, I4 embedding
// dimension drift, and I3 orphaned tag rows.
func (s *Store) Check() (CheckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := CheckReport{MirrorVersion: s.mirror.Version()}

	seen := make(map[string][]string)
	walkErr := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".md" {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		id := graphmodel.NormalizeID(rel)
		seen[id] = append(seen[id], rel)
		return nil
	})
	if walkErr != nil {
		return CheckReport{}, fmt.Errorf("walk source root: %w", walkErr)
	}
	for id, paths := range seen {
		if len(paths) > 1 {
			report.CaseCollisions = append(report.CaseCollisions, fmt.Sprintf("%s: %s", id, strings.Join(paths, ", ")))
		}
	}

	dims, err := s.cache.DistinctEmbeddingDimensions()
	if err != nil {
		return CheckReport{}, err
	}
	if len(dims) > 1 {
		report.DimensionDrift = dims
	}

	orphans, err := s.cache.OrphanTagRows()
	if err != nil {
		return CheckReport{}, err
	}
	report.OrphanTagRows = orphans

	for _, c := range report.CaseCollisions {
		s.warnings.Add("case collision: %s", c)
	}
	if len(report.DimensionDrift) > 1 {
		s.warnings.Add("embedding dimension drift: %v", report.DimensionDrift)
	}
	if report.OrphanTagRows > 0 {
		s.warnings.Add("%d orphaned tags_index rows", report.OrphanTagRows)
	}
	report.Warnings = s.warnings.Drain()

	return report, nil
}
