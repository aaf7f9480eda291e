package config

import (
	"os"
	"path/filepath"
)

// Paths is the directory layout of a run's outputs under one root.
type Paths struct {
	Root string
}

// NewPaths returns the layout rooted at dir; "" means the working
// directory.
func NewPaths(dir string) Paths {
	if dir == "" {
		dir = "."
	}
	return Paths{Root: dir}
}

// ProcessedDir holds included records.
func (p Paths) ProcessedDir() string {
	return filepath.Join(p.Root, "data", "processed")
}

// ExcludedDir holds records dropped by the quality filter.
func (p Paths) ExcludedDir() string {
	return filepath.Join(p.Root, "data", "excluded")
}

// FlowDir holds flow documents and their text reports.
func (p Paths) FlowDir() string {
	return filepath.Join(p.Root, "data", "prisma_flows")
}

// QualityDir holds collection quality reports.
func (p Paths) QualityDir() string {
	return filepath.Join(p.Root, "data", "quality")
}

// LogDir holds screening logs and summaries.
func (p Paths) LogDir() string {
	return filepath.Join(p.Root, "logs")
}

// EnsureDirs creates every output directory.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ProcessedDir(), p.ExcludedDir(), p.FlowDir(), p.QualityDir(), p.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
