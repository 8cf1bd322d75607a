//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var binPath = filepath.Join(binDir, binName)

// Taxonomy validates the built-in taxonomy with the CLI.
func Taxonomy() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "taxonomy", "check")
}

// Demo ranks the sample batch file and archives the run.
func Demo() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "rank",
		"--input", filepath.Join("testdata", "sglt2-vs-dpp4.yaml"),
		"--format", "markdown",
		"--output", filepath.Join("output", "sglt2-vs-dpp4.bundle.yaml"),
		"--metrics-file", filepath.Join("output", "citation-engine.prom"),
		"--archive",
	)
}
