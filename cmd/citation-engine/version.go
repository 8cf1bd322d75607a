package main

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of citation-engine and its built-in taxonomy",
	Long: `Version prints the release of the citation-engine binary, the version of
the taxonomy compiled into it (landmark trials, guideline bodies, relevance
detectors and clinical topics), and the Go toolchain and VCS revision it was
built from. Rankings are reproducible only between runs that report the same
binary and taxonomy versions.`,
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		writeVersion(cmd.OutOrStdout(), info)
	},
}

// writeVersion prints the version report. info may be nil.
func writeVersion(w io.Writer, info *debug.BuildInfo) {
	fmt.Fprintf(w, "citation-engine %s\n", version)
	fmt.Fprintf(w, "  taxonomy  %s\n", taxonomy.Default().Version)
	if info == nil {
		return
	}
	fmt.Fprintf(w, "  go        %s\n", info.GoVersion)

	var revision, modified, built string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			built = s.Value
		}
	}
	if revision != "" {
		if len(revision) > 12 {
			revision = revision[:12]
		}
		if modified == "true" {
			revision += "-dirty"
		}
		fmt.Fprintf(w, "  revision  %s\n", revision)
	}
	if built != "" {
		fmt.Fprintf(w, "  built     %s\n", built)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
