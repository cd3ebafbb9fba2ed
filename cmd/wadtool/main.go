package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/honux/lol-parser/pkg/hashes"
	"github.com/honux/lol-parser/pkg/wad"
	"github.com/honux/lol-parser/pkg/wadbin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wadtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	wadPath := fs.String("wad", "", "Path to the WAD file (required except for 'hash')")
	action := fs.String("action", "list", "Action to perform: list, extract, extract-all, hash, verify")
	itemPath := fs.String("path", "", "Asset path or 16-digit hash key of the entry to extract or hash")
	outputPath := fs.String("out", ".", "Output directory for extracted files")
	workers := fs.Int("workers", 0, "Parallel extraction workers (0 = one per CPU, -1 = serial)")
	strict := fs.Bool("strict", false, "Treat integrity and size mismatches as errors")
	skipExisting := fs.Bool("skip-existing", false, "Leave files that already exist in the output directory untouched")
	verbose := fs.Bool("v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *action == "hash" {
		if *itemPath == "" {
			fmt.Fprintln(stderr, "Error: -path flag is required for 'hash' action")
			return 1
		}
		fmt.Fprintln(stdout, hashes.PathHash(*itemPath))
		return 0
	}

	if *wadPath == "" {
		fmt.Fprintln(stderr, "Error: -wad flag is required")
		fs.Usage()
		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	a, err := wad.Open(*wadPath,
		wad.WithLogger(logger),
		wad.WithStrict(*strict),
		wad.WithWorkers(*workers),
		wad.WithSkipExisting(*skipExisting))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening WAD file %s: %v\n", *wadPath, err)
		return 1
	}
	defer a.Close()

	switch *action {
	case "list":
		listEntries(stdout, a)
	case "extract":
		if *itemPath == "" {
			fmt.Fprintln(stderr, "Error: -path flag is required for 'extract' action")
			return 1
		}
		e, err := wadbin.Resolve(a, *itemPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error extracting '%s': %v\n", *itemPath, err)
			return 1
		}
		outcome, err := a.ExtractFile(e.Key, *outputPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error extracting '%s': %v\n", *itemPath, err)
			return 1
		}
		switch outcome {
		case wad.SkippedRedirect:
			fmt.Fprintf(stdout, "Entry %s is a redirect, nothing extracted\n", e.Key)
		case wad.SkippedExisting:
			fmt.Fprintf(stdout, "Entry %s already exists in '%s', skipped\n", e.Key, *outputPath)
		default:
			fmt.Fprintf(stdout, "Entry %s extracted to '%s'\n", e.Key, *outputPath)
		}
	case "extract-all":
		if err := a.ExtractAll(ctx, *outputPath); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(stderr, "Extraction interrupted")
			}
			fmt.Fprintf(stderr, "Error during extract-all: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "All entries extracted to:", *outputPath)
	case "verify":
		if failed := verifyEntries(stdout, a); failed > 0 {
			fmt.Fprintf(stderr, "%d entries failed verification\n", failed)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "Error: Unknown action '%s'\n", *action)
		fs.Usage()
		return 1
	}

	for _, d := range a.Diagnostics() {
		fmt.Fprintln(stderr, "warning:", d)
	}
	return 0
}

func listEntries(w io.Writer, a *wad.Archive) {
	fmt.Fprintf(w, "WAD v%d.%d, %d entries\n", a.Version, a.VersionMinor, a.Len())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tOFFSET\tSTORED\tSIZE\tCOMPRESSION")
	for _, e := range a.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", e.Key, e.Offset, e.StoredSize(), e.RawSize, e.Compression)
	}
	tw.Flush()
}

// verifyEntries checks every stored checksum and returns the failure count.
func verifyEntries(w io.Writer, a *wad.Archive) int {
	failed := 0
	checked := 0
	for _, e := range a.Entries() {
		if !e.HasChecksum {
			continue
		}
		checked++
		if err := a.Verify(e); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", e.Key, err)
		}
	}
	fmt.Fprintf(w, "%d checked, %d failed\n", checked, failed)
	return failed
}
