package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/honux/lol-parser/pkg/bin"
	"github.com/honux/lol-parser/pkg/hashes"
	"github.com/honux/lol-parser/pkg/wad"
	"github.com/honux/lol-parser/pkg/wadbin"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bintool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	binPath := fs.String("bin", "", "Path to a BIN file on disk")
	wadPath := fs.String("wad", "", "Path to a WAD archive holding the BIN (use with -entry)")
	entry := fs.String("entry", "", "Asset path or hash key of the BIN inside -wad")
	action := fs.String("action", "json", "Action: json, summary, namehash")
	name := fs.String("name", "", "Name to hash (for action=namehash)")
	hashesPath := fs.String("hashes", "", "JSON hash dictionary to use instead of the built-in one")
	raw := fs.Bool("raw", false, "Keep hashes numeric instead of translating known names")
	outputPath := fs.String("out", "", "Write output to this file instead of stdout")
	verbose := fs.Bool("v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *action == "namehash" {
		if *name == "" {
			fmt.Fprintln(stderr, "Error: -name flag is required for 'namehash' action")
			return 1
		}
		h, err := hashes.NameHash(*name)
		if err != nil {
			fmt.Fprintf(stderr, "Error hashing '%s': %v\n", *name, err)
			return 1
		}
		fmt.Fprintf(stdout, "%d 0x%08x\n", h, h)
		return 0
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	doc, err := load(*binPath, *wadPath, *entry, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	dict := hashes.Default()
	if *hashesPath != "" {
		if dict, err = hashes.LoadDictionaryFile(*hashesPath); err != nil {
			fmt.Fprintf(stderr, "Error loading hash dictionary: %v\n", err)
			return 1
		}
	}
	if *raw {
		dict = nil
	}

	out := stdout
	if *outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
			fmt.Fprintf(stderr, "Error creating output directory: %v\n", err)
			return 1
		}
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error creating output file: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}

	switch *action {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bin.Translate(doc, dict)); err != nil {
			fmt.Fprintf(stderr, "Error encoding JSON: %v\n", err)
			return 1
		}
	case "summary":
		summarize(out, doc, dict)
	default:
		fmt.Fprintf(stderr, "Error: Unknown action '%s'\n", *action)
		fs.Usage()
		return 1
	}
	return 0
}

// load decodes the BIN named either by a path on disk or by an entry inside
// a WAD archive.
func load(binPath, wadPath, entry string, logger *slog.Logger) (*bin.Document, error) {
	switch {
	case binPath != "" && wadPath != "":
		return nil, fmt.Errorf("-bin and -wad are mutually exclusive")
	case binPath != "":
		return bin.Open(binPath, bin.WithLogger(logger))
	case wadPath != "":
		if entry == "" {
			return nil, fmt.Errorf("-entry flag is required with -wad")
		}
		a, err := wad.Open(wadPath, wad.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		defer a.Close()
		return wadbin.Open(a, entry, bin.WithLogger(logger))
	default:
		return nil, fmt.Errorf("one of -bin or -wad is required")
	}
}

func summarize(w io.Writer, doc *bin.Document, dict *hashes.Dictionary) {
	fmt.Fprintf(w, "BIN version %d\n", doc.Version)
	for _, f := range doc.AssociatedFiles {
		fmt.Fprintf(w, "  linked: %s\n", f)
	}
	for _, typeHash := range doc.EntryOrder {
		label := strconv.FormatUint(uint64(typeHash), 10)
		if n, ok := dict.Lookup(typeHash); ok {
			label = n
		}
		fmt.Fprintf(w, "%s: %d entries\n", label, len(doc.Entries[typeHash]))
	}
	for _, d := range doc.Diagnostics {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}
