// SPDX-License-Identifier: MIT

// bbctl validates catalog documents and previews scrape plans offline,
// without a running daemon.
//
// Usage:
//
//	bbctl validate -dir ./catalog
//	bbctl validate -f shops.yaml
//	bbctl validate -f mixed.yaml -items
//	bbctl plan -dir ./catalog -shop bike_components
//
// Exit codes:
//   - 0: input is valid
//   - 1: input is invalid (parse, validation or reference error)
//   - 2: usage error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eardbi/bike-builds-api/internal/catalog"
	"github.com/eardbi/bike-builds-api/internal/jobs"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
	"github.com/eardbi/bike-builds-api/internal/model"
	"github.com/eardbi/bike-builds-api/internal/scrape"
)

var Version = "dev"

func main() {
	// The CLI prints results itself; logging stays out of the way.
	bblog.Configure(bblog.Config{Level: "error", Service: "bbctl"})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		os.Exit(runValidate(os.Args[2:]))
	case "plan":
		os.Exit(runPlan(os.Args[2:]))
	case "version", "-version", "--version":
		fmt.Println(Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  bbctl validate -dir <catalog-dir>")
	fmt.Fprintln(os.Stderr, "  bbctl validate -f <document> [-items]")
	fmt.Fprintln(os.Stderr, "  bbctl plan -dir <catalog-dir> -shop <shop-id>")
}

// runValidate checks catalog documents: a whole directory through the same
// pipeline the daemon's sync uses, or a single file through the adapters.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	dir := fs.String("dir", "", "catalog directory to validate")
	file := fs.String("f", "", "single catalog document to validate")
	items := fs.Bool("items", false, "treat the file as a mixed-collection document")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch {
	case *dir != "" && *file != "":
		fmt.Fprintln(os.Stderr, "Error: -dir and -f are mutually exclusive")
		return 2
	case *dir != "":
		return validateDir(*dir)
	case *file != "":
		return validateFile(*file, *items)
	default:
		fmt.Fprintln(os.Stderr, "Error: one of -dir or -f is required")
		return 2
	}
}

// validateDir runs the sync pipeline against throwaway stores: strict
// decoding, item validation and reference checks, without touching any
// daemon state.
func validateDir(dir string) int {
	store := catalog.NewMemoryStore()
	defer func() { _ = store.Close() }()

	scratch, err := os.MkdirTemp("", "bbctl-validate-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	status, err := jobs.Sync(context.Background(), jobs.Config{
		CatalogDir: dir,
		DataDir:    scratch,
		Store:      store,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error in %s:\n  %v\n", dir, err)
		return 1
	}

	fmt.Printf("✓ %s is valid (%d files, %d items)\n", dir, status.Files, status.Items)
	return 0
}

// validateFile checks one document. The filename stem picks the collection
// unless -items requests the mixed-collection form.
func validateFile(path string, mixed bool) int {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied CLI path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			fmt.Fprintf(os.Stderr, "Parse error in %s:\n  %v\n", path, err)
			return 1
		}
	}

	var decoded []model.Item
	if mixed {
		decoded, err = model.DecodeAnyItems(data)
	} else {
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		collection, cerr := model.ParseCollection(stem)
		if cerr != nil || !collection.HasItems() {
			fmt.Fprintf(os.Stderr, "Error: filename %q does not name an item collection; use -items for mixed documents\n", filepath.Base(path))
			return 2
		}
		decoded, err = model.DecodeItems(collection, data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error in %s:\n  %v\n", path, err)
		return 1
	}

	fmt.Printf("✓ %s is valid (%d items)\n", path, len(decoded))
	return 0
}

// runPlan loads a catalog directory and prints the scrape targets for one
// shop as indented JSON.
func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	dir := fs.String("dir", "", "catalog directory")
	shopID := fs.String("shop", "", "shop ID to plan")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" || *shopID == "" {
		fmt.Fprintln(os.Stderr, "Error: -dir and -shop are required")
		return 2
	}

	ctx := context.Background()
	store := catalog.NewMemoryStore()
	defer func() { _ = store.Close() }()

	scratch, err := os.MkdirTemp("", "bbctl-plan-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if _, err := jobs.Sync(ctx, jobs.Config{CatalogDir: *dir, DataDir: scratch, Store: store}); err != nil {
		fmt.Fprintf(os.Stderr, "Validation error in %s:\n  %v\n", *dir, err)
		return 1
	}

	item, err := store.Get(ctx, model.CollectionShops, model.ID(*shopID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: shop %q not found in %s\n", *shopID, *dir)
		return 1
	}
	shop := item.(*model.Shop)

	partItems, err := store.List(ctx, model.CollectionParts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	parts := make([]*model.Part, 0, len(partItems))
	for _, it := range partItems {
		if part, ok := it.(*model.Part); ok {
			parts = append(parts, part)
		}
	}

	targets, err := scrape.Plan(shop, parts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plan error for shop %q:\n  %v\n", *shopID, err)
		return 1
	}

	out, err := json.MarshalIndent(targets, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// yamlToJSON rewrites a YAML document as JSON so the strict model decoders
// apply.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return json.Marshal(v)
}
