package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"dvexport/internal/auth"
	"dvexport/internal/config"
	"dvexport/internal/dataverse"
	"dvexport/internal/export"
	"dvexport/internal/metadata"
	"dvexport/internal/session"
	"dvexport/internal/settings"
)

func main() {
	listSolutions := flag.Bool("list-solutions", false, "list the environment's unmanaged solutions and exit")
	solution := flag.String("solution", "", "solution to browse (overrides the saved choice)")
	tables := flag.String("tables", "", "comma-separated tables to add to the session")
	remove := flag.String("remove", "", "comma-separated tables to drop from the session")
	refresh := flag.Bool("refresh", false, "re-fetch metadata, ignoring the cache")
	doExport := flag.Bool("export", false, "write the metadata dictionary")
	out := flag.String("out", "", "output folder (overrides the saved choice)")
	project := flag.String("project", "", "project name used in the dictionary (overrides the saved choice)")
	flag.Parse()

	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.EnvironmentURL == "" {
		log.Fatal("No environment URL configured (set DATAVERSE_URL)")
	}
	if cfg.AccessToken == "" {
		log.Fatal("No access token configured (set DATAVERSE_TOKEN)")
	}
	log.Printf("Config loaded (environment: %s)", cfg.EnvironmentURL)

	// 2. Build the catalog client
	tokens := auth.NewStaticTokenSource(cfg.AccessToken)
	client := dataverse.NewWebAPIClient(cfg.EnvironmentURL, tokens, cfg.Fetch.Timeout())

	// 3. List solutions is a standalone query
	if *listSolutions {
		if err := printSolutions(ctx, client); err != nil {
			log.Fatalf("Failed to list solutions: %v", err)
		}
		return
	}

	// 4. Load saved preferences and the metadata cache
	saved := settings.LoadSettings(cfg.SettingsPath())
	cache := settings.LoadCache(cfg.CachePath())

	solutionName := firstNonEmpty(*solution, cfg.Solution, saved.LastSolution)
	if solutionName == "" {
		log.Fatal("No solution chosen (use -solution)")
	}

	// 5. Start the background saver; preference edits flow through it. Fatal
	// exits skip deferred calls, so they go through fail, which drains the
	// saver first.
	saver := settings.NewSaver()
	defer saver.Close()
	fail := func(format string, args ...any) {
		saver.Close()
		log.Fatalf(format, args...)
	}

	sink := func(snap *settings.Settings) {
		snap.EnvironmentURL = cfg.EnvironmentURL
		snap.LastSolution = solutionName
		saver.Save(cfg.SettingsPath(), snap)
	}

	// 6. Compile selection rules
	rules, err := session.CompileRules(cfg.SelectionRules)
	if err != nil {
		fail("Failed to compile selection rules: %v", err)
	}

	// 7. Build the session
	store := session.NewStore(saved, rules, sink)
	fetcher := session.NewFetcher(client, cfg.Fetch.Concurrency)
	engine := &session.Engine{Store: store, Fetcher: fetcher, Cache: cache}

	// 8. Scope check: a cache for another environment or solution is useless
	if !cache.IsValidFor(cfg.EnvironmentURL, solutionName) {
		*cache = settings.Cache{
			EnvironmentURL: cfg.EnvironmentURL,
			SolutionName:   solutionName,
		}
	}

	// 9. Seed the session from saved tables plus the -tables flag
	wanted := append([]string(nil), saved.SelectedTables...)
	wanted = append(wanted, splitList(*tables)...)
	for _, name := range splitList(*remove) {
		store.RemoveTable(name)
		wanted = removeName(wanted, name)
	}
	if len(wanted) == 0 {
		fail("No tables selected (use -tables)")
	}

	catalog, err := client.ListSolutionTables(ctx, solutionName)
	if err != nil {
		fail("Failed to list tables for %s: %v", solutionName, err)
	}
	cache.Tables = catalog

	known := make(map[string]bool, len(catalog))
	for _, t := range catalog {
		known[t.LogicalName] = true
	}
	for _, name := range wanted {
		if !known[name] {
			log.Printf("WARN: table %s is not part of solution %s, skipping", name, solutionName)
		}
	}
	store.AddTables(pick(catalog, wanted))

	// 10. Restore from cache, then fetch what is still missing
	names := store.Tables()
	if *refresh {
		log.Printf("Refreshing metadata for %d tables", len(names))
		engine.Refresh(ctx, names)
	} else {
		store.RestoreFromCache(cache)
		engine.LoadAll(ctx, names)
	}
	saver.Save(cfg.CachePath(), cache)

	// 11. Report the session
	for _, snap := range store.Snapshot() {
		marker := ""
		if snap.States[session.KindAttributes] == session.Failed ||
			snap.States[session.KindFormsViews] == session.Failed {
			marker = " (error)"
		}
		log.Printf("%s: %d attributes (%d selected), %d forms, %d views [%s/%s]%s",
			snap.Table.DisplayName, len(snap.Attributes), len(snap.Selected),
			len(snap.Forms), len(snap.Views),
			snap.States[session.KindAttributes], snap.States[session.KindFormsViews], marker)
	}
	for _, failure := range store.FailedTables() {
		log.Printf("WARN: %s %s failed: %v", failure.Table, failure.Kind, failure.Err)
	}

	// 12. Export on request
	if *doExport {
		opts := export.Options{
			Environment:  cfg.EnvironmentURL,
			Solution:     solutionName,
			ProjectName:  firstNonEmpty(*project, cfg.ProjectName, saved.ProjectName, "Dataverse"),
			OutputFolder: firstNonEmpty(*out, cfg.OutputFolder, saved.OutputFolder, "."),
		}
		exporter := &export.Exporter{Client: client}
		path, err := exporter.Run(ctx, store, opts)
		if err != nil {
			fail("Export failed: %v", err)
		}
		log.Printf("Exported %s", path)
	}
}

func printSolutions(ctx context.Context, client dataverse.Client) error {
	solutions, err := client.ListSolutions(ctx)
	if err != nil {
		return err
	}
	for _, s := range solutions {
		fmt.Printf("%-40s %s (%s)\n", s.UniqueName, s.FriendlyName, s.Version)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// pick filters the catalog down to the wanted logical names.
func pick(catalog []metadata.Table, wanted []string) []metadata.Table {
	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}
	out := make([]metadata.Table, 0, len(wanted))
	for _, t := range catalog {
		if want[t.LogicalName] {
			out = append(out, t)
		}
	}
	return out
}

// firstNonEmpty returns the first of its arguments that is not empty.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
