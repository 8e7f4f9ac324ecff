package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/config"
	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/db/memory"
	"github.com/openhouse/property-assistant/internal/documents"
	"github.com/openhouse/property-assistant/internal/embeddings"
	"github.com/openhouse/property-assistant/internal/gaps"
	"github.com/openhouse/property-assistant/internal/harness"
	"github.com/openhouse/property-assistant/internal/logger"
	"github.com/openhouse/property-assistant/internal/retrieval"
	"github.com/openhouse/property-assistant/internal/server"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	reasonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// coreStore is the full storage surface both the Postgres and the
// in-memory backends satisfy.
type coreStore interface {
	documents.ChunkStore
	retrieval.Searcher
	gaps.Store
}

func main() {
	var (
		migrateFlag = flag.Bool("migrate", false, "Print database migration instructions")
		serveFlag   = flag.Bool("serve", false, "Run the HTTP API server")
		ingestFlag  = flag.String("ingest", "", "Ingest a document file (pdf, txt, md)")
		askFlag     = flag.String("ask", "", "Ask a question against the indexed documents")
		testsFlag   = flag.Bool("run-tests", false, "Run the canned question suite and print the scorecard")
		gapsFlag    = flag.Bool("gaps", false, "Print the grouped answer-gap report")

		tenantFlag     = flag.String("tenant", "", "Tenant UUID")
		schemeFlag     = flag.String("scheme", "", "Development (scheme) UUID")
		unitFlag       = flag.String("unit", "", "House type code, e.g. BD01")
		categoriesFlag = flag.String("categories", "", "Comma-separated test categories to run")
		testIDFlag     = flag.String("test-id", "", "Run a single test case by id")

		memoryFlag  = flag.Bool("memory", false, "Use the in-memory store instead of Postgres")
		verboseFlag = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logger.SetVerbose(*verboseFlag)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *migrateFlag {
		printMigrations()
		return
	}

	store, closeStore, err := openStore(cfg, *memoryFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	embedder := embeddings.NewTextEmbedder(
		cfg.Embeddings.BaseURL,
		cfg.Embeddings.Model,
		cfg.Embeddings.Dimensions,
		time.Duration(cfg.Embeddings.TimeoutSecs)*time.Second,
	)

	pipeline := documents.NewPipeline(store, embedder,
		cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap, cfg.Processing.MinChunkLen)

	retrieverOpts := []retrieval.Option{
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
		retrieval.WithQueryExpansion(),
	}
	if cfg.Retrieval.CacheTTLSecs > 0 {
		ttl := time.Duration(cfg.Retrieval.CacheTTLSecs) * time.Second
		retrieverOpts = append(retrieverOpts, retrieval.WithCache(retrieval.NewCache(ttl, 0)))
	}
	retriever := retrieval.NewRetriever(store, embedder, retrieverOpts...)

	recorder := gaps.NewRecorder(store, cfg.Gaps.BufferSize)
	defer recorder.Close()

	gate := retrieval.NewGate(cfg.Retrieval.ConfidenceThreshold, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *serveFlag:
		srv := server.New(retriever, gate, pipeline, store)
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}

	case *ingestFlag != "":
		scope := mustScope(*tenantFlag, *schemeFlag, *unitFlag)
		result, err := pipeline.IngestFile(ctx, scope, *ingestFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error ingesting %s: %v\n", *ingestFlag, err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s (v%d): %d/%d chunks written\n",
			filepath.Base(*ingestFlag), result.Version, result.ChunksWritten, result.ChunksAttempted)

	case *askFlag != "":
		scope := mustScope(*tenantFlag, *schemeFlag, *unitFlag)
		result, retrieveErr := retriever.Retrieve(ctx, scope, *askFlag, 0, -1)
		decision := gate.Evaluate(scope, *askFlag, result, retrieveErr)
		printDecision(decision)

	case *testsFlag || *testIDFlag != "":
		scope := mustScope(*tenantFlag, *schemeFlag, "")
		runner := harness.NewRunner(retriever, gate)
		if *testIDFlag != "" {
			tc, err := harness.FindCase(*testIDFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading test suite: %v\n", err)
				os.Exit(1)
			}
			if tc == nil {
				fmt.Fprintf(os.Stderr, "Unknown test id: %s\n", *testIDFlag)
				os.Exit(1)
			}
			printResults([]harness.TestResult{runner.RunSingle(ctx, scope, *tc, *unitFlag)})
			return
		}
		card, err := runner.RunSuite(ctx, scope, harness.Options{
			Categories:  splitList(*categoriesFlag),
			UnitID:      *unitFlag,
			Concurrency: cfg.Harness.Concurrency,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running tests: %v\n", err)
			os.Exit(1)
		}
		printScorecard(card)
		if card.Failed > 0 {
			os.Exit(1)
		}

	case *gapsFlag:
		schemeID := parseOptionalUUID(*schemeFlag, "scheme")
		tenantID := parseOptionalUUID(*tenantFlag, "tenant")
		groups, err := gaps.ListGroups(ctx, store, schemeID, tenantID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing gaps: %v\n", err)
			os.Exit(1)
		}
		printGaps(groups)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openStore(cfg *config.Config, useMemory bool) (coreStore, func(), error) {
	if useMemory {
		return memory.NewStore(), func() {}, nil
	}
	pg, err := db.New(cfg.Database.ConnectionString, db.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Duration(cfg.Database.ConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.Database.ConnIdleMins) * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func mustScope(tenant, scheme, unit string) db.Scope {
	scope := db.Scope{
		TenantID:      parseOptionalUUID(tenant, "tenant"),
		DevelopmentID: parseOptionalUUID(scheme, "scheme"),
		HouseTypeCode: unit,
	}
	if err := scope.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: -tenant and -scheme are required\n")
		os.Exit(2)
	}
	return scope
}

func parseOptionalUUID(raw, name string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -%s must be a valid UUID\n", name)
		os.Exit(2)
	}
	return id
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printDecision(decision retrieval.Decision) {
	if decision.Answerable {
		fmt.Println(passStyle.Render(fmt.Sprintf("ANSWERABLE (top similarity %.4f, %d chunks)",
			decision.TopSimilarity, len(decision.Chunks))))
	} else {
		fmt.Println(failStyle.Render("NOT ANSWERABLE") + " " + reasonStyle.Render(decision.GapReason))
	}
	for i, passage := range retrieval.Passages(decision.Chunks) {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("--- chunk %d (%.4f) ---", i+1, passage.Similarity)))
		fmt.Println(passage.Content)
	}
}

func printResults(results []harness.TestResult) {
	for _, r := range results {
		status := passStyle.Render("PASS")
		if !r.Passed {
			status = failStyle.Render("FAIL")
		}
		line := fmt.Sprintf("%s  %-14s %-12s %.4f  %s", status, r.TestID, r.Category, r.TopSimilarity, r.Question)
		fmt.Println(line)
		if r.Notes != "" {
			fmt.Println("      " + mutedStyle.Render(r.Notes))
		}
		if r.Error != "" {
			fmt.Println("      " + failStyle.Render(r.Error))
		}
	}
}

func printScorecard(card *harness.Scorecard) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Test run %s", card.RunID)))
	printResults(card.Results)

	fmt.Println()
	fmt.Println(titleStyle.Render("By category"))
	categories := make([]string, 0, len(card.ByCategory))
	for name := range card.ByCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		score := card.ByCategory[name]
		fmt.Printf("  %-14s %d/%d (%.0f%%)\n", name, score.Passed, score.Total, score.PassRate)
	}

	fmt.Println()
	summary := fmt.Sprintf("Total: %d/%d passed (%.1f%%)", card.Passed, card.TotalTests, card.PassRate)
	if card.Failed == 0 {
		fmt.Println(passStyle.Render(summary))
	} else {
		fmt.Println(failStyle.Render(summary))
	}
}

func printGaps(groups []db.GapGroup) {
	if len(groups) == 0 {
		fmt.Println("No answer gaps recorded.")
		return
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Answer gaps (%d groups)", len(groups))))
	for _, g := range groups {
		fmt.Printf("%3dx  %-22s %-12s %s\n",
			g.Count, reasonStyle.Render(g.GapReason), g.IntentType, g.UserQuestion)
		fmt.Println("      " + mutedStyle.Render(fmt.Sprintf("last asked %s", g.LastAsked.Format(time.RFC3339))))
	}
}

func printMigrations() {
	migrationDir := "migrations"
	if _, err := os.Stat(migrationDir); os.IsNotExist(err) {
		exePath, err := os.Executable()
		if err == nil {
			migrationDir = filepath.Join(filepath.Dir(exePath), "..", "migrations")
		}
	}

	fmt.Printf("Run migrations with psql:\n")
	fmt.Printf("  psql postgres -f %s\n", filepath.Join(migrationDir, "00001_init_schema.up.sql"))
	fmt.Printf("The pgvector extension is required: CREATE EXTENSION IF NOT EXISTS vector;\n")
}
