// Package main is the Benkyo CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/benkyo/internal/cli"
	"github.com/hyperjump/benkyo/internal/config"
	"github.com/hyperjump/benkyo/internal/extract"
	"github.com/hyperjump/benkyo/internal/genai"
	"github.com/hyperjump/benkyo/internal/imagestore"
	"github.com/hyperjump/benkyo/internal/ingest"
	"github.com/hyperjump/benkyo/internal/keyword"
	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/internal/ocr"
	"github.com/hyperjump/benkyo/internal/query"
	"github.com/hyperjump/benkyo/internal/server"
	"github.com/hyperjump/benkyo/internal/storage"
	"github.com/hyperjump/benkyo/internal/vector"
	"github.com/hyperjump/benkyo/internal/watcher"
	"github.com/hyperjump/benkyo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/benkyo/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. A .env file in the current directory is loaded first so
// GEMINI_API_KEY can live next to the project config.
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "sources":
		runSources()
	case "delete":
		runDelete()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("benkyo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: benkyo <command> [flags]

Commands:
  server    Start the HTTP API server (with directory watching if configured)
  ingest    Extract, chunk and embed document files into the notes store
  ask       Ask a question against the ingested notes (no args = chat mode)
  sources   List ingested source files
  delete    Remove a source and everything derived from it
  search    Keyword search over ingested chunks
  status    Show store statistics
  reset     Wipe all stored data
  version   Print version

Run 'benkyo <command> -h' for command flags.
`)
}

// components holds the wired application services.
type components struct {
	Client     *genai.Client
	Catalog    storage.Catalog
	Vector     *vector.Chromem
	Keywords   *keyword.Index
	Images     *imagestore.Store
	Extractor  *extract.Extractor
	Pipeline   *ingest.Pipeline
	Maintainer *ingest.Maintainer
	Query      *query.Service
}

// Close releases store handles.
func (c *components) Close() {
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

// initializeComponents wires the full stack from config.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	client, err := genai.NewClient(genai.Config{
		APIKey:          cfg.Gemini.APIKey,
		BaseURL:         cfg.Gemini.BaseURL,
		GenerationModel: cfg.Gemini.GenerationModel,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		Timeout:         cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	vec, err := vector.Open(cfg.Storage.VectorDBPath, cfg.Storage.CollectionName, client.EmbeddingFunc())
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	keywords, err := keyword.Open(cfg.Storage.KeywordIndexPath)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	images, err := imagestore.New(cfg.Storage.ImageStorePath)
	if err != nil {
		keywords.Close()
		catalog.Close()
		return nil, fmt.Errorf("open image store: %w", err)
	}

	var engine ocr.Engine
	if cfg.OCR.EnabledOrDefault() {
		engine = ocr.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.Language)
	}
	extractor := extract.NewExtractor(images, engine,
		extract.WithLogger(logger),
		extract.WithImageRecorder(func(name, source string, page int) {
			if err := catalog.RecordImage(context.Background(), name, source, page); err != nil {
				logger.Warn("record image failed", zap.String("name", name), zap.Error(err))
			}
		}),
	)

	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		keywords.Close()
		catalog.Close()
		return nil, err
	}
	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		BatchSize:    cfg.Ingest.BatchSize,
		PacingDelay:  cfg.Ingest.PacingDelay,
		QuotaBackoff: cfg.Ingest.QuotaBackoff,
		MaxRetries:   cfg.Ingest.MaxRetries,
	}, extractor, chunker, vec, catalog, keywords, genai.IsQuotaErr, logger)
	maintainer := ingest.NewMaintainer(vec, catalog, keywords, images, logger)
	querySvc := query.NewService(query.Config{
		TopK:         cfg.Query.TopK,
		QuotaBackoff: cfg.Query.QuotaBackoff,
		MaxRetries:   cfg.Query.MaxRetries,
	}, vec, client, genai.IsQuotaErr, logger)

	return &components{
		Client:     client,
		Catalog:    catalog,
		Vector:     vec,
		Keywords:   keywords,
		Images:     images,
		Extractor:  extractor,
		Pipeline:   pipeline,
		Maintainer: maintainer,
		Query:      querySvc,
	}, nil
}

// setup loads config, builds the logger and wires components. Shared by the
// direct-access commands.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, comps
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				out := comps.Pipeline.Ingest(context.Background(), []string{path}, nil)
				logger.Info("watch ingest", zap.String("path", path),
					zap.Bool("ok", out.OK), zap.String("message", out.Message))
			},
			func(path string) {
				msg, err := comps.Maintainer.DeleteSource(context.Background(), filepath.Base(path))
				if err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
					return
				}
				logger.Info("watch delete", zap.String("message", msg))
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExisting()
	}

	srv := server.NewServer(comps.Pipeline, comps.Query, comps.Maintainer,
		comps.Keywords, comps.Catalog, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: benkyo ingest [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	out := comps.Pipeline.Ingest(context.Background(), fs.Args(), func(status string, fraction float64) {
		fmt.Printf("[%3.0f%%] %s\n", fraction*100, status)
	})
	fmt.Println(out.Message)
	if !out.OK {
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask via a running server instead of direct store access")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: benkyo ask [flags] [question]\n\n")
		fmt.Fprintf(fs.Output(), "With a question, answers once. Without one, starts an interactive chat.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	answerFn := func(q string, history []models.Turn) string {
		if *serverURL != "" {
			answer, err := askViaHTTP(*serverURL, q, history)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
				os.Exit(1)
			}
			return answer
		}
		_, logger, comps := setup(*configPath, *debug)
		defer logger.Sync()
		defer comps.Close()
		return comps.Query.Answer(context.Background(), q, history)
	}

	if question != "" {
		fmt.Println(answerFn(question, nil))
		return
	}

	// Interactive mode keeps the conversation history so follow-up
	// questions can refer back to earlier answers.
	if *serverURL == "" {
		_, logger, comps := setup(*configPath, *debug)
		defer logger.Sync()
		defer comps.Close()
		answerFn = func(q string, history []models.Turn) string {
			return comps.Query.Answer(context.Background(), q, history)
		}
	}
	var history []models.Turn
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Println("Chat with your notes. Empty line or Ctrl-D exits.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			return
		}
		answer := answerFn(q, history)
		fmt.Println(answer)
		history = append(history,
			models.Turn{Role: models.RoleUser, Text: q},
			models.Turn{Role: models.RoleModel, Text: answer},
		)
	}
}

func runSources() {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	sources, err := comps.Maintainer.ListSources(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "List sources failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSources(os.Stdout, sources, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: benkyo delete [flags] <source>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	msg, err := comps.Maintainer.DeleteSource(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(msg)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: benkyo search [flags] <query>\n\n")
		fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	matches, err := comps.Keywords.Search(queryStr, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	// Retry with typo tolerance when an exact search comes up empty.
	if len(matches) == 0 && !*fuzzy {
		matches, err = comps.Keywords.Search(queryStr, *limit, true)
		if err == nil && len(matches) > 0 && format == cli.OutputText {
			fmt.Println("(no exact matches; showing fuzzy results)")
		}
	}
	if err := cli.WriteMatches(os.Stdout, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	ctx := context.Background()
	chunks, err := comps.Catalog.CountChunks(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	sources, err := comps.Catalog.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sources: %d\nChunks:  %d\nVectors: %d\n", len(sources), chunks, comps.Vector.Count())
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !*yes {
		fmt.Print("This deletes all ingested notes, embeddings and diagrams. Continue? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Aborted.")
			return
		}
	}

	for _, path := range []string{
		cfg.Storage.VectorDBPath,
		cfg.Storage.KeywordIndexPath,
		cfg.Storage.CatalogPath,
		cfg.Storage.ImageStorePath,
	} {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to remove %s: %v\n", path, err)
			os.Exit(1)
		}
	}
	fmt.Println("All data removed.")
}

// askViaHTTP sends a question to a running server's ask endpoint.
func askViaHTTP(serverURL, question string, history []models.Turn) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"question": question,
		"history":  history,
	})
	if err != nil {
		return "", err
	}
	u, err := url.JoinPath(serverURL, "/api/v1/ask")
	if err != nil {
		return "", err
	}
	resp, err := http.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Answer, nil
}

// argsReorder moves flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "benkyo ask \"question\" -debug"
// would otherwise leave -debug unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}
