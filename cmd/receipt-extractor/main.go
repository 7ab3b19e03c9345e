package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/expense"
	"github.com/zombor/receipt-extractor/internal/ocr"
	"github.com/zombor/receipt-extractor/internal/perplexity"
	"github.com/zombor/receipt-extractor/internal/pipeline"
	"github.com/zombor/receipt-extractor/internal/ratelimit"
	"github.com/zombor/receipt-extractor/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; real environment variables still apply
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-extractor")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "receipts.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./receipts", "Storage directory path")
		engineType   = fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		tessLanguage = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		aiKey        = fs.StringLong("perplexity-key", "", "Perplexity API key (or set PERPLEXITY_API_KEY env var)")
		aiURL        = fs.StringLong("perplexity-url", perplexity.DefaultBaseURL, "Perplexity API base URL")
		aiModel      = fs.StringLong("perplexity-model", perplexity.DefaultModel, "Perplexity model name")
		aiTimeout    = fs.DurationLong("ai-timeout", perplexity.DefaultTimeout, "Timeout for each AI service request")
		ocrTimeout   = fs.DurationLong("ocr-timeout", pipeline.DefaultOCRTimeout, "Timeout for text recognition")
		rateLimit    = fs.IntLong("rate-limit", ratelimit.DefaultLimit, "AI calls allowed per rate limit window")
		rateWindow   = fs.DurationLong("rate-window", ratelimit.DefaultWindow, "Rate limit window")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_            = fs.StringLong("config", "", "Config file (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_EXTRACTOR"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Amounts are served as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Initialize OCR engine based on type
	var engine ocr.Engine
	var err error
	switch *engineType {
	case "tesseract":
		slog.Info("Initializing Tesseract engine...", "language", *tessLanguage)
		engine, err = ocr.NewTesseract(*tessLanguage)
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini engine...", "model", *geminiModel)
		engine, err = ocr.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama engine...", "url", *ollamaURL, "model", *ollamaModel)
		engine, err = ocr.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid OCR engine", "type", *engineType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize OCR engine", "type", *engineType, "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Without a key, receipts that need the AI service fail with a configuration error
	var escalator pipeline.Escalator
	apiKey := *aiKey
	if apiKey == "" {
		apiKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if apiKey != "" {
		escalator = perplexity.NewClient(perplexity.Config{
			APIKey:  apiKey,
			BaseURL: *aiURL,
			Model:   *aiModel,
			Timeout: *aiTimeout,
		})
		slog.Info("AI escalation enabled", "model", *aiModel)
	} else {
		slog.Warn("No Perplexity API key configured; receipts the basic extractor cannot read will fail")
	}

	extractor := pipeline.New(engine, escalator, ratelimit.New(*rateLimit, *rateWindow), pipeline.Config{
		OCRTimeout: *ocrTimeout,
		AITimeout:  *aiTimeout * 4, // every retry attempt plus backoff
	})

	if files := fs.GetArgs(); len(files) > 0 {
		os.Exit(extractFiles(extractor, files))
	}

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	server := receipt.NewServer(receipt.NewService(db, extractor, store), receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// fileResult is one line of one-shot output
type fileResult struct {
	File   string          `json:"file"`
	Result *expense.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// extractFiles prints one JSON result per file and returns the process exit code
func extractFiles(extractor *pipeline.Pipeline, files []string) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	code := 0
	for _, path := range files {
		out := fileResult{File: path}

		data, err := os.ReadFile(path)
		if err == nil {
			out.Result, err = extractor.Extract(context.Background(), data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
		}
		if err != nil {
			slog.Error("Failed to extract receipt", "file", path, "error", err)
			out.Error = err.Error()
			code = 1
		}

		if err := enc.Encode(out); err != nil {
			slog.Error("Error encoding result", "error", err)
			code = 1
		}
	}
	return code
}
