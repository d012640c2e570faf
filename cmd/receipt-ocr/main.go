package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipt-ocr-service/internal/receipt"
	"receipt-ocr-service/internal/recognition"
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

	fs := ff.NewFlagSet("receipt-ocr")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "receipt-ocr.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./documents", "Storage directory path")
		recognizerType = fs.StringLong("recognizer", "azure", "Recognizer type: 'azure' or 'gemini'")
		azureEndpoint  = fs.StringLong("azure-endpoint", "", "Azure Document Intelligence endpoint (or set RECEIPT_OCR_AZURE_ENDPOINT)")
		azureKey       = fs.StringLong("azure-key", "", "Azure Document Intelligence API key (or set RECEIPT_OCR_AZURE_KEY)")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set RECEIPT_OCR_GEMINI_KEY)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		tolerance      = fs.Float64Long("tolerance", 0.01, "Reconciliation tolerance in currency units")
		reviewConf     = fs.Float64Long("review-confidence", 0.60, "OCR confidence below which a record needs review")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize recognizer based on type
	var recognizer recognition.Recognizer
	switch *recognizerType {
	case "azure":
		endpoint := *azureEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("AZURE_DOC_INTEL_ENDPOINT")
		}
		key := *azureKey
		if key == "" {
			key = os.Getenv("AZURE_DOC_INTEL_KEY")
		}
		slog.Info("Initializing Azure Document Intelligence recognizer...", "endpoint", endpoint)
		recognizer, err = recognition.NewAzure(endpoint, key)
		if err != nil {
			slog.Error("Failed to initialize Azure recognizer", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = recognition.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid recognizer type", "type", *recognizerType, "valid", "azure or gemini")
		os.Exit(1)
	}
	defer recognizer.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize normalization and service
	normalizer := receipt.NewNormalizer(receipt.Options{
		Tolerance:        *tolerance,
		ReviewConfidence: *reviewConf,
	})
	receiptService := receipt.NewService(db, recognizer, store, normalizer)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth, version)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
