package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/config"
	"github.com/yourusername/chatbubble/internal/logging"
	"github.com/yourusername/chatbubble/internal/server"
)

var (
	// Global flags
	configPath string
	envFile    string
	addr       string
	uploadDir  string
	responder  string
	ollamaURL  string
	ollamaMdl  string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "chatbubble-server",
	Short: "Development backend for the chatbubble widget",
	Long: `Serves the chatbot API the widget talks to:

  POST /api/chatbot   {"userInput": "..."} -> {"response": "..."}
  POST /api/upload    multipart field "file"
  GET  /ws/storage    storage sync hub for the "remote" store
  GET  /health`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP service address")
	rootCmd.Flags().StringVar(&uploadDir, "upload-dir", "", "directory uploaded files are saved to")
	rootCmd.Flags().StringVar(&responder, "responder", "", "reply source: echo or ollama")
	rootCmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Ollama base URL")
	rootCmd.Flags().StringVar(&ollamaMdl, "ollama-model", "", "Ollama model name")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "log file (default stderr)")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags override everything else
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Changed("upload-dir") {
		cfg.Server.UploadDir = uploadDir
	}
	if flags.Changed("responder") {
		cfg.Server.Responder = responder
	}
	if flags.Changed("ollama-url") {
		cfg.Server.OllamaURL = ollamaURL
	}
	if flags.Changed("ollama-model") {
		cfg.Server.OllamaModel = ollamaMdl
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	// The server logs to stderr unless told otherwise
	cfg.Log.File = logFile

	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	var resp server.Responder = server.EchoResponder{}
	if cfg.Server.Responder == "ollama" {
		resp = &server.OllamaResponder{
			BaseURL: cfg.Server.OllamaURL,
			Model:   cfg.Server.OllamaModel,
			Client:  &http.Client{Timeout: 2 * time.Minute},
		}
	}

	srv := server.NewServer(server.Options{
		Responder: resp,
		UploadDir: cfg.Server.UploadDir,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("responder", cfg.Server.Responder),
		zap.String("upload_dir", cfg.Server.UploadDir))

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
