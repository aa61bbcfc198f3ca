package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/chat"
	"github.com/yourusername/chatbubble/internal/client/api"
	"github.com/yourusername/chatbubble/internal/client/interactive"
	"github.com/yourusername/chatbubble/internal/client/ui"
	"github.com/yourusername/chatbubble/internal/config"
	"github.com/yourusername/chatbubble/internal/logging"
	"github.com/yourusername/chatbubble/internal/storage"
	"github.com/yourusername/chatbubble/internal/widget"
)

var (
	// Global flags
	configPath string
	envFile    string
	backendURL string
	timeout    time.Duration
	storeKind  string
	storeDir   string
	hubURL     string
	verbose    bool

	clearYes   bool
	exportFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatbubble",
	Short: "A chat widget for the terminal",
	Long: `chatbubble shows a "?" bubble in the corner of the terminal. Open it to chat
with the backend or to launch the 3D interactive mode.

The conversation is saved after every message and shared with every other
chatbubble using the same store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runWidget,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or reset the saved conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE:  historyShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	Long: `Replaces the saved conversation with an empty one. This also repairs a
history the widget refuses to load because it is malformed.`,
	Args: cobra.NoArgs,
	RunE: historyClear,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the saved conversation as JSON",
	Args:  cobra.NoArgs,
	RunE:  historyExport,
}

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run the 3D interactive mode directly",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return interactive.NewScene(logger).Run()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	pf.StringVar(&backendURL, "backend", "", "chatbot backend base URL")
	pf.DurationVar(&timeout, "timeout", 0, "backend request timeout (0 = none)")
	pf.StringVar(&storeKind, "store", "", "history store: memory, file, redis, sqlite or remote")
	pf.StringVar(&storeDir, "store-dir", "", "directory for the file store")
	pf.StringVar(&hubURL, "hub", "", "sync hub URL for the remote store")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	historyClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	historyExportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "write to file instead of stdout")

	historyCmd.AddCommand(historyShowCmd, historyClearCmd, historyExportCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(historyCmd, interactiveCmd, configCmd)
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.URL = backendURL
	}
	if flags.Changed("timeout") {
		cfg.Backend.Timeout = timeout
	}
	if flags.Changed("store") {
		cfg.Store.Kind = storeKind
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir = storeDir
	}
	if flags.Changed("hub") {
		cfg.Store.HubURL = hubURL
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}

func openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}
	return store, nil
}

func runWidget(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client := api.NewClient(cfg.Backend.URL, api.WithTimeout(cfg.Backend.Timeout), api.WithLogger(logger))
	w, err := widget.New(ctx, widget.Options{Store: store, Backend: client, Logger: logger})
	if err != nil {
		var decodeErr *chat.DecodeError
		if errors.As(err, &decodeErr) {
			return fmt.Errorf("%w\nrun `chatbubble history clear` to start over", err)
		}
		return err
	}
	defer w.Close()

	logger.Info("starting widget",
		zap.String("backend", client.BaseURL()),
		zap.String("store", cfg.Store.Kind))

	model := ui.NewModel(w,
		ui.WithContext(ctx),
		ui.WithLogger(logger),
		ui.WithSceneFactory(func() tea.ExecCommand { return interactive.NewScene(logger) }),
	)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func loadHistory(ctx context.Context, store storage.Store) (chat.History, string, error) {
	raw, ok, err := store.Get(ctx, widget.HistoryKey)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return chat.History{}, "", nil
	}
	history, err := chat.Decode(raw)
	return history, raw, err
}

func historyShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	history, _, err := loadHistory(ctx, store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintln(out, "No messages.")
		return nil
	}
	for _, msg := range history {
		sender := "Bot"
		if msg.IsUser {
			sender = "You"
		}
		fmt.Fprintf(out, "%s: %s\n", sender, msg.Content)
	}
	return nil
}

func historyClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Fprint(cmd.OutOrStdout(), "Clear the saved conversation? [y/N] ")
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	empty, err := chat.Encode(chat.History{})
	if err != nil {
		return err
	}
	if err := store.Set(ctx, widget.HistoryKey, empty); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
	return nil
}

func historyExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	_, raw, err := loadHistory(ctx, store)
	if err != nil {
		return err
	}
	if raw == "" {
		raw = "[]"
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(raw), "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')

	var out io.Writer = cmd.OutOrStdout()
	if exportFile != "" {
		f, err := os.Create(exportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	_, err = pretty.WriteTo(out)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
