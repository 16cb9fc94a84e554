// Command claude-terminal is an interactive terminal client for the Claude
// Code CLI: a conversation TUI with streaming output, shell passthrough,
// voice input, and cross-session messaging.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bazelment/claude-terminal/app"
	"github.com/bazelment/claude-terminal/config"
	"github.com/bazelment/claude-terminal/sessions"
	"github.com/bazelment/claude-terminal/voice"
)

var (
	modelFlag    string
	continueFlag bool
	resumeFlag   string
	dirFlag      string
	configFlag   string
	debugFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "claude-terminal",
	Short: "Interactive terminal client for the Claude Code CLI",
	Long: `A conversation TUI wrapping the Claude Code CLI. Messages stream back
token by token; !-prefixed lines run in the shell and feed recent
terminal activity to the next turn; /-commands manage the session.

Requires the claude binary on PATH. Voice transcription uses the
OpenAI Whisper API and needs OPENAI_API_KEY.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "Model to use (default from config, else sonnet)")
	rootCmd.Flags().BoolVar(&continueFlag, "continue", false, "Continue the most recent conversation")
	rootCmd.Flags().StringVar(&resumeFlag, "resume", "", "Resume a specific session id")
	rootCmd.Flags().StringVar(&dirFlag, "dir", "", "Working directory for the session")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Config file path (default: "+config.DefaultPath()+")")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "Write protocol debug logs to a file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if dirFlag != "" {
		if err := os.Chdir(dirFlag); err != nil {
			return fmt.Errorf("changing directory: %w", err)
		}
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	cfgPath := configFlag
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	model := modelFlag
	if model == "" {
		model = cfg.Model
	}

	mailbox, err := sessions.NewManager("")
	if err != nil {
		return fmt.Errorf("initializing session registry: %w", err)
	}
	if _, err := mailbox.Register("interactive"); err != nil {
		return fmt.Errorf("registering session: %w", err)
	}
	defer mailbox.Deregister()

	recorder := voice.NewRecorder(voice.NewTranscriber(cfg.Language).Transcribe)

	m := app.NewModel(ctx, app.Params{
		Config:   cfg,
		Model:    model,
		Continue: continueFlag,
		ResumeID: resumeFlag,
		Mailbox:  mailbox,
		Recorder: recorder,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// setupLogging routes slog away from the terminal the TUI owns: to a file
// under --debug, otherwise discarded.
func setupLogging() (func(), error) {
	if !debugFlag {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}

	path := filepath.Join(os.TempDir(), "claude-terminal-debug.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening debug log: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	fmt.Fprintln(os.Stderr, "debug log:", path)
	return func() { f.Close() }, nil
}
