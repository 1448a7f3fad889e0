package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devagent/devagent/internal/agent"
	"github.com/devagent/devagent/internal/audit"
	"github.com/devagent/devagent/internal/bgproc"
	"github.com/devagent/devagent/internal/config"
	"github.com/devagent/devagent/internal/llm"
	"github.com/devagent/devagent/internal/session"
	"github.com/devagent/devagent/internal/tool"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		promptFlag  string
		resumeFlag  bool
		sessionFlag string
		verboseFlag bool
	)

	rootCmd := &cobra.Command{
		Use:   "dev",
		Short: "dev-agent is a command-line coding agent",
		Long: `dev-agent drives a model through a fixed Markdown tool-calling
envelope to read, write, and run commands in the current directory,
persisting its progress as a resumable session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), promptFlag, resumeFlag, sessionFlag, verboseFlag)
		},
	}

	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Run the agent non-interactively on this prompt until it completes, then exit")
	rootCmd.Flags().BoolVar(&resumeFlag, "resume", false, "Resume the last session associated with the current directory")
	rootCmd.Flags().StringVar(&sessionFlag, "session", "", "Resume a specific session by id")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Trace retries and tool dispatch to stderr")

	rootCmd.AddCommand(
		sessionsCmd(),
		configCmd(),
		setupCmd(),
		modelsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runAgent wires config, session, tooling, and the agent loop together for
// the root command (spec.md §6 CLI surface) and maps the outcome to exit
// codes 0/1.
func runAgent(ctx context.Context, prompt string, resume bool, sessionID string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !config.Exists() {
		if err := runSetupWizard(cfg); err != nil {
			return err
		}
	}

	sessionsDir, err := config.SessionsDir()
	if err != nil {
		return err
	}
	store, err := session.NewStore(sessionsDir)
	if err != nil {
		return err
	}
	if err := store.SweepRetention(cfg.SessionRetentionDays); err != nil {
		fmt.Fprintf(os.Stderr, "warning: session retention sweep failed: %v\n", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return err
	}

	automated := prompt != ""

	sess, isNew, err := resolveSession(store, workingDir, prompt, resume, sessionID)
	if err != nil {
		return err
	}

	if isNew {
		fmt.Printf("Session: %s\n", sess.ID)
	} else {
		fmt.Printf("Resumed: %s\n", sess.ID)
	}

	if automated {
		sess.AppendHistory(session.Message{Role: session.RoleUser, Content: prompt})
	} else {
		userInput, err := readInteractivePrompt()
		if err != nil {
			return err
		}
		if sess.OriginalPrompt == "" {
			sess.OriginalPrompt = userInput
		}
		sess.AppendHistory(session.Message{Role: session.RoleUser, Content: userInput})
	}
	if err := store.Save(sess); err != nil {
		return err
	}

	client := llm.New(cfg.APIUrl, cfg.APIKey, cfg.Model)
	background := bgproc.NewRegistry()
	tc := &tool.Context{
		WorkingDir: workingDir,
		Automated:  automated,
		Config:     cfg,
		Background: background,
		AskUser:    askUserOnTTY,
	}
	auditBackground := bgproc.NewRegistry()
	auditTC := &tool.Context{
		WorkingDir: workingDir,
		Automated:  true,
		Config:     cfg,
		Background: auditBackground,
	}

	deps := agent.Deps{
		Client: client,
		Store:  store,
		Config: cfg,
		Tools:  tc,
		AuditDeps: audit.Deps{
			Client:       client,
			Tools:        auditTC,
			SystemPrompt: agent.AuditSystemPrompt,
		},
		Trace: traceFunc(verbose),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := agent.Run(runCtx, deps, sess, automated); err != nil {
		return err
	}
	return nil
}

// resolveSession implements the three session-acquisition modes named in
// spec.md §6: fresh, --resume, and --session <uuid>.
func resolveSession(store *session.Store, workingDir, prompt string, resume bool, sessionID string) (*session.Session, bool, error) {
	if sessionID != "" {
		sess, err := store.Load(sessionID)
		if err != nil {
			return nil, false, err
		}
		if sess == nil {
			return nil, false, fmt.Errorf("no session found with id %s", sessionID)
		}
		return sess, false, nil
	}

	if resume {
		lastID, err := store.LastForDirectory(workingDir)
		if err != nil {
			return nil, false, err
		}
		if lastID == "" {
			return nil, false, fmt.Errorf("no previous session found for %s", workingDir)
		}
		sess, err := store.Load(lastID)
		if err != nil {
			return nil, false, err
		}
		if sess == nil {
			return nil, false, fmt.Errorf("no session found with id %s", lastID)
		}
		return sess, false, nil
	}

	return session.New(workingDir, prompt), true, nil
}

// traceFunc returns the agent loop's --verbose trace sink, or nil when
// verbose is off (spec.md §A.3).
func traceFunc(verbose bool) func(format string, args ...interface{}) {
	if !verbose {
		return nil
	}
	return func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, "[trace] "+format+"\n", args...)
	}
}

func readInteractivePrompt() (string, error) {
	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func askUserOnTTY(prompt string) (string, error) {
	fmt.Printf("\n%s\n> ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ---------------------------------------------------------------------------
// sessions command
// ---------------------------------------------------------------------------

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List up to 20 sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			sessions, err := store.List()
			if err != nil {
				return err
			}
			if len(sessions) > 20 {
				sessions = sessions[:20]
			}
			for _, s := range sessions {
				prompt := s.OriginalPrompt
				if len(prompt) > 50 {
					prompt = prompt[:50]
				}
				fmt.Printf("%s %s\n    %s\n", s.ID[:8], s.UpdatedAt.Format("2006-01-02"), prompt)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <uuid>",
		Short: "Print a session's full JSON record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			sess, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("no session found with id %s", args[0])
			}
			data, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func openStore() (*session.Store, error) {
	sessionsDir, err := config.SessionsDir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(sessionsDir)
}

// ---------------------------------------------------------------------------
// config command
// ---------------------------------------------------------------------------

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Open the config file in the OS default editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			if !config.Exists() {
				cfg := &config.Config{}
				setConfigDefaults(cfg)
				if err := cfg.Save(); err != nil {
					return err
				}
			}
			editor := os.Getenv("EDITOR")
			if editor == "" {
				if runtime.GOOS == "windows" {
					editor = "notepad"
				} else {
					editor = "vi"
				}
			}
			editCmd := exec.Command(editor, path)
			editCmd.Stdin = os.Stdin
			editCmd.Stdout = os.Stdout
			editCmd.Stderr = os.Stderr
			return editCmd.Run()
		},
	}
}

func setConfigDefaults(cfg *config.Config) {
	cfg.MaxContextTokens = config.DefaultMaxContextTokens
	cfg.CommandTimeout = config.DefaultCommandTimeout
	cfg.MaxRetries = config.DefaultMaxRetries
	cfg.MaxRetriesAutomated = config.DefaultMaxRetriesAutomated
	cfg.MaxLoops = config.DefaultMaxLoops
	cfg.SessionRetentionDays = config.DefaultSessionRetentionDays
}

// ---------------------------------------------------------------------------
// setup command
// ---------------------------------------------------------------------------

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Run the first-time configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runSetupWizard(cfg)
		},
	}
}

func runSetupWizard(cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label, def string) string {
		if def != "" {
			fmt.Printf("%s [%s]: ", label, def)
		} else {
			fmt.Printf("%s: ", label)
		}
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return def
		}
		return line
	}

	fmt.Println("dev-agent setup")
	cfg.APIUrl = prompt("API URL", cfg.APIUrl)
	cfg.APIKey = prompt("API key", cfg.APIKey)
	cfg.Model = prompt("Model", cfg.Model)
	setConfigDefaults(cfg)

	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println("Configuration saved.")
	return nil
}

// ---------------------------------------------------------------------------
// models command
// ---------------------------------------------------------------------------

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the configured API endpoint and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Printf("API URL: %s\n", cfg.APIUrl)
			fmt.Printf("Model:   %s\n", cfg.Model)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// version command
// ---------------------------------------------------------------------------

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dev-agent version %s (%s)\n", version, commit)
			fmt.Printf("go version %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

