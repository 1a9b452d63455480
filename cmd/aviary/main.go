// Aviary is a social media simulator driven by LLM agents.
//
// It seeds a population of persona-backed agents into a SQLite-backed
// platform and advances the world in discrete timesteps: each step the
// recommendation engine refreshes per-user slates, activated agents
// read their feeds and act through platform tools, and the clock ticks.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	aviary run               Run a simulation until interrupted
//	aviary run -steps 50     Run a fixed number of timesteps
//	aviary init [dir]        Initialize a working directory with defaults
//	aviary version           Print version and build information
//	aviary -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aviarysim/aviary/internal/agent"
	"github.com/aviarysim/aviary/internal/buildinfo"
	"github.com/aviarysim/aviary/internal/channel"
	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/config"
	"github.com/aviarysim/aviary/internal/embeddings"
	"github.com/aviarysim/aviary/internal/env"
	"github.com/aviarysim/aviary/internal/events"
	"github.com/aviarysim/aviary/internal/graph"
	"github.com/aviarysim/aviary/internal/llm"
	"github.com/aviarysim/aviary/internal/platform"
	"github.com/aviarysim/aviary/internal/profiles"
	"github.com/aviarysim/aviary/internal/prompts"
	"github.com/aviarysim/aviary/internal/recsys"
	"github.com/aviarysim/aviary/internal/store"
	"github.com/aviarysim/aviary/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the aviary command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the platform actor and in-flight agent turns.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:] — the command-line arguments after the program
//     name. We parse these manually rather than using the flag package
//     to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var steps int
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-steps" && i+1 < len(args):
			v, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid -steps value: %q", args[i+1])
			}
			steps = v
			i++
		case strings.HasPrefix(args[i], "-steps="):
			raw := strings.TrimPrefix(args[i], "-steps=")
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid -steps value: %q", raw)
			}
			steps = v
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	// Default to human-readable text output.
	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "run":
		return runSim(ctx, stdout, stderr, configPath, steps)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// aviary is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Aviary - LLM-Driven Social Media Simulator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: aviary [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run          Run a simulation")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -steps <n>        Timesteps to run (default: until interrupted)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./aviary.yaml, ~/.config/aviary/aviary.yaml, /etc/aviary/aviary.yaml")
	return nil
}

// runSim handles the "aviary run" subcommand. It is the primary
// operating mode: loads config, opens the simulation database, builds
// the platform actor and recommendation engine, registers one agent per
// profile, and steps the world until the step budget is spent or a
// shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The current step's in-flight agent turns finish or abort
//  3. The platform actor drains its queue and stops
//  4. The usage summary is printed and databases close via defers
func runSim(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, steps int) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Aviary", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure logger now that we know the desired level. The initial
	// Info-level logger is used only for the startup banner; everything
	// after this point uses the configured level.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("config %s: %w", cfgPath, err)
		}
		logger = newLogger(stdout, level)
	}

	mode := cfg.Profiles.Mode
	if mode != prompts.ModeTwitter && mode != prompts.ModeReddit {
		return fmt.Errorf("unknown profiles.mode: %q (expected twitter or reddit)", mode)
	}
	if cfg.Profiles.Path == "" {
		return fmt.Errorf("profiles.path is not set; run \"aviary init\" for an example roster")
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"mode", mode,
		"database", cfg.Database,
		"recsys", cfg.Recsys.Type,
		"model", cfg.Models.Default,
		"ollama_url", cfg.Models.OllamaURL,
	)

	// --- Simulation database ---
	// One SQLite file holds the whole world: users, posts, comments,
	// relations, rec slates, and the action trace.
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database, err)
	}
	defer st.Close()
	logger.Info("database opened", "path", cfg.Database)

	// --- Clock ---
	// Reddit personas reason about wall-clock datetimes, so virtual time
	// starts now and runs sixty times faster than real time. Twitter mode
	// numbers steps from zero and every action within a step shares its
	// timestamp.
	var clk *clock.Clock
	if mode == prompts.ModeReddit {
		clk = clock.NewScaled(time.Now(), 60)
	} else {
		clk = clock.NewTick()
	}

	// --- Action channel and event bus ---
	// All actions, agent or operator, flow through one channel into the
	// platform actor. The bus carries progress events back out; the
	// subscriber below is the run's step-by-step log.
	ch := channel.New()
	bus := events.New()

	sub := bus.Subscribe(64)
	defer bus.Unsubscribe(sub)
	go func() {
		for e := range sub {
			switch e.Kind {
			case events.KindStepStart:
				logger.Debug("step started", "step", e.Data["step"], "activated", e.Data["activated"], "interventions", e.Data["interventions"])
			case events.KindStepDone:
				logger.Info("step complete", "step", e.Data["step"], "failed_agents", e.Data["failed_agents"], "duration_ms", e.Data["duration_ms"])
			case events.KindRecRefresh:
				logger.Debug("rec table refreshed", "strategy", e.Data["strategy"], "users", e.Data["users"], "posts", e.Data["posts"], "duration_ms", e.Data["duration_ms"])
			case events.KindShutdown:
				logger.Debug("platform drained", "traces", e.Data["traces"])
			}
		}
	}()

	// --- Social graph ---
	// In-memory mirror of who follows whom, used by the recommendation
	// strategies and as the agent registry.
	g := graph.New()

	// --- Recommendation engine ---
	// The twhin and twitter strategies rank by embedding similarity;
	// random and reddit never call the embedder.
	var embClient embeddings.Client
	if cfg.Recsys.Type == "twhin" || cfg.Recsys.Type == "twitter" {
		baseURL := cfg.Embeddings.BaseURL
		if baseURL == "" {
			baseURL = cfg.Models.OllamaURL
		}
		embClient = embeddings.NewOllama(embeddings.Config{BaseURL: baseURL, Model: cfg.Embeddings.Model})
		logger.Info("embeddings enabled", "model", cfg.Embeddings.Model, "url", baseURL)
	}

	rec, err := recsys.New(cfg.Recsys, recsys.Deps{
		Store:  st,
		Clock:  clk,
		Embed:  embClient,
		Logger: logger,
		Bus:    bus,
	})
	if err != nil {
		return fmt.Errorf("recommendation engine: %w", err)
	}
	logger.Info("recommendation engine initialized", "strategy", cfg.Recsys.Type, "max_rec_post_len", cfg.Recsys.MaxRecPostLen)

	// --- Platform actor ---
	// The single writer. Agent requests queue on the channel and commit
	// here one at a time; the env starts its goroutine during Reset.
	plat := platform.New(cfg.Platform, platform.Deps{
		Store:   st,
		Channel: ch,
		Clock:   clk,
		Rec:     rec,
		Bus:     bus,
		Graph:   g,
		Logger:  logger,
	})

	// --- LLM client ---
	// Multi-provider client that routes each model name to its configured
	// provider. Unknown models fall back to Ollama.
	ollamaClient := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	llmClient := createLLMClient(cfg, logger, ollamaClient)
	checkModels(ctx, ollamaClient, cfg, logger)

	// --- Usage accounting ---
	// Optional per-call token ledger in its own database file so agent
	// turns never contend with simulation writes.
	var usageStore *usage.Store
	if cfg.Usage.Enabled {
		path := cfg.Usage.Path
		if path == "" {
			path = filepath.Join(filepath.Dir(cfg.Database), "usage.db")
		}
		usageStore, err = usage.Open(path)
		if err != nil {
			return fmt.Errorf("open usage store %s: %w", path, err)
		}
		defer usageStore.Close()
		logger.Info("usage accounting enabled", "path", path)
	}

	// --- Profile roster ---
	roster, err := loadRoster(cfg)
	if err != nil {
		return fmt.Errorf("load profiles %s: %w", cfg.Profiles.Path, err)
	}
	if len(roster) == 0 {
		return fmt.Errorf("no profiles in %s", cfg.Profiles.Path)
	}
	logger.Info("profiles loaded", "count", len(roster), "mode", mode, "path", cfg.Profiles.Path)

	// --- Agents ---
	// One agent per profile. Agent ids are row order; in twitter mode the
	// roster's following lists refer to these ids.
	var usageRec agent.UsageRecorder
	if usageStore != nil {
		usageRec = usageStore
	}
	for i, p := range roster {
		a := agent.New(int64(i), p, agent.Deps{
			Send:   ch.Send,
			Client: llmClient,
			Model:  cfg.Models.Default,
			Mode:   mode,
			Logger: logger,
			Usage:  usageRec,
		})
		g.AddAgent(a)
	}

	// --- Environment driver ---
	sim := env.New(env.Deps{
		Store:              st,
		Channel:            ch,
		Platform:           plat,
		Clock:              clk,
		Graph:              g,
		Bus:                bus,
		Logger:             logger,
		Mode:               mode,
		MaxConcurrentTurns: cfg.Semaphore,
	})

	// --- Signal handling ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx the platform actor and
	// agent turns run under.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Run ---
	runStart := time.Now()
	if err := sim.Reset(ctx); err != nil {
		return fmt.Errorf("seed environment: %w", err)
	}

	for i := 1; steps <= 0 || i <= steps; i++ {
		if err := sim.Step(ctx, env.StepAction{}); err != nil {
			if ctx.Err() != nil {
				logger.Info("interrupted", "completed_steps", sim.Steps())
				break
			}
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	// The run ctx may already be canceled by the signal, so shutdown gets
	// its own deadline. A canceled platform result is expected after an
	// interrupt.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := sim.Close(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close environment: %w", err)
	}

	if usageStore != nil {
		printUsageSummary(stdout, usageStore, runStart, logger)
	}

	traces, _ := st.TraceCount("")
	logger.Info("simulation complete",
		"steps", sim.Steps(),
		"traces", traces,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return nil
}

// newLogger creates a structured text logger that writes to w at the
// given level. All log output in Aviary goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations. Returns the parsed
// config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// loadRoster reads the profile file named by the config, in the format
// its mode implies: CSV for twitter, a JSON array for reddit.
func loadRoster(cfg *config.Config) ([]profiles.Profile, error) {
	if cfg.Profiles.Mode == prompts.ModeReddit {
		return profiles.LoadJSON(cfg.Profiles.Path)
	}
	return profiles.LoadCSV(cfg.Profiles.Path)
}

// createLLMClient builds a multi-provider LLM client from the
// configuration. Each model listed in config is mapped to its provider
// (ollama or openai). Models not explicitly mapped fall through to the
// Ollama provider, which acts as the default backend. The OllamaClient
// is created externally so that the caller can also use it for the
// model availability check.
func createLLMClient(cfg *config.Config, logger *slog.Logger, ollamaClient *llm.OllamaClient) llm.Client {
	multi := llm.NewMultiClient(ollamaClient)
	multi.AddProvider("ollama", ollamaClient)

	if n := len(cfg.Models.OpenAI); n > 0 {
		clients := make([]llm.Client, 0, n)
		for _, b := range cfg.Models.OpenAI {
			clients = append(clients, llm.NewOpenAIClient(b.BaseURL, b.APIKey, b.RPS, logger))
		}
		var openai llm.Client = clients[0]
		if n > 1 {
			// Several backends serving the same models round-robin so a
			// large population spreads across replicas.
			openai = llm.NewRoundRobin(clients...)
		}
		multi.AddProvider("openai", openai)
		logger.Info("OpenAI provider configured", "backends", n)
	}

	for _, m := range cfg.Models.Available {
		multi.AddModel(m.Name, m.Provider)
	}

	defaultProvider := "ollama"
	for _, m := range cfg.Models.Available {
		if m.Name == cfg.Models.Default {
			defaultProvider = m.Provider
		}
	}
	logger.Info("LLM client initialized", "default_model", cfg.Models.Default, "default_provider", defaultProvider)

	return multi
}

// checkModels warns about configured Ollama-routed models that are not
// present on the server. The run proceeds regardless; the server may
// come up or pull the model later.
func checkModels(ctx context.Context, client *llm.OllamaClient, cfg *config.Config, logger *slog.Logger) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	names, err := client.ListModels(listCtx)
	if err != nil {
		logger.Warn("ollama unreachable, skipping model check", "url", cfg.Models.OllamaURL, "error", err)
		return
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	providerFor := make(map[string]string, len(cfg.Models.Available))
	want := []string{cfg.Models.Default}
	for _, m := range cfg.Models.Available {
		providerFor[m.Name] = m.Provider
		want = append(want, m.Name)
	}

	checked := make(map[string]bool, len(want))
	for _, name := range want {
		if checked[name] {
			continue
		}
		checked[name] = true
		if p := providerFor[name]; p != "" && p != "ollama" {
			continue
		}
		if !present[name] {
			logger.Warn("model not found on ollama server", "model", name, "url", cfg.Models.OllamaURL)
		}
	}
}

// printUsageSummary writes the run's token totals to w, overall and
// per model.
func printUsageSummary(w io.Writer, st *usage.Store, start time.Time, logger *slog.Logger) {
	// RFC3339 storage truncates to whole seconds, so pad the window end
	// to include records stamped this second.
	end := time.Now().Add(time.Second)

	sum, err := st.Summary(start, end)
	if err != nil {
		logger.Warn("usage summary failed", "error", err)
		return
	}
	if sum.TotalRecords == 0 {
		return
	}

	fmt.Fprintf(w, "\nToken usage: %d calls, %d input tokens, %d output tokens\n",
		sum.TotalRecords, sum.TotalInputTokens, sum.TotalOutputTokens)

	byModel, err := st.SummaryByModel(start, end)
	if err != nil {
		logger.Warn("per-model usage summary failed", "error", err)
		return
	}
	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		s := byModel[m]
		fmt.Fprintf(w, "  %-28s %d calls, %d in, %d out\n", m, s.TotalRecords, s.TotalInputTokens, s.TotalOutputTokens)
	}
}
