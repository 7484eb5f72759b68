// Command integuru traces which captured network request performs a
// user-described action and replays its upstream dependency chain back to
// raw inputs, per spec.md §6's CLI surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/integuru-go/integuru/internal/config"
	"github.com/integuru-go/integuru/internal/discovery"
	"github.com/integuru-go/integuru/internal/harmodel"
	"github.com/integuru-go/integuru/internal/oracle"
	"github.com/integuru-go/integuru/internal/progress"
	"github.com/integuru-go/integuru/internal/traversal"
)

// inputVarFlag collects repeated -var name=value flags into a map.
type inputVarFlag map[string]string

func (f inputVarFlag) String() string {
	if f == nil {
		return ""
	}
	var pairs []string
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f inputVarFlag) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	f[name] = value
	return nil
}

func main() {
	harPath := flag.String("har", "", "path to the captured HAR file (overrides HAR_PATH)")
	cookiePath := flag.String("cookies", "", "path to the captured cookie JSON file (overrides COOKIE_PATH)")
	model := flag.String("model", "", "oracle model name (overrides LLM_MODEL_FAST)")
	maxSteps := flag.Int("max_steps", 0, "discovery step budget (overrides MAX_STEPS, default 15)")
	emitCode := flag.Bool("emit_code", false, "generate a replay program from the discovered DAG (overrides EMIT_CODE)")
	progressAddr := flag.String("progress_addr", "", "if set, serve a live progress-viewer websocket on this address (overrides PROGRESS_ADDR)")
	inputVars := make(inputVarFlag)
	flag.Var(inputVars, "var", "a caller-supplied name=value pair to trace into the request; may be repeated")
	flag.Parse()

	action := strings.Join(flag.Args(), " ")
	if action == "" {
		log.Fatal("integuru: a description of the action to trace is required, e.g. `integuru \"download the monthly statement PDF\"`")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("integuru: %v", err)
	}
	if *harPath != "" {
		cfg.HARPath = *harPath
	}
	if *cookiePath != "" {
		cfg.CookiePath = *cookiePath
	}
	if *model != "" {
		cfg.LLM.ModelFast = *model
	}
	if *maxSteps > 0 {
		cfg.MaxSteps = *maxSteps
	}
	if *emitCode {
		cfg.EmitCode = true
	}
	if *progressAddr != "" {
		cfg.ProgressAddr = *progressAddr
	}

	har, err := harmodel.Load(cfg.HARPath)
	if err != nil {
		log.Fatalf("integuru: loading HAR capture %q: %v", cfg.HARPath, err)
	}

	cookies, err := harmodel.LoadCookies(cfg.CookiePath)
	if err != nil {
		log.Printf("🍪 integuru: no cookie file at %q, continuing without cookies (%v)", cfg.CookiePath, err)
		cookies = nil
	}

	ctx := context.Background()

	var plugins []genkit.Plugin
	var defaultModel string
	switch cfg.LLM.Provider {
	case "gemini", "":
		plugins = append(plugins, &googlegenai.GoogleAI{APIKey: cfg.LLM.APIKey})
		defaultModel = "googleai/" + cfg.LLM.ModelFast
	default:
		log.Fatalf("integuru: unsupported LLM_PROVIDER %q (only \"gemini\" is wired)", cfg.LLM.Provider)
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(plugins...),
		genkit.WithDefaultModel(defaultModel),
	)

	// lookupExchange has nothing to look up yet: the discovery engine's
	// node-id index doesn't exist until Run() builds its DAG, which is after
	// the oracle client must already be constructed. EnableExchangeLookup
	// below registers the tool against the engine once that DAG exists.
	client := oracle.NewGenkitClient(g, cfg.LLM.ModelFast, cfg.LLM.ModelSmart, nil)

	var hub *progress.Hub
	if cfg.ProgressAddr != "" {
		hub = progress.NewHub()
		go hub.Run()
		http.HandleFunc("/ws", hub.ServeWS)
		go func() {
			log.Printf("📡 integuru: progress viewer listening on %s", cfg.ProgressAddr)
			if err := http.ListenAndServe(cfg.ProgressAddr, nil); err != nil {
				log.Printf("integuru: progress viewer stopped: %v", err)
			}
		}()
	}

	engine := discovery.New(har, cookies, client)
	if hub != nil {
		engine.WithProgress(hub)
	}

	result, err := engine.Run(ctx, discovery.Config{
		UserPrompt:     action,
		InputVariables: inputVars,
		MaxSteps:       cfg.MaxSteps,
	})
	if err != nil {
		log.Fatalf("integuru: discovery failed: %v", err)
	}

	if result.BudgetExceeded {
		log.Printf("⏱️ integuru: stopped early after %d steps (budget exhausted); the DAG below is partial", result.StepsTaken)
	} else {
		log.Printf("✅ integuru: discovery converged after %d steps", result.StepsTaken)
	}

	fmt.Println(traversal.PrintTree(engine.Store(), result.MasterID))

	if !cfg.EmitCode {
		return
	}

	client.EnableExchangeLookup(engine)

	order := traversal.ReplayOrder(engine.Store())
	emitter := traversal.NewEmitter(engine.Store(), har, client)
	program, _, err := emitter.Emit(ctx, order)
	if err != nil {
		log.Fatalf("integuru: emitting replay program: %v", err)
	}

	fmt.Println("\n=== REPLAY PROGRAM ===")
	fmt.Println(program)

	if err := os.WriteFile("integuru_replay.go.txt", []byte(program), 0o644); err != nil {
		log.Printf("integuru: could not write replay program to disk: %v", err)
	}
}
