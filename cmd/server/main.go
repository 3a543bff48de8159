package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/typesense/typesense-go/v4/typesense"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/basegraphhq/turnengine/common/id"
	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/core/db"
	"github.com/basegraphhq/turnengine/internal/engine"
	httphandler "github.com/basegraphhq/turnengine/internal/http/handler"
	httprouter "github.com/basegraphhq/turnengine/internal/http/router"
	"github.com/basegraphhq/turnengine/internal/intervention"
	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/obslog"
	"github.com/basegraphhq/turnengine/internal/queue"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/retrieval"
	"github.com/basegraphhq/turnengine/internal/store"
	"github.com/basegraphhq/turnengine/internal/tools"
	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/basegraphhq/turnengine/internal/workflow"
)

// tasksStream is the single shared stream the Orchestrator's progress callback writes
// to; the worker binary fans each entry out from here.
const tasksStream = "turnengine:tasks"

func main() {
	ctx := context.Background()

	cfg := config.Load()

	telemetry, err := obslog.SetupOTel(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	obslog.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled")
	}
	slog.InfoContext(ctx, "turnengine gateway starting", "env", cfg.Env)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	producer := queue.NewRedisProducer(redisClient)
	defer producer.Close()

	loader, err := recipe.NewLoader(cfg.RecipeDir)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipes", "error", err)
		os.Exit(1)
	}
	registerRecipes(loader)

	queryAnalyzerClient := mustStructuredClient(ctx, cfg, "query_analyzer")
	validatorClient := mustStructuredClient(ctx, cfg, "validator")
	contextClient := mustStructuredClient(ctx, cfg, "context")
	plannerClient := mustStructuredClient(ctx, cfg, "planner")
	executorClient := mustStructuredClient(ctx, cfg, "executor")
	synthesisClient := mustStructuredClient(ctx, cfg, "synthesis")

	executorAgent, err := llm.NewAgentClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Roles["executor"].Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create coordinator agent client", "error", err)
		os.Exit(1)
	}

	registry := buildToolRegistry(ctx, cfg)
	workflowRegistry := workflow.NewRegistry()
	workflowEngine := workflow.NewEngine(tools.NewWorkflowInvoker(registry))
	modeGate := engine.NewModeGate(tools.NewEngineInvoker(registry), []string{"code_search", "git_read"}, []string{"code_search", "git_read", "git"})

	archive := store.NewArchive(cfg.TurnArchiveRoot)
	turnStore := store.NewTurnStore(database)

	sources := buildRetrievalSources(ctx, cfg, database, redisClient, turnStore)

	coordinator := engine.NewCoordinator(workflowRegistry, workflowEngine, modeGate, registry.Families, executorAgent)
	executor := engine.NewExecutor(executorClient, loader, coordinator, cfg.Loop)
	planner := engine.NewPlanner(plannerClient, loader)

	handlers := engine.PhaseHandlers{
		QueryAnalyzer:         engine.NewQueryAnalyzer(queryAnalyzerClient, loader),
		QueryAnalyzerValidate: engine.NewQueryAnalyzerValidator(queryAnalyzerClient, loader),
		ContextRetrieve:       engine.NewContextRetriever(sources),
		ContextSynthesize:     engine.NewContextSynthesizer(contextClient, loader, cfg.Budgets),
		ContextValidate:       engine.NewContextValidator(contextClient, loader),
		Plan:                  planner.Plan,
		Execute:               executor.Execute,
		Synthesize:            engine.NewSynthesizer(synthesisClient, loader, cfg.Budgets),
		Validate:              engine.NewValidator(validatorClient, loader, cfg.Validation),
		Save:                  engine.NewSaver(archive, turnStore),
	}

	injections := engine.NewInjectionManager()
	orchestrator := engine.NewOrchestrator(handlers, injections, cfg.Loop).
		WithProgress(func(ctx context.Context, sessionID, phase, status string) {
			task := queue.Task{
				TaskType:  queue.TaskTypeTurnProgress,
				SessionID: sessionID,
				Phase:     phase,
				Status:    status,
			}
			if err := producer.Enqueue(ctx, tasksStream, task); err != nil {
				slog.WarnContext(ctx, "failed to enqueue progress checkpoint", "error", err, "session_id", sessionID)
			}
		})

	authenticator := intervention.NewAuthenticator(intervention.SessionConfig{
		APIKey:   cfg.WorkOS.APIKey,
		ClientID: cfg.WorkOS.ClientID,
	})

	h := httprouter.Handlers{
		Chat:         httphandler.NewChatHandler(orchestrator),
		Progress:     httphandler.NewProgressHandler(redisClient),
		Inject:       httphandler.NewInjectHandler(injections),
		Intervention: httphandler.NewInterventionHandler(authenticator),
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(gin.Recovery())
	httprouter.SetupRoutes(router, h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(cfg.Loop.TurnDeadlineSeconds+30) * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func mustStructuredClient(ctx context.Context, cfg config.Config, role string) llm.Client {
	roleCfg := cfg.LLM.Roles[role]
	client, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   roleCfg.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "role", role, "error", err)
		os.Exit(1)
	}
	return client
}

// registerRecipes attaches the role and budget to each phase's prompt template (the
// schema argument is nil: each phase handler builds its own output schema), falling
// back to an inline prompt when no .tmpl file is found under cfg.RecipeDir (see
// recipe.NewLoader).
func registerRecipes(loader *recipe.Loader) {
	must := func(err error) {
		if err != nil {
			slog.Error("failed to register recipe", "error", err)
			os.Exit(1)
		}
	}

	must(loader.Register("query_analyzer", "query_analyzer", nil, 1000,
		"Resolve the user's command into a specific, well-formed intent.\n\n{{.raw_query}}"))
	must(loader.Register("query_analyzer_validator", "query_analyzer", nil, 500,
		"Judge whether the resolved query is specific and answerable.\n\n{{.resolved_query}}"))
	must(loader.Register("context_synthesis", "context", nil, 2000,
		"Summarize the gathered evidence into a coherent brief.\n\n{{.resolved_query}}"))
	must(loader.Register("context_validator", "context", nil, 500,
		"Judge whether the gathered context is sufficient to plan from.\n\n{{.summary}}"))
	must(loader.Register("planner", "planner", nil, 8192,
		"Draft a strategic plan to satisfy the resolved query.\n\n{{.resolved_query}}"))
	must(loader.Register("plan_critic", "planner", nil, 2000,
		"Critique this plan for gaps or unjustified assumptions.\n\n{{.approach}}"))
	must(loader.Register("executor", "executor", nil, 8192,
		"Decide the next single action given the execution log so far.\n\n{{.execution_log}}"))
	must(loader.Register("synthesis", "synthesis", nil, 4000,
		"Write the final draft response from the validated plan and evidence.\n\n{{.plan}}"))
	must(loader.Register("phase7_validate", "validator", nil, 1000,
		"Score the draft's confidence and list any unmet checks.\n\n{{.draft}}"))
}

func buildToolRegistry(ctx context.Context, cfg config.Config) *tools.Registry {
	registry := tools.NewRegistry()

	must := func(err error) {
		if err != nil {
			slog.ErrorContext(ctx, "failed to register tool family", "error", err)
			os.Exit(1)
		}
	}

	must(registry.RegisterFamily(turn.ToolFamilySpec{Name: "code_search", Description: "symbol lookup and bounded graph traversal", Mutating: false}))
	must(registry.RegisterFamily(turn.ToolFamilySpec{Name: "git_read", Description: "read issues, merge requests, discussions", Mutating: false}))
	must(registry.RegisterFamily(turn.ToolFamilySpec{Name: "git", Description: "post comments to issues/merge requests", Mutating: true}))

	if cfg.CodeGraph.URL != "" {
		codeSearch, err := tools.NewCodeSearchTool(ctx, tools.CodeGraphConfig{
			URL:      cfg.CodeGraph.URL,
			Username: cfg.CodeGraph.Username,
			Password: cfg.CodeGraph.Password,
			Database: cfg.CodeGraph.Database,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect code graph; code_search tool unavailable", "error", err)
		} else {
			must(registry.RegisterInstance(codeSearch))
		}
	}

	if cfg.GitLab.Token != "" {
		creds := tools.StaticGitLabCredentials{APIToken: cfg.GitLab.Token, GitLabHost: cfg.GitLab.BaseURL}
		must(registry.RegisterInstance(tools.NewGitLabTool(creds)))
		must(registry.RegisterInstance(tools.NewGitLabReadTool(creds)))
	}

	return registry
}

func buildRetrievalSources(ctx context.Context, cfg config.Config, database *db.DB, redisClient *redis.Client, turnStore *store.TurnStore) []retrieval.Source {
	sources := []retrieval.Source{
		retrieval.NewForeverMemory(database.Pool()),
		retrieval.NewHotCache(redisClient, time.Duration(cfg.Freshness.VolatileSeconds)*time.Second),
		retrieval.NewRecentTurn(turnStore, 10),
	}

	if cfg.Search.URL != "" {
		searchClient := typesense.NewClient(
			typesense.WithServer(cfg.Search.URL),
			typesense.WithAPIKey(cfg.Search.APIKey),
		)
		sources = append(sources, retrieval.NewOlderTurnFullText(searchClient, cfg.Search.Collection))
	} else {
		slog.InfoContext(ctx, "typesense url not configured; older-turn fulltext source disabled")
	}

	return sources
}

