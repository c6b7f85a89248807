package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hoteldesk/concierge/agent/history"
	"github.com/hoteldesk/concierge/agent/llm"
	memoryx "github.com/hoteldesk/concierge/agent/memory"
	"github.com/hoteldesk/concierge/agent/orchestrator"
	"github.com/hoteldesk/concierge/agent/toolhost"
	configx "github.com/hoteldesk/concierge/pkg/config"
	_ "github.com/hoteldesk/concierge/pkg/logger/autoload"
	openrouterx "github.com/hoteldesk/concierge/pkg/openrouter"
)

type AppConfig struct {
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	UpstashRedisURL   string `envconfig:"UPSTASH_REDIS_URL"`
	UpstashRedisToken string `envconfig:"UPSTASH_REDIS_TOKEN"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

// run owns the wiring so deferred cleanup fires on every failure path;
// log.Fatal in main would skip the tool host shutdown.
func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("")
	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	toolCfg := configx.MustNew[toolhost.Config]("MCP")
	agentCfg := configx.MustNew[orchestrator.Config]("AGENT")

	session, err := toolhost.OpenStdio(ctx, *toolCfg)
	if err != nil {
		return fmt.Errorf("open tool host session: %w", err)
	}
	defer session.Close()

	memStore, err := buildMemoryStore(ctx, *appCfg, *openRouterCfg)
	if err != nil {
		return err
	}
	histStore := buildHistoryStore(*appCfg)

	model, err := llm.New(ctx, openRouterCfg, session.Tools())
	if err != nil {
		return fmt.Errorf("build chat model: %w", err)
	}
	extractorBase, err := openRouterCfg.New(ctx)
	if err != nil {
		return fmt.Errorf("build extractor model: %w", err)
	}
	extractor, err := llm.Bind(extractorBase, nil)
	if err != nil {
		return fmt.Errorf("bind extractor model: %w", err)
	}

	svc, err := orchestrator.New(ctx, model, extractor, session, memStore, histStore, *agentCfg)
	if err != nil {
		return fmt.Errorf("build agent service: %w", err)
	}

	runREPL(ctx, svc)
	return nil
}

// buildMemoryStore prefers Postgres; without a DSN it falls back to an
// in-process store so the agent still works, just without persistence.
func buildMemoryStore(ctx context.Context, appCfg AppConfig, orCfg openrouterx.Config) (*memoryx.Store, error) {
	client := openrouterx.NewClient(orCfg)
	embedder, err := memoryx.NewOpenAIEmbedder(client, orCfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	var repo memoryx.Repository
	if dsn := strings.TrimSpace(appCfg.DatabaseURL); dsn != "" {
		pg, err := memoryx.NewBunRepositoryFromDSN(ctx, dsn)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, using in-memory memory store")
			repo = memoryx.NewInMemoryRepository()
		} else {
			repo = pg
		}
	} else {
		repo = memoryx.NewInMemoryRepository()
	}

	store, err := memoryx.NewStore(repo, embedder)
	if err != nil {
		return nil, fmt.Errorf("build memory store: %w", err)
	}
	return store, nil
}

func buildHistoryStore(appCfg AppConfig) history.Store {
	url := strings.TrimSpace(appCfg.UpstashRedisURL)
	token := strings.TrimSpace(appCfg.UpstashRedisToken)
	if url == "" || token == "" {
		return history.NewInMemoryStore()
	}
	store, err := history.NewUpstashRedisStore(history.UpstashRedisConfig{URL: url, Token: token})
	if err != nil {
		log.Warn().Err(err).Msg("upstash unavailable, using in-memory history store")
		return history.NewInMemoryStore()
	}
	return store
}

func runREPL(ctx context.Context, svc *orchestrator.Service) {
	sessionID := uuid.NewString()
	fmt.Println("Otel rezervasyon asistanı hazır. Çıkmak için 'exit' yazın.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		reply, err := svc.HandleMessage(ctx, sessionID, line)
		if err != nil {
			log.Error().Err(err).Msg("handle message")
			continue
		}
		fmt.Println(reply)

		if ctx.Err() != nil {
			return
		}
	}
}
