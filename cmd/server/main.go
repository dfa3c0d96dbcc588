// server is the ArtMorph backend: it accepts canvas snapshots from the Adobe
// Express add-on and streams back generated React/TypeScript code, delegating
// to vision-capable LLM providers with daily quota enforcement.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/artmorph-ai/artmorph/internal/codegen"
	"github.com/artmorph-ai/artmorph/internal/config"
	"github.com/artmorph-ai/artmorph/internal/mq"
	"github.com/artmorph-ai/artmorph/internal/provider"
	"github.com/artmorph-ai/artmorph/internal/quota"
	"github.com/artmorph-ai/artmorph/internal/server"
)

const banner = `
    ╔═══════════════════════════════════════════╗
    ║   ArtMorph Backend Server                 ║
    ║   Ready to generate code!                 ║
    ╚═══════════════════════════════════════════╝
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	_ = godotenv.Load()

	cfg := config.FromEnv()

	store := newQuotaStore(cfg)
	defer store.Close()

	providers := []provider.Provider{
		provider.NewAnthropic(cfg.Providers["anthropic"].APIKey, cfg.Providers["anthropic"].Model, cfg.ProviderTimeout),
		provider.NewGemini(cfg.Providers["gemini"].APIKey, cfg.Providers["gemini"].Model, cfg.ProviderTimeout),
		provider.NewOpenAI(cfg.Providers["openai"].APIKey, cfg.Providers["openai"].Model, cfg.ProviderTimeout),
		provider.NewGroq(cfg.Providers["groq"].APIKey, cfg.Providers["groq"].Model, cfg.ProviderTimeout),
	}

	var broker *mq.Broker
	if cfg.AMQPURL != "" {
		b, err := mq.New(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("mq connect")
		}
		broker = b
		defer broker.Close()
	}

	gen := codegen.NewGenerator(providers, store, cfg.PriorityRaw, cfg.MockChunkDelay)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(cfg, gen, store, providers, broker).Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; cancel() }()

	fmt.Print(banner, "\n")
	for _, p := range providers {
		log.Info().Str("provider", p.Name()).Bool("configured", p.Configured()).Send()
	}
	log.Info().
		Str("port", cfg.Port).
		Str("quota_backend", cfg.QuotaBackend).
		Msg("server online")

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newQuotaStore(cfg config.Config) quota.Store {
	if cfg.QuotaBackend == "redis" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		return quota.NewRedisStore(client, cfg.Limits())
	}
	return quota.NewFileStore(cfg.QuotaFile, cfg.Limits())
}
