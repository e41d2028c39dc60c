package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/providentia/internal/ai"
	"github.com/suPer8Hu/providentia/internal/auth"
	"github.com/suPer8Hu/providentia/internal/chat"
	"github.com/suPer8Hu/providentia/internal/config"
	"github.com/suPer8Hu/providentia/internal/db"
	"github.com/suPer8Hu/providentia/internal/httpapi"
	"github.com/suPer8Hu/providentia/internal/rag"
	"github.com/suPer8Hu/providentia/internal/ratelimit"
	"github.com/suPer8Hu/providentia/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case "redis":
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	}

	var retriever rag.Retriever = rag.NewHTTPRetriever(cfg.RetrieverBaseURL, cfg.MaxContextPassages, cfg.RelevanceThreshold)
	if cfg.RetrievalCacheTTL > 0 {
		retriever = rag.NewCachedRetriever(retriever, rdb, cfg.RetrievalCacheTTL)
	}

	registry := ai.NewRegistry()
	registry.Register("ollama", func() (ai.Generator, error) {
		return ai.NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	})
	registry.Register("openrouter", func() (ai.Generator, error) {
		return ai.NewOpenRouterGenerator(
			cfg.OpenRouterBaseURL,
			cfg.OpenRouterAPIKey,
			cfg.OpenRouterModel,
			cfg.OpenRouterSiteURL,
			cfg.OpenRouterAppName,
		), nil
	})
	generator, err := registry.Get(cfg.AIProvider)
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	repo := chat.NewRepo(gdb)
	var recorder chat.Recorder
	switch cfg.Recorder {
	case "queue":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbitmq connect: %v", err)
		}
		defer pub.Close()
		recorder = chat.NewQueueRecorder(pub)
	default:
		recorder = chat.NewDBRecorder(repo)
	}

	orch := chat.NewOrchestrator(verifier, limiter, retriever, generator, recorder, chat.Policy{
		RetrievalRetries:  cfg.RetrievalRetries,
		GenerationRetries: cfg.GenerationRetries,
		BackoffBase:       cfg.RetryBackoffBase,
		RetrieveTimeout:   cfg.RetrieveTimeout,
		GenerateTimeout:   cfg.GenerateTimeout,
		RecordTimeout:     cfg.RecordTimeout,
		RequestBudget:     cfg.RequestBudget,
	})

	r := httpapi.NewRouter(gdb, cfg, rdb, verifier, orch)

	log.Printf("listening on :%s provider=%s recorder=%s rate_limit=%d/%s",
		cfg.Port, cfg.AIProvider, cfg.Recorder, cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
