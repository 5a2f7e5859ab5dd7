package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"styx-chat/ai"
	"styx-chat/auth"
	"styx-chat/contract"
	"styx-chat/infrastructure/api"
	"styx-chat/infrastructure/ws"
	"styx-chat/moderation"
	"styx-chat/observability"
	"styx-chat/repositories"
	"styx-chat/runtime"
	"styx-chat/runtime/workers"
	"styx-chat/services"
	"styx-chat/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the shutdown order. Errors bubble up
// here instead of os.Exit so the defers run and close the stores cleanly.
func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := observability.NewLogger(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Badger is the default backend; redis takes over both
	// stores when selected, and always contributes the presence mirror.
	var (
		messages contract.MessageStore
		rooms    contract.RoomStore
		presence contract.PresenceMirror
	)
	if config.RedisAddr != "" {
		client, err := repositories.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer func() { _ = client.Close() }()
		presence = repositories.NewRedisPresence(client, log)
		if config.StorageBackend == "redis" {
			messages = repositories.NewRedisMessageStore(client, log, config.MaxChatHistory)
			rooms = repositories.NewRedisRoomStore(client, log)
		}
	}
	if messages == nil {
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("closing badger")
			_ = db.Close()
		}()
		messages = repositories.NewBadgerMessageStore(db, log, config.MaxChatHistory)
		rooms = repositories.NewBadgerRoomStore(db, log)
	}

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() { _ = indexWriter.Close() }()
	searchIndex := repositories.NewBlugeSearchIndex(indexWriter, log)

	// Moderation and AI collaborators.
	wordlist, err := moderation.LoadWordlist()
	if err != nil {
		return fmt.Errorf("wordlist loading failed: %w", err)
	}
	replacement, err := CharacterRune(config.CensorReplacement)
	if err != nil {
		return fmt.Errorf("censor setup failed: %w", err)
	}
	censor, err := moderation.NewCensor(wordlist.Words, replacement)
	if err != nil {
		return fmt.Errorf("censor setup failed: %w", err)
	}
	log.Info("moderation loaded", "words", len(wordlist.Words), "languages", wordlist.Languages)

	detector, err := trigger.NewDetector(trigger.DefaultPhrases)
	if err != nil {
		return fmt.Errorf("trigger setup failed: %w", err)
	}
	generator := ai.NewGenerator(ai.Config{
		BaseURL: config.AIModelURL,
		APIKey:  config.AIAPIKey,
		Model:   config.AIModel,
		Timeout: config.AIResponseTimeout,
	}, log)

	// Runtime.
	registry := runtime.NewRegistry()
	stats := observability.NewStatsManager(log, registry.Count)
	broadcaster := runtime.NewBroadcaster(log, registry, config.DeliveryTimeout)
	orchestrator := runtime.NewOrchestrator(log, registry, broadcaster,
		messages, rooms, generator, detector, censor,
		config.HistoryReplay, config.AIContextMessages).
		WithSearch(searchIndex).
		WithStats(stats)
	if presence != nil {
		orchestrator.WithPresence(presence)
	}

	verifier := auth.NewVerifier(config.AuthSecret)
	roomService := services.NewRoomService(log, rooms, messages, orchestrator, config.DefaultRoomID).
		WithSearch(searchIndex)
	if err := roomService.EnsureDefaultRoom(ctx, config.DefaultRoomName); err != nil {
		return fmt.Errorf("default room setup failed: %w", err)
	}

	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewStatsReporter(log, config.StatsInterval, stats.Report))
	go sup.Run(ctx)
	defer sup.Stop()

	// HTTP surface.
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.NewHandlers(log, roomService, stats, verifier).Register(app)
	ws.NewHandler(log, verifier, rooms, orchestrator, config.DefaultRoomID, config.ConnectionBufferSize).Register(app)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", address)
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errChan:
		return err
	}

	if err := app.Shutdown(); err != nil {
		log.Warn("server shutdown failed", "error", err)
	}
	log.Info("stopped cleanly")
	return nil
}
