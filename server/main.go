package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/config"
	"github.com/meikuraledutech/botflow/engine"
	"github.com/meikuraledutech/botflow/memory"
	"github.com/meikuraledutech/botflow/observability"
	"github.com/meikuraledutech/botflow/postgres"
	"github.com/meikuraledutech/botflow/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	var store botflow.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Storage.DSN)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	case "sqlite":
		s, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer s.Close()
		if err := s.CreateSchema(context.Background()); err != nil {
			log.Fatalf("create schema: %v", err)
		}
		store = s
	default:
		store = memory.New()
	}

	eng := engine.New(store,
		engine.WithCacheTTL(cfg.Cache.TTL.Std()),
		engine.WithLogger(logger),
		engine.WithMetrics(observability.NewMetricsRecorder()),
	)

	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Bots ──────────────────────────────────────────────────────────
	app.Post("/bots", func(c fiber.Ctx) error {
		var bot botflow.Bot
		if err := c.Bind().JSON(&bot); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		created, err := eng.CreateBot(c.Context(), &bot)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(created)
	})

	app.Get("/bots/:id", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		bot, err := store.GetBot(c.Context(), botID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(bot)
	})

	// ── Flow (editor read/write) ──────────────────────────────────────
	app.Get("/bots/:id/flow", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		flow, err := eng.GetFlow(c.Context(), botID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(flow)
	})

	app.Put("/bots/:id/flow", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		var payload botflow.GraphPayload
		if err := c.Bind().JSON(&payload); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		result, err := eng.SaveFlow(c.Context(), botID, payload)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	})

	app.Patch("/bots/:id/flow", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		var diff engine.DiffPayload
		if err := c.Bind().JSON(&diff); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if diff.Empty() {
			return c.Status(400).JSON(fiber.Map{"error": "empty diff"})
		}
		result, err := eng.ApplyDiff(c.Context(), botID, diff)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	})

	// ── Backups ───────────────────────────────────────────────────────
	app.Get("/bots/:id/flow/backups", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		backups, err := eng.ListBackups(c.Context(), botID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(backups)
	})

	app.Post("/bots/:id/flow/backups", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		b, err := eng.CreateBackup(c.Context(), botID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(b)
	})

	app.Post("/bots/:id/flow/backups/:backupID/restore", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		result, err := eng.RestoreBackup(c.Context(), botID, c.Params("backupID"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	})

	// ── Chat ──────────────────────────────────────────────────────────
	app.Post("/bots/:id/chat", func(c fiber.Ctx) error {
		botID, err := paramID(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid bot id"})
		}
		var body struct {
			botflow.ChatRequest
			Contact string `json:"contact_identifier"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if body.Message == "" {
			return c.Status(400).JSON(fiber.Map{"error": "message is required"})
		}
		reply, err := eng.ChatStep(c.Context(), botID, body.Contact, body.ChatRequest)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(reply)
	})

	logger.Info("listening", "addr", cfg.Addr, "storage", cfg.Storage.Driver)
	log.Fatal(app.Listen(cfg.Addr))
}

func paramID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// fail translates domain errors to HTTP status codes.
func fail(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, botflow.ErrInvalidPayload):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, botflow.ErrBotNotFound),
		errors.Is(err, botflow.ErrNodeNotFound),
		errors.Is(err, botflow.ErrBackupNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
}
