// Command stunlock runs the duplicate-content moderation bot: it watches
// guild messages for repeated content, escalates per-user mute penalties
// with exponentially growing durations, and decays those penalties over
// time in a background sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-stunlock-bot/internal/commands"
	"github.com/tbourn/go-stunlock-bot/internal/config"
	"github.com/tbourn/go-stunlock-bot/internal/dispatch"
	"github.com/tbourn/go-stunlock-bot/internal/mute"
	"github.com/tbourn/go-stunlock-bot/internal/ops"
	"github.com/tbourn/go-stunlock-bot/internal/platform/discord"
	"github.com/tbourn/go-stunlock-bot/internal/repo"
	"github.com/tbourn/go-stunlock-bot/internal/sweep"
	"github.com/tbourn/go-stunlock-bot/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ledger := mute.NewLedger(db, log.Logger)
	if err := ledger.Load(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("warm mute cache")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("create gateway session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	client := discord.NewClient(session, cfg.RateRPS, cfg.RateBurst)
	dispatcher := dispatch.New(db, ledger, client, cfg.Salt, cfg.DefaultPrefix, log.Logger)
	router := commands.New(db, dispatcher, client, cfg.DefaultPrefix, log.Logger)
	discord.Attach(session, router, dispatcher, log.Logger)

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("open gateway connection")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := sweep.New(db, ledger, client, cfg.SweepInterval, log.Logger)
	go sweeper.Run(ctx)

	var opsSrv *http.Server
	if cfg.OpsAddr != "" {
		opsSrv = ops.NewServer(cfg.OpsAddr, log.Logger)
		go func() {
			if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server")
			}
		}()
	}

	log.Info().Msg("stunlock running")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Best-effort drain: stop taking work, then release the gateway, the
	// ops listener, and the database pool.
	if err := session.Close(); err != nil {
		log.Warn().Err(err).Msg("close gateway session")
	}
	if opsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsSrv.Shutdown(shutdownCtx)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
