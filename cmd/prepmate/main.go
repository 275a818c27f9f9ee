// PrepMate - local interview practice companion
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prepmate/prepmate/internal/api"
	"github.com/prepmate/prepmate/internal/audio"
	"github.com/prepmate/prepmate/internal/avatar"
	"github.com/prepmate/prepmate/internal/bus"
	"github.com/prepmate/prepmate/internal/config"
	"github.com/prepmate/prepmate/internal/logging"
	"github.com/prepmate/prepmate/internal/server"
	"github.com/prepmate/prepmate/internal/session"
	"github.com/prepmate/prepmate/internal/speech"
	"github.com/prepmate/prepmate/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Fall through with defaults; a missing config file is normal on
		// first run.
		cfg = config.DefaultConfig()
	}

	syslog, err := logging.New(&logging.Config{
		LogDir:  cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	})
	if err != nil {
		os.Exit(1)
	}
	defer syslog.Close()

	log := syslog.Zerolog()
	log.Info().Str("log_file", syslog.GetLogPath()).Msg("PrepMate starting")

	db, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	eventBus := bus.NewEventBus()

	srv := server.NewServer(cfg.Server.AllowedOrigin, eventBus, syslog.Component("server"))

	backend := api.NewClient(cfg.Backend, log)
	player := speech.NewPlayer(backend, srv, eventBus, log)
	recorder := audio.NewRecorder(srv, eventBus, log)

	engine := avatar.NewEngine(cfg.Avatar, avatar.DefaultFrames(), eventBus, log)
	engine.Start()
	defer engine.Stop()

	ctrl := session.NewController(cfg.Interview, backend, player, recorder, engine, eventBus, log)
	srv.Bind(ctrl, player, recorder)

	// Talk overlay follows real playback, not synthesis.
	eventBus.Subscribe(bus.EventTypePlaybackStarted, func(bus.Event) { engine.StartTalking() })
	eventBus.SubscribeMultiple([]bus.EventType{
		bus.EventTypePlaybackEnded,
		bus.EventTypePlaybackFailed,
	}, func(bus.Event) { engine.StopTalking() })

	// Persist finished answers under the local profile.
	userID, err := db.EnsureUser(context.Background(), "local")
	if err != nil {
		log.Warn().Err(err).Msg("Answer history disabled")
	} else {
		eventBus.Subscribe(bus.EventTypeSessionLogEntry, func(e bus.Event) {
			entry, ok := e.Data["entry"].(session.LogEntry)
			if !ok {
				return
			}
			var score float64
			if entry.Evaluation.FinalScore != nil {
				score = *entry.Evaluation.FinalScore
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := db.RecordAnswer(ctx, userID, store.SourceGeneric, entry.Question, entry.Transcript, score); err != nil {
				log.Warn().Err(err).Msg("Failed to record answer")
			}
		})
	}

	config.Watch(func(updated *config.Config) {
		log.Info().Msg("Configuration reloaded")
		cfg.Backend = updated.Backend
	})

	httpSrv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     srv.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("Listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}
