package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/config"
	"github.com/Panos61/videocall-app-client-sub000/internal/session"
	"github.com/Panos61/videocall-app-client-sub000/internal/sfu"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}

	sfuClient := sfu.NewPionClient(sfu.DefaultWebRTCConfig())
	sess := session.New(cfg, sfuClient)
	if err := sess.Start(ctx); err != nil {
		log.Error().Err(err).Msg("session start failed")
		os.Exit(1)
	}
	defer sess.Close()

	log.Info().Str("room", cfg.RoomID).Str("sid", string(sess.SessionID())).Msg("joined room")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-sess.Done():
			return
		case <-ticker.C:
			view := sess.View()
			ev := log.Info().
				Bool("is_host", view.IsHost).
				Int("peers", len(view.Peers)).
				Int("speakers", len(view.Speakers)).
				Bool("room_killed", sess.System().RoomKilled())
			if view.Local != nil {
				ev = ev.Str("me", view.Local.Username)
			}
			ev.Msg("room view")
		}
	}
}
