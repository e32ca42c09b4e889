package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"task-server/confs"
	"task-server/db"
	"task-server/server"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// load config
	if err := confs.LoadConfig(log); err != nil {
		log.Fatal().Err(err).Msg("load .env")
	}
	cfg, err := confs.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// user accounts live for the lifetime of the process
	database, err := db.Connect(db.MemoryDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer database.Close()

	srv, err := server.NewServer(cfg, database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server")
	}
}
