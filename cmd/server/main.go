package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"armory/auth"
	"armory/bnet"
	"armory/gamedata"
	"armory/gamedata/rediscache"
	"armory/internal/config"
	"armory/server"
	"armory/sessions/redisrepo"
)

const appName = "Armory"

func main() {
	_ = godotenv.Load()

	// A missing credential is fatal before the listener ever opens.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogger(cfg.Env)
	displayAppname(appName)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}

	bnetClient, err := bnet.New(bnet.Config{
		Region:       cfg.BNet.Region,
		ClientID:     cfg.BNet.ClientID,
		ClientSecret: cfg.BNet.ClientSecret,
		RedirectURL:  cfg.BNet.CallbackURL,
		Scopes:       []string{cfg.BNet.Scope},
		HTTPTimeout:  cfg.BNet.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	sessionRepo := redisrepo.New(rdb, cfg.Sessions.EphemeralTTL, cfg.Sessions.PersistentTTL)

	authService, err := auth.NewService(sessionRepo, bnetClient, cfg.HTTP.FrontendURL+"/auth/callback")
	if err != nil {
		return err
	}

	fetcher := gamedata.NewFetcher(rediscache.New(rdb), bnetClient, cfg.Cache.GameDataTTL)

	srv, err := server.New(cfg, authService, sessionRepo, fetcher)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogger(env string) {
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
