package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/windi-messenger/chathub/internal/api"
	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/build"
	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/confighelpers"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/logging"
	"github.com/windi-messenger/chathub/internal/metrics"
	"github.com/windi-messenger/chathub/internal/service"
	"github.com/windi-messenger/chathub/internal/telemetry"
	"github.com/windi-messenger/chathub/internal/token"
	"github.com/windi-messenger/chathub/internal/tools"
	"github.com/windi-messenger/chathub/internal/userauth"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func Run(cmd *cobra.Command, configFile string) {
	dotEnvUsed := false
	if tools.FileExists(".env") {
		err := godotenv.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("error loading .env file")
		}
		dotEnvUsed = true
	}
	cfg, cfgMeta, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}

	ctx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()

	logCloseFn, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up logging")
	}
	defer logCloseFn()
	if cfgMeta.FileNotFound {
		log.Warn().Msg("config file not found, continue using environment and flag options")
	} else {
		absConfPath, _ := filepath.Abs(configFile)
		log.Info().Str("path", absConfPath).Msg("using config file")
		if dotEnvUsed {
			log.Info().Msg("environment variables have been loaded from .env file")
		}
	}
	err = tools.WritePidFile(cfg.PidFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error writing PID")
	}
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) {
		log.Info().Msgf(strings.ToLower(s), i...)
	}))

	// Registered services run after hub created and stopped after hub shutdown.
	serviceManager := service.NewManager()

	entry := log.Info().
		Str("version", build.Version).
		Str("runtime", runtime.Version()).
		Int("pid", os.Getpid()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0))
	if len(cfg.Store.Types) > 0 {
		entry = entry.Strs("stores", cfg.Store.Types)
	}
	entry.Str("membership", cfg.Membership.Type).Msg("starting Chathub")

	if build.Version == "0.0.0" {
		log.Warn().Msg("running a development build of Chathub (version 0.0.0), ensure to use release build in production")
	}

	err = cfg.Validate()
	if err != nil {
		log.Fatal().Err(err).Msg("error validating config")
	}

	err = metrics.Init(metrics.Config{
		Namespace:   cfg.Prometheus.Namespace,
		ConstLabels: cfg.Prometheus.ConstLabels,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing metrics")
	}

	if cfg.OpenTelemetry.Enabled {
		tp, err := telemetry.SetupTracing(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("error setting up opentelemetry tracing")
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	stg, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing stores")
	}

	tokens, err := token.New(confighelpers.MakeTokenConfig(cfg.Token))
	if err != nil {
		log.Fatal().Err(err).Msg("error creating token service")
	}

	gate := auth.NewGate(auth.Config{
		Membership:      stg.membership,
		Proofs:          tokens,
		PrivilegedUsers: cfg.Hub.PrivilegedUsers,
	})

	hubConfig := confighelpers.MakeHubConfig(cfg.Hub)
	hubConfig.Verifier = tokens
	hubConfig.Authorizer = gate
	hubConfig.Store = stg.hubStore()
	h, err := hub.New(hubConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating hub")
	}

	hs := &handlers{
		hub:      h,
		executor: api.NewExecutor(h, "http"),
		checks:   stg.checks,
	}
	if cfg.TokenAPI.Enabled {
		users, err := userauth.New(cfg.UserAuth)
		if err != nil {
			log.Fatal().Err(err).Msg("error creating user auth verifier")
		}
		hs.token = api.NewTokenHandler(users, tokens, gate)
	}

	serviceManager.Register("hub", h)
	if cfg.Graphite.Enabled {
		serviceManager.Register("graphite", graphiteExporter(cfg))
	}
	serviceManager.Run(ctx)

	httpServers, err := runHTTPServers(hs, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error running HTTP server")
	}

	logStartWarnings(cfg, cfgMeta)

	handleSignals(cmd, configFile, cfg, h, tokens, stg, httpServers, serviceManager, serviceCancel)
}

func handleSignals(
	cmd *cobra.Command, configFile string, cfg config.Config, h *hub.Hub, tokens *token.Service,
	stg *storage, httpServers []*http.Server, serviceManager *service.Manager, serviceCancel context.CancelFunc,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, os.Interrupt, syscall.SIGTERM)
	for {
		sig := <-sigCh
		log.Info().Msgf("signal received: %v", sig)
		switch sig {
		case syscall.SIGHUP:
			// Reload application configuration on SIGHUP. Only token
			// settings can be reloaded, existing connections keep working.
			log.Info().Msg("reloading configuration")
			newCfg, _, err := config.GetConfig(cmd, configFile)
			if err != nil {
				log.Err(err).Msg("error reading config")
				continue
			}
			if err = newCfg.Validate(); err != nil {
				log.Error().Msgf("error validating config: %v", err)
				continue
			}
			if err = tokens.Reload(confighelpers.MakeTokenConfig(newCfg.Token)); err != nil {
				log.Error().Msgf("error reloading: %v", err)
				continue
			}
			log.Info().Msg("configuration successfully reloaded")
		case syscall.SIGINT, os.Interrupt, syscall.SIGTERM:
			log.Info().Msg("shutting down ...")
			pidFile := cfg.PidFile
			shutdownTimeout := cfg.HTTP.ShutdownTimeout.ToDuration()
			if shutdownTimeout <= 0 {
				shutdownTimeout = 30 * time.Second
			}
			go time.AfterFunc(shutdownTimeout, func() {
				if pidFile != "" {
					_ = tools.RemovePidFile(pidFile)
				}
				log.Fatal().Msg("shutdown timeout reached")
			})

			var wg sync.WaitGroup
			for _, srv := range httpServers {
				wg.Add(1)
				go func(srv *http.Server) {
					defer wg.Done()
					_ = srv.Shutdown(context.Background()) // We have a separate timeout goroutine.
				}(srv)
			}

			_ = h.Shutdown(context.Background())
			wg.Wait()

			serviceCancel()
			_ = serviceManager.Wait()
			stg.Close()

			if pidFile != "" {
				_ = tools.RemovePidFile(pidFile)
			}
			os.Exit(0)
		}
	}
}
