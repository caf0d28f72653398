package app

import (
	"crypto/tls"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/windi-messenger/chathub/internal/api"
	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/health"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/middleware"
	"github.com/windi-messenger/chathub/internal/wsserver"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HandlerFlag is a bit mask of handlers that must be enabled in mux.
type HandlerFlag int

const (
	// HandlerWebsocket enables client WebSocket handler.
	HandlerWebsocket HandlerFlag = 1 << iota
	// HandlerAPI enables server API handler.
	HandlerAPI
	// HandlerToken enables connection token and subscription proof endpoints.
	HandlerToken
	// HandlerPrometheus enables Prometheus handler.
	HandlerPrometheus
	// HandlerHealth enables Health check endpoint.
	HandlerHealth
)

var handlerText = map[HandlerFlag]string{
	HandlerWebsocket:  "websocket",
	HandlerAPI:        "api",
	HandlerToken:      "token",
	HandlerPrometheus: "prometheus",
	HandlerHealth:     "health",
}

func (flags HandlerFlag) String() string {
	flagsOrdered := []HandlerFlag{HandlerWebsocket, HandlerToken, HandlerAPI, HandlerPrometheus, HandlerHealth}
	var endpoints []string
	for _, flag := range flagsOrdered {
		text, ok := handlerText[flag]
		if !ok {
			continue
		}
		if flags&flag != 0 {
			endpoints = append(endpoints, text)
		}
	}
	return strings.Join(endpoints, ", ")
}

// handlers served by HTTP servers.
type handlers struct {
	hub      *hub.Hub
	executor *api.Executor
	// token is nil when token endpoints disabled.
	token  *api.TokenHandler
	checks map[string]health.Check
}

func handlerPrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "/"
	}
	return prefix
}

// stripPrefix serves prefix itself as root path of h.
func stripPrefix(prefix string, h http.Handler) http.Handler {
	return http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		h.ServeHTTP(w, r)
	}))
}

// mount registers h on prefix and all paths under it.
func mount(mux *http.ServeMux, prefix string, h http.Handler) {
	if prefix == "/" {
		mux.Handle("/", h)
		return
	}
	h = stripPrefix(prefix, h)
	mux.Handle(prefix, h)
	mux.Handle(prefix+"/", h)
}

// Mux returns a mux including set of handlers enabled by flags.
func Mux(hs *handlers, cfg config.Config, flags HandlerFlag) *http.ServeMux {
	mux := http.NewServeMux()

	var commonMiddlewares []alice.Constructor

	useLoggingMW := zerolog.GlobalLevel() <= zerolog.DebugLevel
	if useLoggingMW {
		commonMiddlewares = append(commonMiddlewares, middleware.LogRequest)
	}
	if cfg.Prometheus.Enabled && cfg.Prometheus.InstrumentHTTPHandlers {
		commonMiddlewares = append(commonMiddlewares, middleware.HTTPServerInstrumentation)
	}

	basicChain := alice.New(commonMiddlewares...)

	checkOrigin := getCheckOrigin(cfg)

	if flags&HandlerWebsocket != 0 {
		connMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
		if cfg.WebSocket.ConnectionLimit > 0 {
			connLimitMW := middleware.NewConnLimit(hs.hub.NumClients, cfg.WebSocket.ConnectionLimit, 0)
			connMiddlewares = append(connMiddlewares, connLimitMW.Middleware)
		}
		connChain := alice.New(connMiddlewares...)
		wsPrefix := handlerPrefix(cfg.WebSocket.HandlerPrefix)
		mux.Handle(wsPrefix, connChain.Then(wsserver.NewHandler(hs.hub, cfg.WebSocket, checkOrigin)))
	}

	if flags&HandlerToken != 0 && hs.token != nil {
		tokenMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
		tokenMiddlewares = append(tokenMiddlewares, middleware.NewCORS(checkOrigin).Middleware, middleware.Post)
		mount(mux, handlerPrefix(cfg.TokenAPI.HandlerPrefix), alice.New(tokenMiddlewares...).Then(hs.token))
	}

	if flags&HandlerAPI != 0 {
		apiPrefix := handlerPrefix(cfg.HttpAPI.HandlerPrefix)
		apiMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
		if cfg.OpenTelemetry.Enabled && cfg.OpenTelemetry.API {
			apiMiddlewares = append(apiMiddlewares, middleware.NewOpenTelemetryHandler(apiPrefix).Middleware)
		}
		apiMiddlewares = append(apiMiddlewares, middleware.Post)
		if !cfg.HttpAPI.Insecure {
			apiMiddlewares = append(apiMiddlewares, middleware.NewAPIKeyAuth(cfg.HttpAPI.Key).Middleware)
		}
		mount(mux, apiPrefix, alice.New(apiMiddlewares...).Then(api.NewHandler(hs.executor)))
	}

	if flags&HandlerPrometheus != 0 {
		mux.Handle(handlerPrefix(cfg.Prometheus.HandlerPrefix), basicChain.Then(promhttp.Handler()))
	}

	if flags&HandlerHealth != 0 {
		mux.Handle(handlerPrefix(cfg.Health.HandlerPrefix), basicChain.Then(health.NewHandler(hs.checks)))
	}

	return mux
}

// handlerFlagsByAddr splits handlers between external and internal addresses.
// Both sets are served by one server when addresses match.
func handlerFlagsByAddr(cfg config.Config) map[string]HandlerFlag {
	httpAddress := cfg.HTTP.Address
	httpPort := strconv.Itoa(cfg.HTTP.Port)
	httpInternalAddress := cfg.HTTP.InternalAddress
	httpInternalPort := cfg.HTTP.InternalPort

	if httpInternalAddress == "" && httpAddress != "" {
		// If custom internal address not explicitly set we try to reuse main
		// address for internal endpoints too.
		httpInternalAddress = httpAddress
	}
	if httpInternalPort == "" {
		httpInternalPort = httpPort
	}

	addrToHandlerFlags := map[string]HandlerFlag{}

	externalAddr := net.JoinHostPort(httpAddress, httpPort)
	portFlags := addrToHandlerFlags[externalAddr]
	if !cfg.WebSocket.Disabled {
		portFlags |= HandlerWebsocket
	}
	if cfg.TokenAPI.Enabled {
		portFlags |= HandlerToken
	}
	if !cfg.HttpAPI.Disabled && cfg.HttpAPI.External {
		portFlags |= HandlerAPI
	}
	addrToHandlerFlags[externalAddr] = portFlags

	internalAddr := net.JoinHostPort(httpInternalAddress, httpInternalPort)
	portFlags = addrToHandlerFlags[internalAddr]
	if !cfg.HttpAPI.Disabled && !cfg.HttpAPI.External {
		portFlags |= HandlerAPI
	}
	if cfg.Prometheus.Enabled {
		portFlags |= HandlerPrometheus
	}
	if cfg.Health.Enabled {
		portFlags |= HandlerHealth
	}
	addrToHandlerFlags[internalAddr] = portFlags
	return addrToHandlerFlags
}

func runHTTPServers(hs *handlers, cfg config.Config) ([]*http.Server, error) {
	tlsConfig, err := cfg.HTTP.TLS.ToGoTLSConfig("http_server")
	if err != nil {
		return nil, err
	}

	addrToHandlerFlags := handlerFlagsByAddr(cfg)

	var servers []*http.Server

	// Iterate over port-to-flags mapping and start HTTP servers
	// on separate ports serving handlers specified in flags.
	for addr, handlerFlags := range addrToHandlerFlags {
		if handlerFlags == 0 {
			continue
		}
		mux := Mux(hs, cfg, handlerFlags)

		log.Info().Msgf("serving %s endpoints on %s", handlerFlags, addr)

		server := &http.Server{
			Addr:      addr,
			Handler:   mux,
			TLSConfig: tlsConfig,
			ErrorLog:  stdlog.New(&httpErrorLogWriter{Logger: log.Logger}, "", 0),
		}
		servers = append(servers, server)

		go func(tlsConfig *tls.Config) {
			if tlsConfig != nil {
				if err := server.ListenAndServeTLS("", ""); err != nil {
					if !errors.Is(err, http.ErrServerClosed) {
						log.Fatal().Err(err).Msg("error ListenAndServeTLS")
					}
				}
			} else {
				if err := server.ListenAndServe(); err != nil {
					if !errors.Is(err, http.ErrServerClosed) {
						log.Fatal().Err(err).Msg("error ListenAndServe")
					}
				}
			}
		}(tlsConfig)
	}

	return servers, nil
}
