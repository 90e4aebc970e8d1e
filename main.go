// Command backend is the main entrypoint for the linelight service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the command router, the editor WebSocket hub and the chat
//     transport, plus the OAuth token refresher for the chat credential.
//   - Exposes the HTTP API with /healthz, /status, /metrics, highlight
//     views and command endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM and runs the disconnect purge
// policy before the router stops.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/linelight/backend/chat"
	"github.com/linelight/backend/config"
	"github.com/linelight/backend/db"
	"github.com/linelight/backend/editor"
	"github.com/linelight/backend/engine"
	"github.com/linelight/backend/highlight"
	"github.com/linelight/backend/oauth"
	"github.com/linelight/backend/server"
	"github.com/linelight/backend/telemetry"
	"github.com/linelight/backend/twitchapi"
)

// tokenPrompter implements the state machine's prompter. Token prefers
// the persisted chat credential and only falls back to an interactive
// editor prompt; the purge prompt always goes to the editor plugin.
type tokenPrompter struct {
	database *sql.DB
	hub      *editor.Hub
}

func (p *tokenPrompter) Token(ctx context.Context) (string, bool, error) {
	value, expiry, err := db.GetCredential(ctx, p.database, db.CredentialChatToken)
	if err != nil {
		slog.Warn("stored chat token unavailable", slog.Any("err", err))
	} else if value != "" && (expiry.IsZero() || time.Now().Before(expiry)) {
		return value, true, nil
	}
	return p.hub.Token(ctx)
}

func (p *tokenPrompter) PurgePrompt(ctx context.Context) (engine.PurgeChoice, error) {
	return p.hub.PurgePrompt(ctx)
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("linelight", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, embedded SQL as fallback for deployments
	// predating the schema_migrations table.
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL", slog.Any("err", err))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prefs := &db.PrefStore{DB: database}
	if err := prefs.SeedAlwaysRemove(ctx, cfg.UnhighlightOnDisconnect); err != nil {
		slog.Warn("could not seed purge preference", slog.Any("err", err))
	}
	recorder := &db.Recorder{DB: database}

	registry := highlight.NewRegistry()

	// The hub and the router reference each other; the dispatch closure
	// breaks the cycle.
	var router *engine.Router
	dispatch := func(ev engine.Event) {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := router.Dispatch(dctx, ev); err != nil {
			slog.Warn("event dropped", slog.Any("err", err))
		}
	}

	hub := editor.NewHub(editor.Style{
		Color:     cfg.HighlightColor,
		Border:    cfg.HighlightBorder,
		FontColor: cfg.HighlightFontColor,
	}, dispatch)

	syncer := highlight.NewSyncer(registry, hub, nil)
	registry.SetOnChange(syncer.Refresh)

	chatClient := chat.NewClient(cfg.TwitchChannels, twitchapi.ValidateLogin, dispatch)
	prompter := &tokenPrompter{database: database, hub: hub}
	conn := engine.NewConnStateMachine(ctx, chatClient, registry, prompter, prefs)
	router = engine.NewRouter(registry, syncer, conn, hub, recorder)

	// The router outlives the signal context so the shutdown stop sequence
	// can still be processed.
	routerCtx, routerCancel := context.WithCancel(context.Background())
	defer routerCancel()
	go router.Run(routerCtx)

	// Best-effort app token fetch when client credentials are configured;
	// useful to surface misconfiguration early. Not used for IRC.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		tctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := (&twitchapi.AppTokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}).Get(tctx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
	}

	oauth.StartRefresher(ctx, database, 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, error) {
		clientID, clientSecret := cfg.TwitchClientID, cfg.TwitchClientSecret
		if clientID == "" {
			clientID, _, _ = db.GetCredential(rctx, database, db.CredentialClientID)
			clientSecret, _, _ = db.GetCredential(rctx, database, db.CredentialClientSecret)
		}
		res, err := twitchapi.RefreshToken(rctx, clientID, clientSecret, refreshToken)
		if err != nil {
			return "", "", time.Time{}, err
		}
		return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), nil
	})

	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	mux := server.NewMux(ctx, database, router, hub, recorder, cfg.TwitchChannels)
	go func() {
		if err := server.Start(ctx, mux, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Auto-connect chat when configured; a stored credential avoids any
	// interactive prompt.
	if os.Getenv("CHAT_AUTO_START") == "1" {
		if err := cfg.ValidateChatReady(); err != nil {
			slog.Warn("chat auto start skipped", slog.Any("err", err))
		} else {
			reply := make(chan error, 1)
			if err := router.Dispatch(ctx, engine.CmdStartChat{Reply: reply}); err == nil {
				go func() {
					if err := <-reply; err != nil {
						slog.Error("chat auto start failed", slog.Any("err", err))
					}
				}()
			}
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")

	// Run the stop sequence on the router goroutine with the prompt
	// pre-answered: dismissal keeps highlights, the persisted always-remove
	// preference still purges.
	keep := engine.ChoiceNone
	reply := make(chan error, 1)
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := router.Dispatch(sctx, engine.CmdStopChat{Choice: &keep, Reply: reply}); err == nil {
		select {
		case <-reply:
		case <-sctx.Done():
		}
	}
	cancel()
}
