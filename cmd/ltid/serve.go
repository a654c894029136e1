package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	api "github.com/mind-engage/mindengage-lti/internal/api/http"
	"github.com/mind-engage/mindengage-lti/internal/config"
	"github.com/mind-engage/mindengage-lti/internal/lti"
	"github.com/mind-engage/mindengage-lti/internal/lti/sqlstore"
	"github.com/mind-engage/mindengage-lti/internal/session"
	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
	"github.com/mind-engage/mindengage-lti/pkg/outcomes"
)

const purgeInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LTI tool HTTP server",
	Long: `Serves the launch endpoints under /lti, tool configuration XML under
/lti/config/{id}, the consumer admin API under /admin and health checks.

Environment (prefix LTI_): HTTP_ADDR, DB_DRIVER, DB_DSN, SESSION_BACKEND,
REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, SESSION_SECRET, SESSION_TTL,
COOKIE_SECURE, FORCE_HTTPS, TRUST_FORWARDED_PROTO, OUTCOME_TIMEOUT, NONCE_TTL,
TIMESTAMP_SKEW, SETTINGS_FILE, ADMIN_USER, ADMIN_PASS_HASH, CORS_ORIGINS,
LOG_LEVEL, LOG_FORMAT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, err := config.ReadSettingsFile(cfg.SettingsFile)
		if err != nil {
			return err
		}
		settings := file.Settings(cfg)

		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()
		store := sqlstore.New(d)

		sessStore, closeSessions, err := newSessionStore(ctx, d)
		if err != nil {
			return err
		}
		defer closeSessions()
		key, err := sessionKey()
		if err != nil {
			return err
		}
		mgr := session.NewManager(sessStore, key)
		mgr.TTL = cfg.SessionTTL
		mgr.Secure = cfg.CookieSecure

		verifier := oauth1.NewVerifier(store)
		verifier.MaxSkew = cfg.TimestampSkew
		verifier.NonceTTL = cfg.NonceTTL

		tool := lti.NewTool(settings, store, mgr, verifier, outcomes.New(cfg.OutcomeTimeout))

		handler := api.NewRouter(api.Deps{
			Tool:          tool,
			Consumers:     store,
			Tools:         file,
			Ready:         store.Ping,
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			CORSOrigins:   cfg.CORSOrigins,
		})
		if len(cfg.CORSOrigins) == 0 {
			log.Info().Msg("LTI_CORS_ORIGINS is empty; cross-origin requests are not allowed")
		}
		if cfg.AdminPassHash == "" {
			log.Warn().Msg("LTI_ADMIN_PASS_HASH is not set; /admin is disabled")
		}

		go purgeLoop(ctx, store, sessStore)

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			log.Info().
				Str("addr", cfg.HTTPAddr).
				Str("db", string(cfg.Driver())).
				Str("sessions", string(cfg.SessionBackend)).
				Int("tools", len(file.Tools)).
				Msg("listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err, ok := <-errc:
			if ok {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info().Msg("server exited")
		return nil
	},
}

// purgeLoop drops expired nonces, and expired sessions when they live in SQL.
func purgeLoop(ctx context.Context, store *sqlstore.Store, sessions session.Store) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if n, err := store.PurgeNonces(ctx); err != nil {
			log.Warn().Err(err).Msg("purge nonces")
		} else if n > 0 {
			log.Debug().Int64("count", n).Msg("purged nonces")
		}
		if s, ok := sessions.(*session.SQLStore); ok {
			if n, err := s.PurgeExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("purge sessions")
			} else if n > 0 {
				log.Debug().Int64("count", n).Msg("purged sessions")
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "address to listen on; overrides LTI_HTTP_ADDR")
}
