package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/JeanGrijp/go-csrfguard/csrf"
	"github.com/JeanGrijp/go-csrfguard/csrf/csrfprom"
	"github.com/JeanGrijp/go-csrfguard/session"
)

var (
	addr          string
	expiryMinutes int
	allowedHost   string
	requireOrigin bool
	requireExpiry bool
	secureCookie  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo web application",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(os.Stdout)

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		obs, err := csrfprom.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		g := newServeGuard(log, obs)
		sessions := session.NewManager(store, session.Options{
			CookieSecure: secureCookie,
			Logger:       log,
		})

		server := &http.Server{
			Addr:              addr,
			Handler:           newApp(g, sessions, reg, log),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		log.Info("listening", "addr", addr, "store", storeKind, "expiry_minutes", g.ExpiryMinutes())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// newServeGuard builds the Guard from the serve flags. The lifetime is applied
// with SetExpiryMinutes so that --expiry 0 keeps its meaning.
func newServeGuard(log *slog.Logger, obs csrf.Observer) *csrf.Guard {
	g := csrf.New(csrf.Config{
		AllowedHost:   allowedHost,
		RequireOrigin: requireOrigin,
		RequireExpiry: requireExpiry,
		Logger:        log,
		Observer:      obs,
	})
	g.SetExpiryMinutes(expiryMinutes)
	return g
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().IntVar(&expiryMinutes, "expiry", csrf.DefaultExpiryMinutes, "Token lifetime in minutes")
	serveCmd.Flags().StringVar(&allowedHost, "allowed-host", "", "Host Origin/Referer must name (default: request host)")
	serveCmd.Flags().BoolVar(&requireOrigin, "require-origin", false, "Reject unsafe requests without Origin or Referer")
	serveCmd.Flags().BoolVar(&requireExpiry, "require-expiry", false, "Reject tokens stored without an expiry")
	serveCmd.Flags().BoolVar(&secureCookie, "secure-cookie", false, "Mark the session cookie Secure (HTTPS deployments)")
}
