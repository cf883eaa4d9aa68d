package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JeanGrijp/go-csrfguard/internal/logx"
	"github.com/JeanGrijp/go-csrfguard/session"
	bboltstore "github.com/JeanGrijp/go-csrfguard/session/bbolt"
	"github.com/JeanGrijp/go-csrfguard/session/memory"
)

var (
	logLevel  string
	logFormat string
	storeKind string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:   "csrfdemo",
	Short: "Demo application for session-bound CSRF tokens",
	Long: `csrfdemo serves a small form application protected by go-csrfguard
and offers helpers to issue tokens against a persistent session store.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "memory", "Session store backend (memory, bbolt)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./sessions.db", "Path of the bbolt session database")
}

func newLogger(w io.Writer) *slog.Logger {
	return logx.New(w, logLevel, logFormat)
}

// openStore returns the configured session store and a function releasing it.
func openStore() (session.Store, func() error, error) {
	switch storeKind {
	case "memory":
		return memory.NewStore(), func() error { return nil }, nil
	case "bbolt":
		s, err := bboltstore.NewStoreFromFile(dbPath, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", storeKind)
	}
}
