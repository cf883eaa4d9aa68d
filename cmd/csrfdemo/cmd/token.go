package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JeanGrijp/go-csrfguard/csrf"
	"github.com/JeanGrijp/go-csrfguard/session"
)

var (
	sessionID   string
	tokenExpiry int
	deleteToken bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue or delete the CSRF token of a stored session",
	Long: `token writes a fresh CSRF token into the given session of the configured
store and prints it, e.g. to script requests against a running server that
shares the same bbolt database. With --delete the token is removed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required")
		}
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		g := csrf.New(csrf.Config{Logger: newLogger(cmd.ErrOrStderr())})
		g.SetExpiryMinutes(tokenExpiry)
		return runToken(cmd.OutOrStdout(), g, session.NewHandle(store, sessionID), deleteToken)
	},
}

func runToken(w io.Writer, g *csrf.Guard, sess csrf.Session, del bool) error {
	if del {
		return g.Delete(sess)
	}
	tok, err := g.Issue(sess)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&sessionID, "session", "", "Session ID to issue the token for")
	tokenCmd.Flags().IntVar(&tokenExpiry, "expiry", csrf.DefaultExpiryMinutes, "Token lifetime in minutes")
	tokenCmd.Flags().BoolVar(&deleteToken, "delete", false, "Delete the token instead of issuing one")
}
