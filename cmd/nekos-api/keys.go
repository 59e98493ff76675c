package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nekidev/nekos-api/internal/auth"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage operator API keys for registry writes",
	}
	cmd.AddCommand(newKeysCreateCmd(), newKeysListCmd(), newKeysRevokeCmd())
	return cmd
}

// parseExpiresIn accepts Go durations plus a whole-day suffix, e.g. "30d".
func parseExpiresIn(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid expires-in %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid expires-in %q", s)
	}
	return d, nil
}

func newKeysCreateCmd() *cobra.Command {
	var expiresIn string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Mint a key; the plaintext is printed once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expiresAt *time.Time
			if expiresIn != "" {
				d, err := parseExpiresIn(expiresIn)
				if err != nil {
					return err
				}
				t := time.Now().Add(d)
				expiresAt = &t
			}

			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			plaintext, hash, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			rec, err := auth.NewSQLKeyStore(a.db).Create(cmd.Context(), args[0], hash, expiresAt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":         rec.ID,
				"name":       rec.Name,
				"key":        plaintext,
				"expires_at": expiresAt,
			})
		},
	}
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "lifetime such as 720h or 30d (default never)")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			keys, err := auth.NewSQLKeyStore(a.db).List(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tLAST USED\tSTATE")
			for _, k := range keys {
				lastUsed := "never"
				if k.LastUsedAt.Valid {
					lastUsed = k.LastUsedAt.Time.Format(time.DateTime)
				}
				state := "active"
				switch {
				case k.RevokedAt.Valid:
					state = "revoked"
				case !k.Active(now):
					state = "expired"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt.Format(time.DateTime), lastUsed, state)
			}
			return tw.Flush()
		},
	}
}

func newKeysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := auth.NewSQLKeyStore(a.db).Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}
