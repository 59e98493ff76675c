package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the registry and API key tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			// openApp migrates the registry database.
			_, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			log.Info().Msg("migrations complete")
			return nil
		},
	}
}
