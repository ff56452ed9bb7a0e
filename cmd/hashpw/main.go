// Command hashpw prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpw --cost 12 'my admin password'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-hold-service/internal/utils"
)

func newRootCmd() *cobra.Command {
	var cost int
	rootCmd := &cobra.Command{
		Use:           "hashpw <password>",
		Short:         "Hash an admin password",
		Long:          `Print the bcrypt hash to put in ADMIN_PASSWORD_HASH`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := utils.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	rootCmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
}
