package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctrlix/bookkeeper/internal/auth"
	"github.com/ctrlix/bookkeeper/internal/logger"
)

func newLoginCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <name>",
		Short: "Sign in as a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logger.WithContext(cmd.Context(), a.log)

			// Pull cloud-managed accounts first; offline this is a no-op.
			if err := a.sync.RefreshUsers(ctx); err != nil {
				a.log.Warn().Err(err).Msg("User refresh before login failed")
			}

			u, err := auth.Login(a.store, args[0], password)
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", u.Name, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := auth.Logout(a.store); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}
