package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
)

func newCategoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage accounting categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tACTIVE")
			for _, c := range a.store.Categories() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Type, c.IsActive)
			}
			return w.Flush()
		},
	})

	var catType string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor()
			if err != nil {
				return err
			}

			t := domain.TypeExpense
			if strings.EqualFold(catType, string(domain.TypeIncome)) {
				t = domain.TypeIncome
			}

			ctx := logger.WithContext(cmd.Context(), a.log)
			c, err := a.sync.AddCategory(ctx, actor, domain.Category{Name: args[0], Type: t, IsActive: true}, sheetsync.DeliveryDetached)
			if err != nil {
				return err
			}
			fmt.Printf("Added category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&catType, "type", "EXPENSE", "INCOME or EXPENSE")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor()
			if err != nil {
				return err
			}

			ctx := logger.WithContext(cmd.Context(), a.log)
			if err := a.sync.DeleteCategory(ctx, actor, args[0], sheetsync.DeliveryDetached); err != nil {
				return err
			}
			fmt.Printf("Removed category %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and departments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE")
			for _, p := range a.store.Projects() {
				fmt.Fprintf(w, "%s\t%s\t%t\n", p.ID, p.Name, p.IsActive)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a project or department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor()
			if err != nil {
				return err
			}

			ctx := logger.WithContext(cmd.Context(), a.log)
			p, err := a.sync.AddProject(ctx, actor, domain.ProjectDept{Name: args[0], IsActive: true}, sheetsync.DeliveryDetached)
			if err != nil {
				return err
			}
			fmt.Printf("Added project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a project or department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor()
			if err != nil {
				return err
			}

			ctx := logger.WithContext(cmd.Context(), a.log)
			if err := a.sync.DeleteProject(ctx, actor, args[0], sheetsync.DeliveryDetached); err != nil {
				return err
			}
			fmt.Printf("Removed project %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newEndpointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoint [url]",
		Short: "Show or set the cloud endpoint, empty string disables sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				endpoint := a.store.Endpoint()
				if endpoint == "" {
					fmt.Println("No endpoint configured, running offline")
					return nil
				}
				fmt.Println(endpoint)
				return nil
			}

			if err := a.store.SetEndpoint(args[0]); err != nil {
				return err
			}
			if args[0] == "" {
				fmt.Println("Endpoint cleared, running offline")
			} else {
				fmt.Printf("Endpoint set to %s\n", args[0])
			}
			return nil
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the cloud snapshot and reconcile it into the local books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor()
			if err != nil {
				return err
			}

			ctx := logger.WithContext(cmd.Context(), a.log)

			if err := a.sync.RefreshUsers(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: user refresh failed: %v\n", err)
			}

			txs, err := a.sync.Refresh(ctx, actor)
			if err != nil {
				return err
			}

			fmt.Printf("Reconciled, %d transactions in the local books\n", len(txs))
			return nil
		},
	}
}
