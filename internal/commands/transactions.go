package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/extract"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store"
)

func newAddCommand() *cobra.Command {
	var (
		amountStr string
		txType    string
		summary   string
		category  string
		project   string
		method    string
		dateStr   string
		hasTaxID  bool
		receipt   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
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

			tx := domain.Transaction{
				Type:     domain.TypeExpense,
				Summary:  summary,
				HasTaxID: hasTaxID,
			}
			if strings.EqualFold(txType, string(domain.TypeIncome)) {
				tx.Type = domain.TypeIncome
			}
			if amountStr != "" {
				amount, err := decimal.NewFromString(amountStr)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amountStr, err)
				}
				tx.Amount = amount
			}
			if dateStr != "" {
				d, err := time.Parse(domain.DateOnly, dateStr)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", dateStr, err)
				}
				tx.Date = d
			}

			if receipt != "" {
				if err := attachReceipt(ctx, a, &tx, receipt); err != nil {
					return err
				}
			}
			if tx.Amount.IsZero() {
				return fmt.Errorf("amount is required, pass --amount or a --receipt it can be read from")
			}
			if tx.Date.IsZero() {
				tx.Date = time.Now().UTC().Truncate(24 * time.Hour)
			}

			tx.CategoryID = resolveCategory(a.store, category, tx.Type)
			tx.ProjectDeptID = resolveProject(a.store, project)
			tx.PaymentMethodID = resolveMethod(a.store, method)

			saved, err := a.sync.SubmitTransaction(ctx, actor, tx, sheetsync.DeliveryAwaited)
			if syncErr := reportSyncOutcome(err); syncErr != nil {
				return syncErr
			}

			fmt.Printf("Recorded %s  %s %s  %s\n", saved.ID, saved.Type, saved.Amount, saved.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&amountStr, "amount", "", "amount, required unless read from --receipt")
	cmd.Flags().StringVar(&txType, "type", "EXPENSE", "INCOME or EXPENSE")
	cmd.Flags().StringVar(&summary, "summary", "", "short description")
	cmd.Flags().StringVar(&category, "category", "", "category name or id")
	cmd.Flags().StringVar(&project, "project", "", "project or department name or id")
	cmd.Flags().StringVar(&method, "method", "", "payment method name or id")
	cmd.Flags().StringVar(&dateStr, "date", "", "date as YYYY-MM-DD, defaults to today")
	cmd.Flags().BoolVar(&hasTaxID, "tax-id", false, "receipt carries a company tax id")
	cmd.Flags().StringVar(&receipt, "receipt", "", "path to a receipt image, fields are extracted when possible")
	return cmd
}

// attachReceipt loads a receipt image, keeps it on the draft as a data URL
// and fills still-empty fields from model extraction.
func attachReceipt(ctx context.Context, a *app, tx *domain.Transaction, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading receipt %s: %w", path, err)
	}

	mimeType := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		mimeType = "image/png"
	}
	tx.AttachmentURL = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	ex, err := extract.NewGeminiExtractor().Extract(ctx, tx.AttachmentURL)
	if err != nil {
		a.log.Warn().Err(err).Msg("Receipt extraction failed, enter fields manually")
		return nil
	}
	extract.Apply(tx, ex)
	return nil
}

// resolveCategory accepts a category by id or display name. Unknown values
// pass through as given so a typo surfaces in review instead of blocking the
// entry.
func resolveCategory(st store.Store, v string, txType domain.TransactionType) string {
	if v == "" {
		return ""
	}
	for _, c := range st.Categories() {
		if c.ID == v || (c.Name == v && c.Type == txType) {
			return c.ID
		}
	}
	return v
}

func resolveProject(st store.Store, v string) string {
	if v == "" {
		return ""
	}
	for _, p := range st.Projects() {
		if p.ID == v || p.Name == v {
			return p.ID
		}
	}
	return v
}

func resolveMethod(st store.Store, v string) string {
	if v == "" {
		return ""
	}
	for _, m := range st.PaymentMethods() {
		if m.ID == v || m.Name == v {
			return m.ID
		}
	}
	return v
}

// reportSyncOutcome maps a mutation error to CLI behavior: a replay failure
// after a local commit is a warning, anything else aborts the command.
func reportSyncOutcome(err error) error {
	if err == nil {
		return nil
	}
	var syncErr *sheetsync.SyncError
	if errors.As(err, &syncErr) {
		fmt.Fprintf(os.Stderr, "Warning: saved locally, cloud sync failed: %v\n", syncErr.Err)
		return nil
	}
	return err
}

func newListCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
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

			txs := a.store.Transactions()
			if refresh {
				txs, err = a.sync.Refresh(ctx, actor)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Warning: refresh failed, showing local state: %v\n", err)
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tSTATUS\tCATEGORY\tSUMMARY\tRECORDED BY")
			for _, tx := range txs {
				if !actor.IsManager() && !tx.RecordedBy(actor) {
					continue
				}
				date := ""
				if !tx.Date.IsZero() {
					date = tx.Date.Format(domain.DateOnly)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					tx.ID, date, tx.Type, tx.Amount, tx.Status.Localized(),
					store.CategoryName(a.store, tx), tx.Summary, store.RecordedByName(a.store, tx))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "pull the cloud snapshot first")
	return cmd
}

func newApproveCommand() *cobra.Command {
	return newStatusCommand("approve", "Mark a pending transaction as reviewed", domain.StatusApproved)
}

func newBookCommand() *cobra.Command {
	return newStatusCommand("book", "Mark a reviewed transaction as booked", domain.StatusBooked)
}

func newStatusCommand(use, short string, next domain.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
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
			err = a.sync.AdvanceStatus(ctx, actor, args[0], next, sheetsync.DeliveryAwaited)
			if syncErr := reportSyncOutcome(err); syncErr != nil {
				return syncErr
			}

			fmt.Printf("%s is now %s\n", args[0], next.Localized())
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
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
			err = a.sync.DeleteTransaction(ctx, actor, args[0], sheetsync.DeliveryAwaited)
			if syncErr := reportSyncOutcome(err); syncErr != nil {
				return syncErr
			}

			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
