package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/bootstrap"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/config"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/logger"
)

const commandTimeout = 2 * time.Minute

var (
	ledgerObsid   int
	ledgerPending bool
	ledgerSigner  string
	ledgerLimit   int
	outputCSV     bool
	tokenUser     string
	tokenRole     string

	rootCmd = &cobra.Command{
		Use:           "ocat-admin",
		Short:         "Operate the Ocat revision store and sign-off ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	nextRevisionCmd = &cobra.Command{
		Use:   "next-revision [obsid]",
		Short: "Print the revision number the next submission for obsid would take",
		Args:  cobra.ExactArgs(1),
		RunE:  runNextRevision,
	}

	ledgerCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and repair the sign-off ledger",
	}
	ledgerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List ledger rows, newest first",
		RunE:  runLedgerList,
	}
	ledgerReconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Seed ledger rows for revisions whose submission failed to record one",
		RunE:  runLedgerReconcile,
	}

	approvalsCmd = &cobra.Command{
		Use:   "approvals",
		Short: "List the approved-observations registry",
		RunE:  runApprovals,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a reviewer identity token for scripted clients",
		RunE:  runToken,
	}
)

func init() {
	ledgerListCmd.Flags().IntVar(&ledgerObsid, "obsid", 0, "Only rows for this observation")
	ledgerListCmd.Flags().BoolVar(&ledgerPending, "pending", false, "Only rows with a pending column")
	ledgerListCmd.Flags().StringVar(&ledgerSigner, "signer", "", "Only rows signed by this user")
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 0, "Maximum rows (0 = all)")
	ledgerListCmd.Flags().BoolVar(&outputCSV, "csv", false, "Output as CSV")
	approvalsCmd.Flags().BoolVar(&outputCSV, "csv", false, "Output as CSV")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Reviewer user name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(models.RoleReviewer), "Reviewer role")
	_ = tokenCmd.MarkFlagRequired("user")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerReconcileCmd)
	rootCmd.AddCommand(nextRevisionCmd, ledgerCmd, approvalsCmd, tokenCmd)
}

// withServices runs fn against the wired application and releases it after.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *bootstrap.Services, logr *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg, "admin")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	svc, err := bootstrap.New(cfg, logr)
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, svc, logr)
}

func runNextRevision(cmd *cobra.Command, args []string) error {
	obsid, err := strconv.Atoi(args[0])
	if err != nil || obsid <= 0 {
		return fmt.Errorf("invalid obsid %q", args[0])
	}
	return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services, _ *zap.Logger) error {
		id, err := svc.Revisions.NextRevision(ctx, obsid)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	})
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	filter := models.SignoffFilter{
		Obsid:       ledgerObsid,
		PendingOnly: ledgerPending,
		Signer:      ledgerSigner,
		Limit:       ledgerLimit,
	}
	return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services, _ *zap.Logger) error {
		if outputCSV {
			body, err := svc.Exports.LedgerCSV(ctx, filter)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		entries, err := svc.Signoffs.List(ctx, filter)
		if err != nil {
			return err
		}
		return printLedger(cmd.OutOrStdout(), entries)
	})
}

func runLedgerReconcile(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services, logr *zap.Logger) error {
		seeded, err := svc.Signoffs.Reconcile(ctx)
		if err != nil {
			return err
		}
		logr.Info("ledger reconciled", zap.Int("seeded", len(seeded)))
		for _, id := range seeded {
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
		}
		return nil
	})
}

func runApprovals(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services, _ *zap.Logger) error {
		if outputCSV {
			body, err := svc.Exports.ApprovalsCSV(ctx)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		entries, _, err := svc.Signoffs.Approvals(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OBSID\tSEQ\tSIGNER\tDATE")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Obsid, e.SeqNbr, e.Signer, e.Date.Format("2006-01-02"))
		}
		return w.Flush()
	})
}

// runToken needs only the JWT settings, so it skips the database.
func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokens := bootstrap.Tokens(cfg)
	token, expires, err := tokens.IssueToken(tokenUser, models.UserRole(tokenRole))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.UTC().Format(time.RFC3339))
	return nil
}

func printLedger(out io.Writer, entries []models.SignoffEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBSIDREV\tSEQ\tSUBMITTER\tGENERAL\tACIS\tACIS SI\tHRC SI\tVERIFIED")
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.SeqNbr, e.Submitter,
			describeCell(e.General), describeCell(e.ACIS), describeCell(e.ACISSI),
			describeCell(e.HRCSI), describeCell(e.Verification))
	}
	return w.Flush()
}

func describeCell(c models.ColumnStatus) string {
	switch c.State {
	case models.StateSigned:
		if c.Date == nil {
			return c.Signer
		}
		return c.Signer + " " + c.Date.UTC().Format("01/02/06")
	case models.StatePending:
		return "pending"
	default:
		return "-"
	}
}
