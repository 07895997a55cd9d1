package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/adminauth"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/spf13/cobra"
)

type app struct {
	cfg         *config.Config
	now         func() time.Time
	openService func(ctx context.Context) (*admin.Service, func(), error)
	migrate     func(ctx context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "vendorctl",
		Short:        "Operate yard sale vendor registrations",
		SilenceUsage: true,
	}
	root.AddCommand(
		a.listCmd(),
		a.statsCmd(),
		a.exportCmd(),
		a.setStatusCmd(),
		a.tokenCmd(),
		a.migrateCmd(),
	)
	return root
}

func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *admin.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := a.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registrations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *admin.Service) error {
				rows, err := svc.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				return writeTable(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print registration totals and revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *admin.Service) error {
				ov, err := svc.Overview(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), ov.Stats)
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export registrations as CSV",
		Long: `Export every registration as CSV.

Without --output the file is named yard-sale-vendors-YYYY-MM-DD.csv in the
current directory. Use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *admin.Service) error {
				rows, err := svc.List(ctx)
				if err != nil {
					return err
				}
				if output == "-" {
					return admin.WriteCSV(cmd.OutOrStdout(), rows)
				}
				name := output
				if name == "" {
					name = admin.ExportFilename(a.now())
				}
				f, err := os.Create(name)
				if err != nil {
					return errors.Wrap(err, "create export file")
				}
				if err := admin.WriteCSV(f, rows); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return errors.Wrap(err, "close export file")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d registrations to %s\n", len(rows), name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}

func (a *app) setStatusCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "set-status <registration-id> <completed|failed>",
		Short: "Settle a pending registration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid registration id %q", args[0])
			}
			status := domain.PaymentStatus(args[1])
			return a.withService(cmd, func(ctx context.Context, svc *admin.Service) error {
				ov, err := svc.SetStatus(ctx, id, status, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registration %s is now %s\n", id, status)
				return writeJSON(cmd.OutOrStdout(), ov.Stats)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "vendorctl", "name recorded in the audit trail")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Require(config.KeyAdminJWTSecret); err != nil {
				return err
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			tok, err := adminauth.Issue(a.cfg.AdminJWTSecret, subject, ttl, a.now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, rows []domain.Registration) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSPACES\tAMOUNT\tSTATUS\tCREATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.FullName, r.Tier.Title(), r.Spaces, domain.FormatAmount(r.Amount), r.PaymentStatus, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
