package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"society/internal/activity"
	"society/internal/auth"
	"society/internal/backend"
	"society/internal/backend/factory"
	"society/internal/cli"
	"society/internal/config"
	"society/internal/core"
	applog "society/internal/log"
	"society/internal/services"
	gsheet "society/internal/sheets/google"
	"society/internal/storage"
)

// env is loaded once before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "societyctl",
		Short:         "Administer a society deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			e.cfg = config.Load()
			e.logger = cli.SetupLogger(e.cfg, applog.ComponentCLI)
			return e.cfg.ValidateCore()
		},
	}
	root.AddCommand(
		e.migrateCmd(),
		e.generatePaymentsCmd(),
		e.createUserCmd(),
		e.noticeCmd("export", "Export all data", (*services.Service).ExportData),
		e.noticeCmd("import", "Import data from a backup", (*services.Service).ImportData),
		e.noticeCmd("reset", "Delete all data", (*services.Service).ResetData),
		e.sheetsAuthCmd(),
	)
	return root
}

// withBackend opens the configured backend for the duration of fn.
func (e *env) withBackend(ctx context.Context, fn func(backend.Client) error) error {
	bc, err := factory.FromAppConfig(e.cfg)
	if err != nil {
		return err
	}
	res, err := factory.New(e.logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			e.logger.Warn("Failed to close backend", applog.FieldError, err)
		}
	}()
	return fn(res.Client)
}

// publisher records activity in-process, or over AMQP when configured.
func (e *env) publisher(client backend.Client) (activity.Publisher, func() error) {
	return cli.Publisher(e.logger, e.cfg, activity.NewRecorder(client))
}

func (e *env) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect, dsn, err := migrationTarget(e.cfg)
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(dialect, dsn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", dialect)
			return nil
		},
	}
}

func migrationTarget(cfg *config.Config) (storage.Dialect, string, error) {
	switch cfg.DataBackend {
	case string(factory.SQLiteBackend):
		return storage.DialectSQLite, cfg.SQLiteDBPath, nil
	case string(factory.PostgresBackend):
		return storage.DialectPostgres, cfg.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("backend %q has no migrations", cfg.DataBackend)
	}
}

func (e *env) generatePaymentsCmd() *cobra.Command {
	var amountFlag string
	cmd := &cobra.Command{
		Use:   "generate-payments",
		Short: "Create this month's pending maintenance payments for occupied houses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount := e.cfg.DefaultMaintenanceAmount
			if cmd.Flags().Changed("amount") {
				v, err := core.ParsePositiveAmount(amountFlag)
				if err != nil {
					return fmt.Errorf("--amount %q: %w", amountFlag, err)
				}
				amount = v
			}
			return e.withBackend(cmd.Context(), func(client backend.Client) error {
				pub, closePub := e.publisher(client)
				defer closePub()
				svc := services.New(client,
					services.WithPublisher(pub),
					services.WithLogger(e.logger.WithComponent(applog.ComponentServices)),
				)
				n, err := svc.GenerateMonthlyPayments(cmd.Context(), amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Generated %d payments of %s\n", n, core.FormatAmount(amount))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&amountFlag, "amount", "", "amount per house (defaults to DEFAULT_MAINTENANCE_AMOUNT)")
	return cmd
}

func (e *env) createUserCmd() *cobra.Command {
	var email, name, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a user with a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := core.ParseRole(role)
			if err != nil {
				return err
			}
			return e.withBackend(cmd.Context(), func(client backend.Client) error {
				pub, closePub := e.publisher(client)
				defer closePub()
				u, err := auth.NewAuthenticator(client, pub).
					WithLogger(e.logger.WithComponent(applog.ComponentAuth)).
					CreateUser(cmd.Context(), email, name, password, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with role %s\n", u.Email, u.ID, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "sign-in email")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "initial password (at least 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(core.RoleMember), "admin, security or member")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (e *env) noticeCmd(use, short string, action func(*services.Service) core.Notice) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withBackend(cmd.Context(), func(client backend.Client) error {
				printNotice(cmd.OutOrStdout(), action(services.New(client)))
				return nil
			})
		},
	}
}

func printNotice(w io.Writer, n core.Notice) {
	fmt.Fprintln(w, n.Message)
}

func (e *env) sheetsAuthCmd() *cobra.Command {
	var port, out string
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets access and save the OAuth token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := gsheet.Authorize(cmd.Context(), gsheet.AuthorizeOptions{
				ClientJSON:   e.cfg.GoogleOAuthClientJSON,
				ClientFile:   e.cfg.GoogleOAuthClientFile,
				RedirectPort: port,
				Timeout:      5 * time.Minute,
			}, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if out == "" {
				out = e.cfg.GoogleOAuthTokenFile
			}
			if out == "" {
				out = gsheet.DefaultTokenFile
			}
			if err := gsheet.SaveToken(out, tok); err != nil {
				return err
			}
			if tok.RefreshToken == "" {
				return errors.New("no refresh token returned; revoke the app's access and retry")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "local port for the OAuth callback")
	cmd.Flags().StringVar(&out, "out", "", "token file (defaults to GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	return cmd
}
