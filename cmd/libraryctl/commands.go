package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkrupp/library/internal/domain"
	"github.com/mkrupp/library/internal/infra/config"
	"github.com/mkrupp/library/internal/infra/database"
	"github.com/mkrupp/library/internal/infra/logging"
	"github.com/mkrupp/library/internal/repo/user"
	"github.com/mkrupp/library/internal/svc/authsvc"
)

const (
	appName = "library"
	svcName = "libraryctl"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoPassword       = errors.New("no password given")
)

type Config struct {
	config.EnvConfig

	Log  logging.LoggerConfig `envPrefix:"LOG_"`
	Auth authsvc.AuthConfig   `envPrefix:""`
	DB   database.Config      `envPrefix:"DB_"`
}

type cli struct {
	cfg Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           svcName,
		Short:         "Administer the library store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.configure(cmd.Context())
		},
	}

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	userCmd.AddCommand(c.userAddCmd(), c.userListCmd())

	root.AddCommand(c.migrateCmd(), userCmd)

	return root
}

func (c *cli) configure(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}

	namespace := strings.ToUpper(appName + "_" + svcName)
	if err := config.Parse(ctx, &c.cfg, namespace); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, c.cfg.Log, strings.ToLower(appName+"."+svcName))

	return nil
}

func (c *cli) openDB(ctx context.Context, migrate bool) (*database.DB, error) {
	cfg := c.cfg.DB
	cfg.AutoMigrate = migrate

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return db, nil
}

func (c *cli) authService(db *database.DB) *authsvc.AuthService {
	return &authsvc.AuthService{
		Config:   c.cfg.Auth,
		DB:       db,
		UserRepo: user.NewSQLUserRepository(db),
		Log:      logging.GetLogger("cmd.libraryctl"),
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", db.Driver())

			return nil
		},
	}
}

func (c *cli) userAddCmd() *cobra.Command {
	var (
		role          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			db, err := c.openDB(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			created, err := c.authService(db).RegisterUser(cmd.Context(), args[0], password, domain.Role(role))
			if err != nil {
				return err //nolint:wrapcheck
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", created.Role, created.Username, created.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "librarian or member")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")

	return cmd
}

// readPassword takes the first line of stdin with --password-stdin and
// otherwise prompts twice on the terminal without echo.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read stdin: %w", err)
		}

		if password := strings.TrimRight(line, "\r\n"); password != "" {
			return password, nil
		}

		return "", ErrNoPassword
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: stdin is not a terminal, use --password-stdin", ErrNoPassword)
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), label)
		defer fmt.Fprintln(cmd.ErrOrStderr())

		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(raw), nil
	}

	password, err := prompt("Password: ")
	if err != nil {
		return "", err
	}

	confirm, err := prompt("Repeat password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}

	return password, nil
}

func (c *cli) userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := c.authService(db).ListUsers(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCREATED")

			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Role, time.Unix(u.CreatedAt, 0).UTC().Format(time.RFC3339))
			}

			return w.Flush()
		},
	}
}
