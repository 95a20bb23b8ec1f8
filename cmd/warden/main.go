package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden"
	"github.com/minus-twelve/warden/api"
	"github.com/minus-twelve/warden/internal/logutil"
	"github.com/minus-twelve/warden/password"
	"github.com/minus-twelve/warden/personal"
	"github.com/minus-twelve/warden/userdb"
	"github.com/minus-twelve/warden/userservice"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configFile string
	cfg        warden.Config
	logger     logr.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &options{}

	cmd := &cobra.Command{
		Use:          "warden",
		Short:        "Session and basic authentication for a JSON API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := warden.LoadConfig(opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logutil.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			cmd.SetContext(logr.NewContext(ctx, opts.logger))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a yaml configuration file.")

	cmd.AddCommand(
		serveCommand(opts),
		serveUsersCommand(opts),
		addUserCommand(opts),
		hashPasswordCommand(),
		configCommand(opts),
		logUsersCommand(opts),
	)

	if err := cmd.ExecuteContext(ctx); err != nil {
		logutil.New("info", "text", os.Stderr).Error(err, "command failed")
		os.Exit(1)
	}
}

func serveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the authenticated API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger

			users, err := userdb.Open(ctx, opts.cfg.UserDBPath, logger)
			if err != nil {
				return err
			}
			defer users.Close()

			auth, closeAuth, err := warden.CreateAuthenticator(ctx, opts.cfg, users, logger)
			if err != nil {
				return err
			}
			defer closeAuth()

			limiter := warden.NewRateLimiter(nil)
			go limiter.Run(ctx)

			gin.SetMode(gin.ReleaseMode)
			srv := api.NewServer(auth, users, opts.cfg.RateLimit, limiter, logger)
			return serveHTTP(ctx, opts.cfg.HTTP.Addr(), srv.Router(), logger)
		},
	}
}

func serveUsersCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-users",
		Short: "Serve the user registration and password reset service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := userdb.Open(ctx, opts.cfg.UserDBPath, opts.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			gin.SetMode(gin.ReleaseMode)
			router := userservice.NewRouter(userservice.NewAuth(db, opts.logger))
			return serveHTTP(ctx, addr, router, opts.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:5000", "Address to listen on.")
	return cmd
}

func addUserCommand(opts *options) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Create a user in the user database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := userdb.Open(ctx, opts.cfg.UserDBPath, opts.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			hashed, err := password.Hash(pw)
			if err != nil {
				return err
			}
			user, err := db.AddUser(ctx, email, hashed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email of the new user.")
	cmd.Flags().StringVar(&pw, "password", "", "Password of the new user.")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}

func configCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func logUsersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "log-users",
		Short: "Log the personal data table with PII redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbCfg, err := personal.ConfigFromEnv()
			if err != nil {
				return err
			}
			db, err := personal.Open(ctx, dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := personal.LogUsers(ctx, db, opts.logger)
			if err != nil {
				return err
			}
			opts.logger.V(1).Info("logged users", "count", n)
			return nil
		},
	}
}

// serveHTTP runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger logr.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
