package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adgate/adgate/internal/api"
	"github.com/adgate/adgate/internal/audit"
	"github.com/adgate/adgate/internal/authz"
	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/delegation"
	"github.com/adgate/adgate/internal/identity"
	"github.com/adgate/adgate/internal/platform"
	"github.com/adgate/adgate/internal/store"
	"github.com/adgate/adgate/internal/store/sqlite"
	"github.com/adgate/adgate/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AdGate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		auditor, err := audit.Build(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("closing auditor")
			}
		}()

		log.Info().Msg("Initializing identity verifiers...")
		idRegistry, err := identity.BuildRegistry(cmd.Context(), cfg.Identity)
		if err != nil {
			return fmt.Errorf("building identity registry: %w", err)
		}

		log.Info().Msg("Initializing platform gateways...")
		platforms, err := platform.BuildRegistry(cfg.Platforms, cfg.Server.ProviderTimeout)
		if err != nil {
			return fmt.Errorf("building platform registry: %w", err)
		}

		var (
			creds      core.CredentialStore
			principals core.PrincipalStore
			links      core.DelegationStore
			perms      core.PermissionStore
		)
		switch cfg.Storage.Type {
		case "sqlite":
			log.Info().Str("path", cfg.Storage.Path).Msg("Opening SQLite storage...")
			db, err := sqlite.NewDB(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn().Err(err).Msg("closing database")
				}
			}()
			if err := sqlite.RunMigrations(db.Writer); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			creds = sqlite.NewCredentialRepo(db)
			principals = sqlite.NewPrincipalRepo(db)
			links = sqlite.NewDelegationRepo(db)
			perms = sqlite.NewPermissionRepo(db)
		default:
			log.Info().Msg("Using in-memory storage (state is lost on restart)")
			creds = store.NewInMemoryCredentialStore()
			principals = store.NewInMemoryPrincipalStore()
			links = store.NewInMemoryDelegationStore()
			perms = store.NewInMemoryPermissionStore()
		}

		tokens := token.NewManager(creds, principals, platforms, auditor,
			token.WithProviderTimeout(cfg.Server.ProviderTimeout))
		delegations := delegation.NewResolver(links, principals, tokens, platforms, auditor)
		authorizer := authz.NewAuthorizer(perms, auditor)
		permSvc := authz.NewService(perms, auditor)

		srv := api.NewServer(tokens, delegations, authorizer, permSvc,
			idRegistry, platforms, principals, creds, auditor)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes([]byte(cfg.Server.AdminSigningKey)),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
}
