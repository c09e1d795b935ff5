package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/authority"
	"github.com/imedia765/memberhub/internal/db/bunx"
	hubmiddleware "github.com/imedia765/memberhub/internal/middleware"
	"github.com/imedia765/memberhub/internal/nav"
	"github.com/imedia765/memberhub/internal/notify"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/imedia765/memberhub/internal/secure"
	"github.com/imedia765/memberhub/internal/server"
	"github.com/imedia765/memberhub/internal/services/member"
	"github.com/imedia765/memberhub/internal/services/payment"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MemberHub API server",
	Long:  `Starts the HTTP server with the dashboard API endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		memberRepo := repository.NewBunMemberRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)
		paymentRepo := repository.NewBunPaymentRepository(db)
		auditRepo := repository.NewBunAuditRepository(db)
		revokedJTIRepo := repository.NewBunRevokedJTIRepository(db)

		enforcer, err := auth.InitEnforcer(db)
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}

		// Role resolution listens for session changes published by the
		// member service so sign-in and sign-out re-resolve immediately.
		broker := auth.NewBroker()

		roleAuthority := authority.NewCasbinAuthority(enforcer, memberRepo)
		resolver, err := roles.NewResolver(roleAuthority, roles.DefaultMemoSize)
		if err != nil {
			return fmt.Errorf("create role resolver: %w", err)
		}

		changes, unsubscribe := broker.Subscribe()
		defer unsubscribe()
		watchCtx, cancelWatch := context.WithCancel(cmd.Context())
		defer cancelWatch()
		go resolver.Watch(watchCtx, changes)

		registry, err := nav.LoadRegistry(cfg.DestinationsPath)
		if err != nil {
			return fmt.Errorf("load destination registry: %w", err)
		}
		log.Printf("Loaded %d navigation destinations", len(registry.All()))

		// Initialize services
		memberService := member.NewService(memberRepo, sessionRepo, broker, cfg.SessionDuration).
			WithGrantSource(roleAuthority)
		paymentService := payment.NewService(paymentRepo)

		credentials := authority.NewCredentialAuthority(memberRepo, auditRepo)
		notifier := notify.NewLogNotifier()

		// A successful password change signs the member out everywhere;
		// they re-authenticate with the new credential.
		passwordExec, err := secure.NewPasswordExecutor(credentials, notifier, func(ctx context.Context, principalID string) {
			if err := memberService.RevokeAllSessions(ctx, principalID); err != nil {
				log.Printf("WARNING: failed to revoke sessions for %s: %v", principalID, err)
			}
		})
		if err != nil {
			return fmt.Errorf("create password executor: %w", err)
		}

		authnDeps := hubmiddleware.AuthnDependencies{
			Members:            memberRepo,
			Sessions:           sessionRepo,
			RevokedJTIs:        revokedJTIRepo,
			TokenSigningSecret: cfg.TokenSigningSecret,
			TokenIssuer:        cfg.TokenIssuer,
		}

		// Assemble the shared router wrapped with h2c for HTTP/2 cleartext.
		routerOpts := server.RouterOptions{
			Cfg:         cfg,
			Members:     memberService,
			Payments:    paymentService,
			Resolver:    resolver,
			Registry:    registry,
			Password:    passwordExec,
			Audit:       credentials,
			RevokedJTIs: revokedJTIRepo,
			AuthnDeps:   authnDeps,
		}
		handler := server.NewH2CHandler(routerOpts)

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			log.Printf("Server URL: %s", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			// Graceful shutdown with timeout
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
