package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"superid/internal/config"
	"superid/internal/handler"
	"superid/internal/logging"
	"superid/internal/middleware"
	"superid/internal/repository"
	"superid/internal/service"
	"superid/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Server.Env)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		return fmt.Errorf("failed to connect to CouchDB: %w", err)
	}
	defer client.Close()

	created, err := repository.EnsureDatabase(ctx, client, cfg.Database.Name)
	if err != nil {
		return err
	}
	if created {
		logger.Info(ctx, "created database", "name", cfg.Database.Name)
	}

	accountRepo := repository.NewAccountRepository(client, cfg.Database.Name)
	credentialRepo := repository.NewCredentialRepository(client, cfg.Database.Name)
	loginTokenRepo := repository.NewLoginTokenRepository(client, cfg.Database.Name)
	partnerRepo := repository.NewPartnerRepository(client, cfg.Database.Name)

	if err := service.SeedPartners(ctx, partnerRepo, cfg.Partners, logger); err != nil {
		return err
	}

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		logger,
	)
	go wsManager.Run(ctx)

	authService := service.NewAuthService(accountRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, logger)
	accountService := service.NewAccountService(accountRepo, credentialRepo, wsManager, logger)
	credentialService := service.NewCredentialService(credentialRepo, wsManager, logger)
	loginTokenService := service.NewLoginTokenService(loginTokenRepo, partnerRepo, wsManager, cfg.LoginToken, logger)

	go loginTokenService.RunSweeper(ctx, cfg.LoginToken.SweepInterval)

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, loginTokenService))

	authHandler := handler.NewAuthHandler(authService)
	accountHandler := handler.NewAccountHandler(accountService)
	credentialHandler := handler.NewCredentialHandler(credentialService)
	loginHandler := handler.NewLoginHandler(loginTokenService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, logger)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	// Partner pages call these directly.
	r.HandleFunc("/performAuth", loginHandler.PerformAuth).Methods("POST", "OPTIONS")
	r.HandleFunc("/getLoginStatus", loginHandler.GetLoginStatus).Methods("POST", "OPTIONS")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", accountHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", accountHandler.UpdateMe).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/account/master-password", accountHandler.ChangeMasterPassword).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/credentials", credentialHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/credentials", credentialHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/credentials", credentialHandler.Purge).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/credentials/{id}", credentialHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/credentials/{id}", credentialHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/login-tokens/bind", loginHandler.Bind).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting superid server", "addr", addr, "env", cfg.Server.Env,
			"couchdb", fmt.Sprintf("%s:%s", cfg.Database.Host, cfg.Database.Port),
			"partners", len(cfg.Partners))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info(context.Background(), "server stopped gracefully")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"superid"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"SuperID API","version":"1.0.0","endpoints":{"/performAuth":"POST","/getLoginStatus":"POST","/api/v1/auth/register":"POST","/api/v1/auth/login":"POST","/api/v1/credentials":"GET (protected)","/api/v1/login-tokens/bind":"POST (protected)"}}`))
}
