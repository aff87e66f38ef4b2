package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskmate/internal/api"
	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/model"
	"taskmate/internal/repository"
	"taskmate/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for the web client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.HTTPAddr = addr
			}
			if err := cfg.RequireJWT(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides TASKMATE_HTTP_ADDR)")

	return cmd
}

func runServe(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer backend.Close()

	client := store.NewClient(backend.Tasks, auth.ContextSource{})
	server := api.New(client, auth.NewVerifier(cfg.JWTSecret), cfg.Location)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.HTTPAddr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue an API access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.RequireJWT(); err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			email, _ := cmd.Flags().GetString("email")

			token, err := auth.NewVerifier(cfg.JWTSecret).Issue(&model.User{ID: args[0], Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().String("email", "", "Email claim")

	return cmd
}
