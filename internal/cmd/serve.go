package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jaminalder/cube-tic-tac-toe/internal/app"
	"github.com/jaminalder/cube-tic-tac-toe/internal/config"
	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
	"github.com/jaminalder/cube-tic-tac-toe/internal/web"
)

func Serve() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser game over HTTP",
		Long: heredoc.Doc(`
			Serve the browser game over HTTP.

			Every visitor gets a game session against the computer. Board
			updates are pushed to all open pages of a session over
			server-sent events. Idle sessions are removed after the
			configured session_ttl.
		`),
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			defaults, err := settingsFrom(cfg.Defaults)
			if err != nil {
				return err
			}

			svc := app.NewService(app.WithComputerDelay(cfg.ComputerDelay))
			handler := web.NewServer(svc, web.WithSizes(cfg.Sizes...), web.WithDefaults(defaults))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go prune(ctx, svc, cfg.SessionTTL)

			return listen(ctx, &http.Server{Addr: cfg.Addr, Handler: handler})
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides the config file)")
	return cmd
}

// settingsFrom converts the configured defaults into game settings.
func settingsFrom(d config.Defaults) (app.Settings, error) {
	shape, err := domain.ParseShape(d.Shape)
	if err != nil {
		return app.Settings{}, err
	}
	kind, err := selector.ParseKind(d.Difficulty)
	if err != nil {
		return app.Settings{}, err
	}
	return app.Settings{Size: d.Size, Shape: shape, Difficulty: kind}, nil
}

// prune drops idle sessions every ttl/2 until ctx ends.
func prune(ctx context.Context, svc *app.Service, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.Prune(ttl); n > 0 {
				logrus.WithField("sessions", n).Info("pruned idle sessions")
			}
		}
	}
}

// listen serves until ctx ends, then shuts the server down gracefully.
func listen(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		logrus.WithField("addr", srv.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
