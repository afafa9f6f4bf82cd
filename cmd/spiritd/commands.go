package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/api"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/auth"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/config"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/database"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/metrics"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/prayertimes"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/worker"
)

const (
	// startupTimeout bounds connecting and migrating before serving.
	startupTimeout = 2 * time.Minute

	// scheduleJanitorInterval is how often past days leave the prayer time cache.
	scheduleJanitorInterval = time.Hour
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the scoring api",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	a, err := loadApp(startCtx, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.RequireAuth(); err != nil {
		return err
	}

	appMetrics := metrics.New()
	a.schedule.WithMetrics(appMetrics)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	compute := a.computeUseCase().WithMetrics(appMetrics)

	var milestones *worker.MilestoneWorker
	if a.cfg.Webhook.URL != "" {
		wcfg := worker.DefaultMilestoneWorkerConfig()
		wcfg.TargetURL = a.cfg.Webhook.URL
		wcfg.Secret = a.cfg.Webhook.Secret
		milestones = worker.NewMilestoneWorker(wcfg, a.logger).WithMetrics(appMetrics)
		milestones.Start(workerCtx)
		compute = compute.WithNotifier(milestones)
	} else {
		a.logger.Info("milestone webhook disabled: no MILESTONE_WEBHOOK_URL configured")
	}

	go runScheduleJanitor(workerCtx, a.schedule, a.logger)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = ":" + a.cfg.Server.Port
	server := api.NewServer(serverConfig, a.logger)

	api.RegisterRoutes(server.Echo(), api.RouterConfig{
		ComputeScoresUseCase: compute,
		QueryScoresUseCase:   a.queryUseCase(),
		ResetMomentumUseCase: a.resetMomentumUseCase(),
		ManageGoalsUseCase:   a.goalsUseCase(),
		JWTValidator:         auth.NewJWTValidator(a.cfg.Auth.JWTSecret),
		ReadinessChecks:      a.readinessChecks(),
		Logger:               a.logger,
		Metrics:              appMetrics,
		ComputeRate:          a.cfg.Server.ComputeRate,
		ComputeBurst:         a.cfg.Server.ComputeBurst,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("http server error", "error", err.Error())
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	// stop accepting cycles first so no crossing is queued after the drain
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err.Error())
	}
	if milestones != nil {
		milestones.Stop()
	}
	workerCancel()

	a.logger.Info("shutdown complete")
	return nil
}

// runScheduleJanitor prunes the prayer time cache until ctx is cancelled.
func runScheduleJanitor(ctx context.Context, client *prayertimes.Client, logger *logging.Logger) {
	ticker := time.NewTicker(scheduleJanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			if removed := client.PruneCache(tick); removed > 0 {
				logger.Debug("schedule cache pruned", "removed", removed)
			}
		}
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			a, err := loadApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Storage == config.StorageMemory {
				return errMemoryStorage
			}

			applied, err := database.NewMigrator(a.conn, a.logger).GetAppliedMigrations(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema %s at %d migrations\n", a.conn.Schema(), len(applied))
			return nil
		},
	}
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var (
		userID   string
		location domain.Location
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Run one scoring cycle for a user and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.computeUseCase().Execute(cmd.Context(), application.ComputeScoresInput{
				UserID:   userID,
				Location: location,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, scoreSummary(out))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().Float64Var(&location.Latitude, "lat", 0, "latitude for prayer times")
	cmd.Flags().Float64Var(&location.Longitude, "lng", 0, "longitude for prayer times")
	cmd.Flags().IntVar(&location.Method, "method", 0, "prayer time calculation method (0 uses PRAYER_TIMES_METHOD)")
	cmd.Flags().StringVar(&location.TimeZone, "tz", "", "IANA time zone of the user")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newResetMomentumCmd(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reset-momentum",
		Short: "Discard a user's momentum history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.resetMomentumUseCase().Execute(cmd.Context(), userID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "momentum reset for %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type scoreOutput struct {
	UserID         string                `json:"user_id"`
	Final          domain.CategoryScores `json:"final"`
	Fresh          domain.CategoryScores `json:"fresh"`
	Overall        int                   `json:"overall"`
	Status         string                `json:"status"`
	Fallbacks      []domain.Fallback     `json:"fallbacks"`
	Phase          string                `json:"phase"`
	Multiplier     float64               `json:"multiplier"`
	DueObligations int                   `json:"due_obligations"`
	Persisted      bool                  `json:"persisted"`
	ComputedAt     time.Time             `json:"computed_at"`
}

func scoreSummary(out *application.ComputeScoresOutput) scoreOutput {
	return scoreOutput{
		UserID:         out.Record.UserID.String(),
		Final:          out.Record.Final,
		Fresh:          out.Record.Fresh,
		Overall:        out.Record.Overall.Int(),
		Status:         string(out.Record.Status),
		Fallbacks:      append([]domain.Fallback{}, out.Record.Fallbacks...),
		Phase:          string(out.Phase),
		Multiplier:     out.Multiplier,
		DueObligations: out.DueObligations,
		Persisted:      out.Persisted,
		ComputedAt:     out.Record.ComputedAt,
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
