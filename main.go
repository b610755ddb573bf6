package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Anvil/Config"
	"Anvil/Controllers"
	"Anvil/CronJobs"
	"Anvil/FiberConfig"
	"Anvil/Logging"
	"Anvil/Models"
	"Anvil/Sheets"
	"Anvil/Slack"
	"Anvil/Tasks"
	"Anvil/middleware"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "anvil",
		Short:         "Maintenance and repair task reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the task API and run the digest scheduler",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "digest",
			Short: "Build and post the progress digest once",
			RunE:  runDigest,
		},
		tokenCommand(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything built from the configuration.
type app struct {
	cfg      Config.Config
	logger   *zap.Logger
	pipeline *Tasks.Pipeline
	store    *Tasks.SessionStore
	audit    *Models.SubmissionStore
	notifier *Slack.Notifier
}

func setup() (*app, error) {
	cfg, err := Config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger, err := Logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	db, err := Models.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	audit := Models.NewSubmissionStore(db)

	names := Tasks.SheetNames{Maintenance: cfg.MaintenanceSheet, Repair: cfg.RepairSheet}
	client := Sheets.NewClient(cfg.QueryURL, cfg.SheetID, nil, logger.Named("sheets"))
	writer := Sheets.NewWriter(cfg.WriteURL, cfg.SheetID, nil, logger.Named("sheets"))
	uploader := Sheets.NewUploader(cfg.UploadURL, cfg.UploadFolderID, nil, logger.Named("upload"))
	uploader.MaxImageDimension = cfg.MaxImageDimension

	pipeline := Tasks.NewPipeline(client, names.All(), cfg.PageSize, logger.Named("pipeline"))
	submitter := Tasks.NewSubmitter(writer, uploader, names, logger.Named("submit"))

	a := &app{cfg: cfg, logger: logger, pipeline: pipeline, audit: audit}
	if cfg.SlackEnabled() {
		a.notifier = Slack.NewNotifier(cfg.SlackBotToken, cfg.SlackChannelID, logger.Named("slack"))
	}

	opts := Tasks.SessionOptions{
		Pipeline:  pipeline,
		Submitter: submitter,
		Audit:     audit,
		Logger:    logger.Named("session"),
		Timeout:   timeout,
	}
	if a.notifier != nil {
		opts.Notifier = a.notifier
	}
	a.store = Tasks.NewSessionStore(func(caller Models.RoleContext, anchor string) *Tasks.Session {
		return Tasks.NewSession(caller, anchor, opts)
	})
	return a, nil
}

func (a *app) digestJob() *CronJobs.DigestJob {
	timeout, _ := a.cfg.Timeout()
	var poster CronJobs.DigestPoster
	if a.notifier != nil {
		poster = a.notifier
	}
	return CronJobs.NewDigestJob(a.pipeline, poster, a.cfg.DigestSchedule, 2*timeout, a.logger.Named("digest"))
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	var job *CronJobs.DigestJob
	if a.notifier != nil {
		job = a.digestJob()
		if err := job.Start(); err != nil {
			return err
		}
	} else {
		a.logger.Info("Slack not configured, digest disabled")
	}

	server, errc := FiberConfig.FiberConfig(a.cfg.ListenAddr, FiberConfig.Dependencies{
		Tasks:     Controllers.NewTaskController(a.store, a.audit, a.logger.Named("http")),
		JWTSecret: a.cfg.JWTSecret,
		Logger:    a.logger,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

serve:
	for {
		select {
		case err = <-errc:
			a.logger.Error("Server stopped", zap.Error(err))
			break serve
		case sig := <-quit:
			a.logger.Info("Shutting down", zap.String("signal", sig.String()))
			err = server.Shutdown()
			break serve
		case <-reload:
			reloadSchedule(a.logger, job)
		}
	}

	a.store.CloseAll()
	if job != nil {
		job.Stop()
	}
	return err
}

// reloadSchedule re-reads the configuration and moves the digest to the new schedule.
func reloadSchedule(logger *zap.Logger, job *CronJobs.DigestJob) {
	if job == nil {
		return
	}
	cfg, err := Config.Load(envFile)
	if err != nil {
		logger.Error("Config reload failed", zap.Error(err))
		return
	}
	previous := job.Schedule()
	if err := job.UpdateSchedule(cfg.DigestSchedule); err != nil {
		logger.Error("Digest reschedule failed", zap.Error(err))
		return
	}
	logger.Info("Config reloaded",
		zap.String("previous_schedule", previous),
		zap.String("schedule", job.Schedule()))
}

func runDigest(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	digest, err := a.digestJob().RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), digest.Message())
	return nil
}

func tokenCommand() *cobra.Command {
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Issue a signed API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Config.Load(envFile)
			if err != nil {
				return err
			}
			caller := Models.RoleContext{Role: Models.ParseRole(role), Username: args[0]}
			if !caller.Role.Known() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := middleware.IssueToken(cfg.JWTSecret, caller, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(Models.RoleUser), "admin or user")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
