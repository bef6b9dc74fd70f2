package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"derbent-workflow/backend/internal/config"
	"derbent-workflow/backend/internal/logging"
	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/seed"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/pkg/models"
)

const (
	defaultDomain = "localhost"
	seedUser      = "seed-script"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, Error.Sprint(err))
		}
		os.Exit(1)
	}
}

// env is what every subcommand needs once config is loaded.
type env struct {
	store     *repository.Store
	statuses  *services.StatusService
	access    *services.AccessService
	workflows *services.WorkflowService
	logger    *logging.Logger
	release   func()
}

type options struct {
	configPath string
	domain     string
	tenantName string
	file       string
	sample     bool
	lockPath   string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Load statuses, roles, workflows and item types into a tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&opts.domain, "domain", "", "Tenant domain (defaults to the seed file's tenant, then localhost)")
	cmd.Flags().StringVar(&opts.tenantName, "tenant-name", "", "Name for a tenant created by this run")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Seed document (YAML)")
	cmd.Flags().BoolVar(&opts.sample, "sample", false, "Apply the built-in sample statuses, roles and workflows")
	cmd.Flags().StringVar(&opts.lockPath, "lock", filepath.Join(os.TempDir(), "derbent-seed.lock"), "Lock file guarding concurrent seed runs")

	cmd.AddCommand(newShowCommand(opts))
	return cmd
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	if err != nil {
		return nil, err
	}
	store, release, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &env{
		store:     store,
		statuses:  services.NewStatusService(store, logger),
		access:    services.NewAccessService(store, logger),
		workflows: services.NewWorkflowService(store, logger),
		logger:    logger,
		release:   release,
	}, nil
}

func runApply(cmd *cobra.Command, opts *options) error {
	var docs []*seed.Document
	if opts.file != "" {
		doc, err := seed.LoadFile(opts.file)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if opts.sample {
		docs = append(docs, seed.Sample())
	}
	if len(docs) == 0 {
		return errors.New("nothing to seed: pass --file or --sample")
	}

	lock := flock.New(opts.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another seed run holds %s", opts.lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer e.release()

	out := cmd.OutOrStdout()
	seeder := seed.NewSeeder(e.statuses, e.access, e.workflows, e.logger)
	for _, doc := range docs {
		domain := firstNonEmpty(opts.domain, doc.Tenant.Domain, defaultDomain)
		tenant, err := seed.EnsureTenant(ctx, e.store, firstNonEmpty(opts.tenantName, doc.Tenant.Name), domain)
		if err != nil {
			return err
		}
		actor := models.Actor{TenantID: tenant.ID, UserID: seedUser}
		res, err := seeder.Apply(ctx, actor, doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summary(tenant, res))
	}
	fmt.Fprintln(out, Success.Sprint("Seeding complete"))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
