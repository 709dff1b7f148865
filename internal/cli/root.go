// Package cli provides the jobhunter command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/app"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/ingest"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/internal/providers"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/store"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// JobService is the query surface the search, match and state commands use.
type JobService interface {
	Search(ctx context.Context, p jobsearch.SearchParams) (*jobsearch.SearchResult, error)
	Match(ctx context.Context, p jobsearch.MatchParams) (*jobsearch.MatchResponse, error)
	ListUserJobs(ctx context.Context, userID, state string, limit int) ([]*models.UserJob, error)
	Pipeline(ctx context.Context, userID string) (ledger.Pipeline, error)
}

type Ingester interface {
	RunOnce(ctx context.Context, provider string) ([]ingest.Result, error)
	Start(ctx context.Context) error
	Stop()
}

type ProviderAdmin interface {
	Statuses() []source.Status
	ListProviderSyncs(ctx context.Context) ([]*models.ProviderSync, error)
	ReleaseProvider(ctx context.Context, provider string) error
}

type JobAdmin interface {
	DeactivateJob(ctx context.Context, id uuid.UUID, reason string) error
}

type EventStream interface {
	Stream(ctx context.Context, channel string) (<-chan []byte, error)
}

// Backend is what the commands run against.
type Backend struct {
	Jobs      JobService
	Ingest    Ingester
	Providers ProviderAdmin
	Admin     JobAdmin
	Events    EventStream
	Close     func()
}

// Connector opens a Backend for a loaded configuration.
type Connector func(ctx context.Context, cfg *config.Config) (*Backend, error)

// Connect builds the full application stack.
func Connect(ctx context.Context, cfg *config.Config) (*Backend, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Jobs:      a.Service,
		Ingest:    a.Scheduler,
		Providers: providerAdmin{reg: a.Registry, st: a.Store},
		Admin:     a.Store,
		Events:    a.Cache,
		Close:     a.Close,
	}, nil
}

type providerAdmin struct {
	reg *providers.Registry
	st  *store.PostgresStore
}

func (p providerAdmin) Statuses() []source.Status { return p.reg.Statuses() }

func (p providerAdmin) ListProviderSyncs(ctx context.Context) ([]*models.ProviderSync, error) {
	return p.st.ListProviderSyncs(ctx)
}

func (p providerAdmin) ReleaseProvider(ctx context.Context, provider string) error {
	return p.st.ReleaseProvider(ctx, provider)
}

// runtime carries global flags and the connected backend across commands.
type runtime struct {
	configPath string
	debug      bool
	noColor    bool

	connect  Connector
	ui       *UI
	cfg      *config.Config
	backend  *Backend
	closeLog func() error
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobhunter",
		Short: "Aggregate, search and rank job postings",
		Long: `jobhunter pulls postings from job boards and company career pages into one
deduplicated catalogue, ranks them against a candidate profile and tracks
each user's application pipeline.

Exit codes: 0 ok, 2 configuration error, 3 provider authentication failure,
4 rate limited with no cached fallback, 1 anything else.`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: rt.setup,
		PersistentPostRun: func(*cobra.Command, []string) { rt.teardown() },
	}

	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "config file (default $JOBHUNTER_CONFIG)")
	root.PersistentFlags().BoolVarP(&rt.debug, "debug", "d", false, "debug logging")
	root.PersistentFlags().BoolVar(&rt.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newIngestCmd(rt),
		newSearchCmd(rt),
		newMatchCmd(rt),
		newStateCmd(rt),
		newProvidersCmd(rt),
		newJobsCmd(rt),
		newEventsCmd(rt),
	)
	return root
}

func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	mode := ColorAuto
	if rt.noColor {
		mode = ColorNever
	}
	rt.ui = NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	// Help and shell completion never touch the store.
	if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
		return nil
	}

	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	if rt.debug {
		cfg.Log.Level = "debug"
	}
	rt.cfg = cfg

	logger, closeLog := config.SetupCLILogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	rt.closeLog = closeLog

	backend, err := rt.connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	rt.backend = backend
	return nil
}

func (rt *runtime) teardown() {
	if rt.backend != nil && rt.backend.Close != nil {
		rt.backend.Close()
		rt.backend = nil
	}
	if rt.closeLog != nil {
		if err := rt.closeLog(); err != nil {
			rt.ui.Warnf("Warning: failed to close log file: %v", err)
		}
		rt.closeLog = nil
	}
}

// Execute runs the CLI with the process arguments and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], Connect, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, connect Connector, out, errOut io.Writer) int {
	rt := &runtime{connect: connect, ui: NewUI(out, errOut, ColorAuto)}
	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	// PersistentPostRun is skipped when RunE fails.
	rt.teardown()
	if err != nil {
		rt.ui.Errorf("Error: %v", err)
	}
	return apperr.ExitCode(err)
}

// parseJobIDs turns --job flags into ids; a malformed id is an unknown job.
func parseJobIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a job id", apperr.ErrUnknownJob, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
