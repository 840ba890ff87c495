package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/posterctl/internal/repositories"
	"github.com/desertthunder/posterctl/internal/services"
	"github.com/desertthunder/posterctl/internal/session"
	"github.com/desertthunder/posterctl/internal/shared"
	"github.com/desertthunder/posterctl/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        services.JobAPI
	prompts    services.PromptAPI
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	clock      shared.Clock
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        services.JobAPI
	Prompts    services.PromptAPI
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Clock      shared.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = shared.RealClock()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		prompts:    opts.Prompts,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		clock:      opts.Clock,
	}
}

// SetLogger replaces the logger used by the runner and the services it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		createCommand, jobsCommand, promptsCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the config file named by --config, applies environment overrides, and sets the log level.
//
// A missing config file is not an error; the embedded defaults are used instead.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	if err := r.config.ApplyEnv(os.LookupEnv); err != nil {
		return ctx, err
	}

	level := shared.ParseLogLevel(r.config.LogLevel)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// client returns the API client, building it from the config on first use.
func (r *Runner) client() services.JobAPI {
	if r.api == nil {
		r.api = services.NewJobService(services.OptionsFromConfig(r.config.API, r.logger))
	}
	return r.api
}

// promptClient returns the prompt API, sharing the job client when it also serves prompts.
func (r *Runner) promptClient() services.PromptAPI {
	if r.prompts == nil {
		if p, ok := r.client().(services.PromptAPI); ok {
			r.prompts = p
		} else {
			r.prompts = services.NewJobService(services.OptionsFromConfig(r.config.API, r.logger))
		}
	}
	return r.prompts
}

// repository opens the history database on first use.
func (r *Runner) repository() (*repositories.JobRepository, error) {
	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		r.db = db
	}
	return repositories.NewJobRepository(r.db), nil
}

// close releases the history database, if it was opened.
func (r *Runner) close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// newEngine builds a poster engine for the given tracking mode.
//
// History recording is best effort: if the database cannot be opened the run proceeds without it.
func (r *Runner) newEngine(mode string, record bool) (*tasks.PosterEngine, error) {
	strategy, err := tasks.ParseStrategy(mode)
	if err != nil {
		return nil, err
	}

	opts := tasks.EngineOptionsFromConfig(r.config.Tracking)
	if mode != "" {
		opts.Strategy = strategy
	}
	opts.Clock = r.clock
	opts.Logger = r.logger

	if record {
		if repo, err := r.repository(); err != nil {
			r.logger.Warn("job history disabled", "error", err)
		} else {
			opts.Recorder = repositories.NewJobRecorderAdapter(repo)
		}
	}

	return tasks.NewPosterEngine(r.client(), session.NewStore(r.clock), opts), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// describeError prints the API hint for err, if there is one.
func (r *Runner) describeError(err error) {
	var apiErr *services.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	if hint := apiErr.Hint(); hint != "" {
		r.writePlain("Hint: %s\n", hint)
	}
}
