// Package main implements the ironshield command: it fetches IronShield
// proof-of-work challenges, solves them and exchanges solutions for tokens.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bardlex/ironshield/internal/api"
	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/config"
	"github.com/bardlex/ironshield/internal/database"
	"github.com/bardlex/ironshield/internal/database/influx"
	"github.com/bardlex/ironshield/internal/database/postgres"
	"github.com/bardlex/ironshield/internal/database/redis"
	"github.com/bardlex/ironshield/internal/messaging"
	"github.com/bardlex/ironshield/internal/pow"
	"github.com/bardlex/ironshield/internal/service"
	"github.com/bardlex/ironshield/internal/solve"
	"github.com/bardlex/ironshield/pkg/circuit"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
)

const usage = `usage: ironshield <command> [flags]

commands:
  fetch     -endpoint URL                 request a challenge and print it
  solve     -endpoint URL [solve flags]   request and solve a challenge
  validate  -endpoint URL [solve flags]   obtain an access token for an endpoint
  history   [-website ID] [-limit N]      list recorded solves (needs POSTGRES_URL)
  events    [-group ID]                   tail solve events (needs KAFKA_BROKERS)
  health                                  check the configured backends

solve flags:
  -threads N         worker count (default: 80% of available CPUs)
  -single-threaded   scan the nonce space with a single worker
  -verbose           debug logging
`

// errUsage marks command line mistakes; they exit with status 2
var errUsage = errors.Sentinel("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit status
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	cmd, err := parseCommand(args, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}

	logger := log.NewWithWriter(stderr, cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	a, err := newApp(cfg, logger, stdout)
	if err != nil {
		logger.WithError(err).Error("failed to initialise")
		return 1
	}
	defer a.close()

	if err := a.run(ctx, cmd); err != nil {
		logger.WithError(err).Error("command failed", "command", cmd.name)
		fmt.Fprintf(stderr, "ironshield %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

// command is a parsed command line
type command struct {
	name    string
	website string
	limit   int
	group   string
}

// parseCommand parses args and applies flag overrides to cfg
func parseCommand(args []string, cfg *config.Config) (*command, error) {
	if len(args) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "parse_args", "no command given").WithKind(errUsage)
	}

	cmd := &command{name: args[0], limit: 20, group: "ironshield-cli"}
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		endpoint string
		threads  int
		single   bool
		verbose  bool
	)
	switch cmd.name {
	case "fetch":
		fs.StringVar(&endpoint, "endpoint", cfg.Endpoint, "protected endpoint URL")
		fs.BoolVar(&verbose, "verbose", false, "debug logging")
	case "solve", "validate":
		fs.StringVar(&endpoint, "endpoint", cfg.Endpoint, "protected endpoint URL")
		fs.IntVar(&threads, "threads", 0, "worker count")
		fs.BoolVar(&single, "single-threaded", false, "use a single worker")
		fs.BoolVar(&verbose, "verbose", false, "debug logging")
	case "history":
		fs.StringVar(&cmd.website, "website", "", "only solves for this website id")
		fs.IntVar(&cmd.limit, "limit", cmd.limit, "maximum rows")
	case "events":
		fs.StringVar(&cmd.group, "group", cmd.group, "Kafka consumer group")
	case "health":
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "parse_args", "unknown command").
			WithKind(errUsage).
			WithContext("command", cmd.name)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_args", "invalid flags").WithKind(errUsage)
	}
	if fs.NArg() > 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "parse_args", "unexpected arguments").
			WithKind(errUsage).
			WithContext("args", fs.Args())
	}

	switch cmd.name {
	case "fetch", "solve", "validate":
		if err := config.ValidateEndpoint(endpoint); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_args", "invalid endpoint").WithKind(errUsage)
		}
		cfg.Endpoint = endpoint
	}
	if threads < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "parse_args", "threads cannot be negative").WithKind(errUsage)
	}
	if threads > 0 {
		cfg.NumThreads = threads
	}
	if single {
		cfg.SingleThreaded = true
	}
	if verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}
	if cmd.limit <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "parse_args", "limit must be positive").WithKind(errUsage)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_args", "invalid configuration").WithKind(errUsage)
	}
	return cmd, nil
}

// historyStore is the read side of the solve history
type historyStore interface {
	RecentSolves(ctx context.Context, websiteID string, limit int) ([]*postgres.Solve, error)
	SolveStats(ctx context.Context, websiteID string) (*postgres.SolveStats, error)
	WindowHashrate(ctx context.Context, websiteID string) (float64, bool)
	HashrateHistory(ctx context.Context, websiteID string, duration time.Duration) ([]influx.HashratePoint, error)
}

// trendPeriod is how far back history looks for a single website's hash rate
const trendPeriod = 24 * time.Hour

// app holds the wired components for one invocation
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *database.Manager
	solves  historyStore
	kafka   *messaging.KafkaClient
	client  *api.Client
	service *service.Service
	out     io.Writer
}

func newApp(cfg *config.Config, logger *log.Logger, out io.Writer) (*app, error) {
	store, err := database.NewManager(databaseConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store, solves: store, out: out}

	opts := []service.Option{service.WithStore(store)}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = messaging.NewKafkaClient(cfg.KafkaBrokers, logger)
		opts = append(opts, service.WithPublisher(a.kafka))
	}

	a.client = api.NewClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
	}, logger)

	solver := pow.NewSolver(pow.Config{BatchSize: cfg.BatchSize})
	orchestrator := solve.NewOrchestrator(solver, pow.NewVerifier(), logger)

	a.service = service.New(a.client, orchestrator, logger, opts...)
	return a, nil
}

// databaseConfig enables each backend whose URL is set
func databaseConfig(cfg *config.Config) *database.Config {
	dbCfg := &database.Config{}
	if cfg.PostgresURL != "" {
		dbCfg.Postgres = postgres.DefaultConfig(cfg.PostgresURL)
	}
	if cfg.RedisURL != "" {
		dbCfg.Redis = redis.DefaultConfig(cfg.RedisURL)
	}
	if cfg.InfluxURL != "" {
		dbCfg.Influx = &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}
	}
	return dbCfg
}

func (a *app) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close Kafka client")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}
}

func (a *app) solveOptions() solve.Options {
	opts := solve.DefaultOptions()
	opts.Threads = a.cfg.NumThreads
	opts.UseMultithreaded = a.cfg.UseMultithreaded()
	opts.EnforceDeadline = a.cfg.EnforceDeadline
	opts.ProgressLogInterval = a.cfg.ProgressLogInterval
	return opts
}

func (a *app) run(ctx context.Context, cmd *command) error {
	switch cmd.name {
	case "fetch":
		return a.fetch(ctx)
	case "solve":
		return a.solve(ctx)
	case "validate":
		return a.validate(ctx)
	case "history":
		return a.history(ctx, cmd.website, cmd.limit)
	case "events":
		return a.events(ctx, cmd.group)
	case "health":
		return a.health(ctx)
	}
	return errors.New(errors.ErrorTypeValidation, "run", "unknown command").WithKind(errUsage)
}

type challengeOutput struct {
	Challenge   *challenge.Challenge `json:"challenge"`
	Difficulty  uint64               `json:"difficulty"`
	ExpiresAt   time.Time            `json:"expires_at"`
	ExpiresInMs int64                `json:"expires_in_ms"`
}

type telemetryOutput struct {
	ElapsedMs        int64  `json:"elapsed_ms"`
	Attempts         uint64 `json:"attempts"`
	HashRate         uint64 `json:"hash_rate"`
	ReportedAttempts uint64 `json:"reported_attempts"`
	Threads          int    `json:"threads"`
	Multithreaded    bool   `json:"multithreaded"`
	Worker           int    `json:"worker"`
}

type solveOutput struct {
	Solution   *challenge.Solution `json:"solution"`
	HeaderName string              `json:"header_name"`
	Header     string              `json:"header"`
	Telemetry  telemetryOutput     `json:"telemetry"`
}

type tokenOutput struct {
	Token      *challenge.Token `json:"token"`
	HeaderName string           `json:"header_name"`
	Header     string           `json:"header"`
	Cached     bool             `json:"cached"`
	Telemetry  *telemetryOutput `json:"telemetry,omitempty"`
}

func newTelemetryOutput(r *solve.Result) telemetryOutput {
	return telemetryOutput{
		ElapsedMs:        r.Telemetry.Elapsed.Milliseconds(),
		Attempts:         r.Telemetry.EstimatedAttempts,
		HashRate:         r.Telemetry.HashRate,
		ReportedAttempts: r.Telemetry.ReportedAttempts,
		Threads:          r.Config.ThreadCount,
		Multithreaded:    r.Config.UseMultithreaded,
		Worker:           r.Worker,
	}
}

func (a *app) fetch(ctx context.Context) error {
	ch, err := a.service.Fetch(ctx, a.cfg.Endpoint)
	if err != nil {
		return err
	}

	return a.print(challengeOutput{
		Challenge:   ch,
		Difficulty:  ch.Difficulty(),
		ExpiresAt:   ch.ExpiresAt().UTC(),
		ExpiresInMs: ch.TimeUntilExpiry(time.Now()).Milliseconds(),
	})
}

func (a *app) solve(ctx context.Context) error {
	solved, err := a.service.Solve(ctx, a.cfg.Endpoint, a.solveOptions())
	if err != nil {
		return err
	}

	header, err := solved.Result.Solution.ToHeader()
	if err != nil {
		return err
	}

	return a.print(solveOutput{
		Solution:   solved.Result.Solution,
		HeaderName: challenge.HeaderName,
		Header:     header,
		Telemetry:  newTelemetryOutput(solved.Result),
	})
}

func (a *app) validate(ctx context.Context) error {
	validated, err := a.service.Validate(ctx, a.cfg.Endpoint, a.solveOptions())
	if err != nil {
		return err
	}

	header, err := validated.Token.ToHeader()
	if err != nil {
		return err
	}

	out := tokenOutput{
		Token:      validated.Token,
		HeaderName: challenge.TokenHeaderName,
		Header:     header,
		Cached:     validated.Cached,
	}
	if validated.Solved != nil {
		t := newTelemetryOutput(validated.Solved.Result)
		out.Telemetry = &t
	}
	return a.print(out)
}

// history prints the latest solves followed by the aggregate of each website
// they belong to, or of the requested website alone. For a single website the
// hash rate trend from InfluxDB follows when it is available.
func (a *app) history(ctx context.Context, websiteID string, limit int) error {
	solves, err := a.solves.RecentSolves(ctx, websiteID, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOLVED AT\tWEBSITE\tNONCE\tTHREADS\tATTEMPTS\tHASH RATE\tELAPSED")
	for _, s := range solves {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d H/s\t%dms\n",
			s.SolvedAt.UTC().Format(time.RFC3339), s.WebsiteID, s.Nonce, s.Threads,
			s.EstimatedAttempts, s.HashRate, s.ElapsedMs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	websites := historyWebsites(websiteID, solves)
	if len(websites) == 0 {
		return nil
	}

	fmt.Fprintln(a.out)
	tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WEBSITE\tSOLVES\tAVG ELAPSED\tAVG HASH RATE\t1H HASH RATE\tMAX ATTEMPTS\tLAST SOLVED")
	for _, id := range websites {
		stats, err := a.solves.SolveStats(ctx, id)
		if err != nil {
			return err
		}
		last := "-"
		if stats.LastSolvedAt != nil {
			last = stats.LastSolvedAt.UTC().Format(time.RFC3339)
		}
		window := "-"
		if avg, ok := a.solves.WindowHashrate(ctx, id); ok {
			window = fmt.Sprintf("%.0f H/s", avg)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.0fms\t%.0f H/s\t%s\t%d\t%s\n",
			id, stats.Count, stats.AvgElapsedMs, stats.AvgHashRate, window, stats.MaxAttempts, last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if websiteID == "" {
		return nil
	}
	return a.hashrateTrend(ctx, websiteID)
}

// hashrateTrend prints the five minute hash rate means of a website. The
// trend is supplementary, so query failures are only logged.
func (a *app) hashrateTrend(ctx context.Context, websiteID string) error {
	points, err := a.solves.HashrateHistory(ctx, websiteID, trendPeriod)
	if err != nil {
		a.logger.WithError(err).Warn("hash rate trend unavailable", "website_id", websiteID)
		return nil
	}
	if len(points) == 0 {
		return nil
	}

	fmt.Fprintln(a.out)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tMEAN HASH RATE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.0f H/s\n", p.Time.UTC().Format(time.RFC3339), p.Hashrate)
	}
	return tw.Flush()
}

// historyWebsites lists the websites to aggregate, in first-seen order
func historyWebsites(websiteID string, solves []*postgres.Solve) []string {
	if websiteID != "" {
		return []string{websiteID}
	}

	seen := make(map[string]bool)
	var ids []string
	for _, s := range solves {
		if !seen[s.WebsiteID] {
			seen[s.WebsiteID] = true
			ids = append(ids, s.WebsiteID)
		}
	}
	return ids
}

func (a *app) events(ctx context.Context, groupID string) error {
	if a.kafka == nil {
		return errors.New(errors.ErrorTypeValidation, "events", "KAFKA_BROKERS is not set")
	}

	enc := json.NewEncoder(a.out)
	err := a.kafka.ConsumeSolves(ctx, groupID, func(_ context.Context, event *messaging.SolveEvent) error {
		return enc.Encode(event)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *app) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.store.Health(ctx); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "api: %s (%s)\n", a.cfg.APIBaseURL, breakerSummary(a.client.CircuitStats()))
	postgresStatus := enabled(a.store.Postgres != nil)
	if a.store.Postgres != nil {
		postgresStatus += " (" + breakerSummary(a.store.CircuitStats()) + ")"
	}
	fmt.Fprintf(a.out, "postgres: %s\nredis: %s\ninflux: %s\nkafka: %s\n",
		postgresStatus, enabled(a.store.Redis != nil),
		enabled(a.store.Influx != nil), enabled(a.kafka != nil))
	return nil
}

func enabled(ok bool) string {
	if ok {
		return "ok"
	}
	return "disabled"
}

func breakerSummary(stats circuit.Stats) string {
	return fmt.Sprintf("circuit %s, %d failures", stats.State, stats.Failures)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
