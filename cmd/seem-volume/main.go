// Command seem-volume reports merchantable stand volume by log grade from a
// tree list CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seem/internal/adapters/reports"
	"seem/internal/blob"
	"seem/internal/config"
	"seem/internal/core"
	"seem/internal/logging"
	"seem/internal/scaling"
	"seem/internal/stand"
)

const appName = "seem-volume"

var exitFunc = os.Exit

type options struct {
	trees       string
	config      string
	units       string
	policy      string
	periods     string
	standName   string
	persist     bool
	report      string
	metricsPath string
	tracePath   string
	timeout     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.trees, "trees", "", "tree list CSV (species,dbh,height,expansion_factor[,period])")
	fs.StringVar(&opts.config, "config", "", "TOML or YAML settings file")
	fs.StringVar(&opts.units, "units", "", "metric or english; overrides the config file")
	fs.StringVar(&opts.policy, "policy", "", "forwarder or long; overrides the config file")
	fs.StringVar(&opts.periods, "period", "", "comma separated harvest periods (default: every period in the tree list)")
	fs.StringVar(&opts.standName, "stand", "", "stand name (default: tree list file name)")
	fs.BoolVar(&opts.persist, "persist", false, "warm tables from and save them to the configured snapshot store")
	fs.StringVar(&opts.report, "report", "", "comma separated report formats (json,csv,html) to store in the blob store")
	fs.StringVar(&opts.metricsPath, "metrics", "", "write Prometheus text metrics to this file")
	fs.StringVar(&opts.tracePath, "trace", "", "append JSON trace spans to this file")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall run timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.trees == "" && fs.NArg() == 1 {
		opts.trees = fs.Arg(0)
	}
	if opts.trees == "" {
		_, _ = fmt.Fprintln(stderr, "a tree list is required (-trees)")
		fs.Usage()
		return 2
	}
	logger, err := logging.FromEnv(stderr, appName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 2
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	if err := run(ctx, opts, stdout, logger); err != nil {
		logger.Error("run failed", "error", err)
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *logging.Logger) (err error) {
	cfg := config.Default()
	if opts.config != "" {
		if cfg, err = config.Load(opts.config); err != nil {
			return err
		}
	}
	if opts.units != "" {
		if cfg.Units, err = stand.ParseUnits(opts.units); err != nil {
			return err
		}
	}
	if opts.policy != "" {
		if cfg.Policy, err = scaling.ParseLogLengthPolicy(opts.policy); err != nil {
			return err
		}
	}
	requested, err := parsePeriods(opts.periods)
	if err != nil {
		return err
	}

	name := opts.standName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(opts.trees), filepath.Ext(opts.trees))
	}
	file, err := os.Open(opts.trees)
	if err != nil {
		return fmt.Errorf("open tree list: %w", err)
	}
	st, selection, listed, err := readTrees(file, name, cfg.Units)
	_ = file.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", opts.trees, err)
	}
	periods := requested
	if len(periods) == 0 {
		periods = listed
	}
	slices.Sort(periods)
	periods = slices.Compact(periods)

	catalog, err := scaling.NewCatalog(cfg.CatalogOptions()...)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}
	if err := registry.Register(core.NewTableStatsCollector(catalog)); err != nil {
		return err
	}
	serviceOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithCatalog(catalog),
		core.WithMetricsRecorder(recorder),
	}
	if opts.tracePath != "" {
		traceFile, openErr := os.OpenFile(opts.tracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if openErr != nil {
			return fmt.Errorf("open trace file: %w", openErr)
		}
		defer func() {
			if cerr := traceFile.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close trace file: %w", cerr)
			}
		}()
		serviceOpts = append(serviceOpts, core.WithTracer(core.NewJSONTracer(traceFile)))
	}
	if opts.persist {
		snapshots, openErr := core.OpenSnapshotStore(ctx)
		if openErr != nil {
			return fmt.Errorf("open snapshot store: %w", openErr)
		}
		defer func() {
			if cerr := snapshots.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close snapshot store: %w", cerr)
			}
		}()
		serviceOpts = append(serviceOpts, core.WithSnapshotStore(snapshots))
	}
	svc, err := core.NewService(serviceOpts...)
	if err != nil {
		return err
	}

	if opts.persist {
		restored, err := svc.WarmTables(ctx, st.Species(), []scaling.LogLengthPolicy{cfg.Policy})
		if err != nil {
			return err
		}
		logger.Info("volume tables warmed", "cells", restored)
	}

	report := reports.StandReport{Stand: st.Name, Policy: cfg.Policy.String()}
	if report.Standing, err = svc.StandingVolume(ctx, st, cfg.Policy); err != nil {
		return err
	}
	if len(periods) > 0 {
		if report.Harvest, err = svc.HarvestVolumes(ctx, st, selection, periods, cfg.Policy); err != nil {
			return err
		}
	}
	if err := printReport(stdout, report, cfg.Units); err != nil {
		return err
	}

	if opts.persist {
		written, err := svc.PersistTables(ctx)
		if err != nil {
			return err
		}
		logger.Info("volume tables persisted", "tables", written)
	}
	if opts.report != "" {
		if err := storeReport(ctx, stdout, logger, report, opts.report); err != nil {
			return err
		}
	}
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func printReport(w io.Writer, report reports.StandReport, units stand.Units) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "stand %s\tpolicy %s\tinput %s\t\n", report.Stand, report.Policy, units)
	_, _ = fmt.Fprintln(tw, "section\tperiod\tgrade\tm3/ha\tMBF/ha\tlogs/ha\t")
	for _, row := range report.Rows() {
		period := "-"
		if row.Section == "harvest" {
			period = strconv.Itoa(row.Period)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.3f\t%.1f\t\n", row.Section, period, row.Grade, row.Cubic, row.Scribner, row.Logs)
	}
	_, _ = fmt.Fprintf(tw, "trees/ha\t\t\t%.1f\t\t\t\n", report.Standing.Trees)
	return tw.Flush()
}

func storeReport(ctx context.Context, stdout io.Writer, logger *logging.Logger, report reports.StandReport, rawFormats string) error {
	var formats []reports.Format
	for _, raw := range strings.Split(rawFormats, ",") {
		f, err := reports.ParseFormat(raw)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}
	store, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	worker := reports.NewWorker(store, reports.WithLogger(logger))
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()
	queued, err := worker.EnqueueReport(ctx, reports.ReportInput{Report: report, Formats: formats})
	if err != nil {
		return err
	}
	record, err := worker.Await(ctx, queued.ID)
	if err != nil {
		return err
	}
	if record.Status != reports.StatusSucceeded {
		return errors.New("report " + record.ID + " failed: " + record.Error)
	}
	for _, artifact := range record.Artifacts {
		location := artifact.Key
		if artifact.URL != "" {
			location = artifact.URL
		}
		_, _ = fmt.Fprintf(stdout, "report %s: %s\n", artifact.Format, location)
	}
	return nil
}
