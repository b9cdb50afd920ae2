package reportbatch

import (
	"context"
	"errors"
	"log/slog"

	"ga4-extract/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Options configure a Generator, the zero value is usable.
type Options struct {
	Request  RequestOptions
	Executor ExecutorOptions
}

// Batch maps report names to their tables. Names keeps configuration order.
type Batch struct {
	Names  []string
	Tables map[string]*ReportTable
}

// Get returns the table of a report.
func (b Batch) Get(name string) (*ReportTable, bool) {
	t, ok := b.Tables[name]
	return t, ok
}

// Ordered returns the tables in configuration order.
func (b Batch) Ordered() []*ReportTable {
	out := make([]*ReportTable, 0, len(b.Names))
	for _, name := range b.Names {
		out = append(out, b.Tables[name])
	}
	return out
}

// Generator produces a table for every report of a batch configuration.
type Generator struct {
	executor *Executor
	request  RequestOptions
	tel      telemetry.API
}

// NewGenerator returns a *ConfigError when opts are out of range.
func NewGenerator(transport Transport, tel telemetry.API, opts Options) (*Generator, error) {
	scoped := telemetry.NewScopedAPI("reportbatch", tel)
	executor, err := NewExecutor(transport, scoped, opts.Executor)
	if err != nil {
		return nil, err
	}
	_, err = opts.Request.resolve()
	if err != nil {
		return nil, err
	}
	return &Generator{
		executor: executor,
		request:  opts.Request,
		tel:      telemetry.NewScopedAPI("generator", scoped),
	}, nil
}

// Generate fetches every report of cfg for the given property.
//
// A *ConfigError is returned before any request is sent when the
// configuration or property is invalid. When some reports fail, the returned
// Batch holds the tables of those that succeeded and the error is a
// *PartialBatchError describing every report.
func (g *Generator) Generate(ctx context.Context, property string, cfg BatchConfig) (Batch, error) {
	ctx, span := tracer.Start(ctx, "Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("property", property),
		attribute.StringSlice("reports", cfg.Names()),
	)

	if cfg.Len() == 0 {
		err := &ConfigError{Reason: "no reports declared"}
		span.SetStatus(codes.Error, err.Error())
		return Batch{}, err
	}
	reqs, err := BuildRequests(cfg, property, g.request)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Batch{}, err
	}

	results := g.executor.Execute(ctx, reqs)

	batch := Batch{Tables: map[string]*ReportTable{}}
	outcomes := make([]ReportOutcome, len(results))
	failed := false
	for i, spec := range cfg.Reports() {
		outcomes[i] = g.reconstruct(ctx, spec, results[i])
		if outcomes[i].Err != nil {
			failed = true
			continue
		}
		batch.Names = append(batch.Names, spec.Name)
		batch.Tables[spec.Name] = outcomes[i].Table
	}

	if failed {
		err := &PartialBatchError{Outcomes: outcomes}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return batch, err
	}
	return batch, nil
}

func (g *Generator) reconstruct(ctx context.Context, spec ReportSpec, res FetchResult) ReportOutcome {
	if res.Err != nil {
		return ReportOutcome{Report: spec.Name, Err: res.Err}
	}

	table, err := Reconstruct(spec, res.Response)
	if err != nil {
		g.tel.ReportBroken(report_generator_report, err)
		failedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("report", spec.Name)))
		return ReportOutcome{Report: spec.Name, Err: err}
	}

	if len(table.Dropped) > 0 {
		droppedRowCounter.Add(
			ctx, int64(len(table.Dropped)),
			metric.WithAttributes(attribute.String("report", spec.Name)),
		)
		g.tel.ReportWarning(
			report_generator_dropped,
			table.Dropped[0],
			slog.String("report", spec.Name),
			slog.Int("dropped", len(table.Dropped)),
		)
	}
	g.tel.ReportCount(report_generator_rows, int64(table.Len()))

	return ReportOutcome{Report: spec.Name, Table: table}
}

// IsConfigError reports whether err was raised before anything was sent.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
