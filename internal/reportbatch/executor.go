package reportbatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ga4-extract/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// MaxBatchSize is the largest number of requests the service accepts in one batch call.
const MaxBatchSize = 5

// ExecutorOptions tune how requests are batched and retried, zero values
// fall back to the defaults.
type ExecutorOptions struct {
	// BatchSize is the number of requests per batch call, 0 means MaxBatchSize.
	BatchSize int
	// Concurrency is the number of batch calls in flight, 0 means 2.
	Concurrency int
	Retry       RetryPolicy
}

func (o ExecutorOptions) withDefaults() (ExecutorOptions, error) {
	if o.BatchSize == 0 {
		o.BatchSize = MaxBatchSize
	}
	if o.BatchSize < 1 || o.BatchSize > MaxBatchSize {
		return o, &ConfigError{
			Field:  "batch_size",
			Reason: fmt.Sprintf("%d is outside of 1..%d", o.BatchSize, MaxBatchSize),
		}
	}
	if o.Concurrency == 0 {
		o.Concurrency = 2
	}
	if o.Concurrency < 1 {
		return o, &ConfigError{
			Field:  "concurrency",
			Reason: fmt.Sprintf("%d must be at least 1", o.Concurrency),
		}
	}
	o.Retry = o.Retry.withDefaults()
	return o, nil
}

// FetchResult holds every page of one request, or why they could not be fetched.
type FetchResult struct {
	Report   string
	Response RemoteResponse
	Pages    int
	Err      error
}

// Executor issues requests in batches and walks every report's pages.
type Executor struct {
	transport Transport
	tel       telemetry.API
	opts      ExecutorOptions
}

// NewExecutor validates opts. The transport is shared by every worker.
func NewExecutor(transport Transport, tel telemetry.API, opts ExecutorOptions) (*Executor, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Executor{
		transport: transport,
		tel:       telemetry.NewScopedAPI("executor", tel),
		opts:      opts,
	}, nil
}

// Execute returns one result per request, aligned with reqs. A failure is
// confined to the result of the report it belongs to.
func (e *Executor) Execute(ctx context.Context, reqs []RemoteRequest) []FetchResult {
	ctx, span := tracer.Start(ctx, "Execute")
	defer span.End()
	span.SetAttributes(attribute.Int("requests", len(reqs)))

	results := make([]FetchResult, len(reqs))

	g := errgroup.Group{}
	g.SetLimit(e.opts.Concurrency)
	for start := 0; start < len(reqs); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(reqs))
		group := reqs[start:end]
		out := results[start:end]
		g.Go(func() error {
			e.runGroup(ctx, group, out)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d reports failed", failed, len(reqs)))
	}
	return results
}

func reportNames(reqs []RemoteRequest) []string {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Report
	}
	return names
}

func (e *Executor) onRetry(ctx context.Context) retryNotify {
	return func(err *RemoteCallError, wait time.Duration) {
		retryCounter.Add(ctx, 1)
		e.tel.ReportWarning(report_executor_retry, err, slog.Duration("wait", wait))
	}
}

// runGroup fills out, aligned with group, with the results of one batch call.
func (e *Executor) runGroup(ctx context.Context, group []RemoteRequest, out []FetchResult) {
	names := reportNames(group)
	label := strings.Join(names, ",")

	ctx, span := tracer.Start(ctx, "runGroup")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("reports", names))

	var responses []RemoteResponse
	callErr := e.opts.Retry.do(ctx, label, e.onRetry(ctx), func(ctx context.Context) error {
		res, err := e.transport.BatchRunReports(ctx, group[0].Property, group)
		if err != nil {
			return err
		}
		if len(res) != len(group) {
			return fmt.Errorf(
				"%w: %d responses for %d requests",
				errMalformedResponse, len(res), len(group),
			)
		}
		responses = res
		return nil
	})

	if callErr == nil {
		for i, req := range group {
			out[i] = e.fetch(ctx, req, &responses[i])
		}
		return
	}

	span.RecordError(callErr)
	e.tel.ReportWarning(report_executor_batch, callErr, slog.String("reports", label))

	// a single rejected request fails the whole batch call, issuing the
	// requests one by one confines the failure to the offending report
	if !callErr.Transient && len(group) > 1 && ctx.Err() == nil {
		e.tel.ReportWarning(report_executor_isolate, "issuing batch requests individually", slog.String("reports", label))
		for i, req := range group {
			out[i] = e.fetch(ctx, req, nil)
		}
		return
	}

	for i, req := range group {
		err := *callErr
		err.Report = req.Report
		out[i] = e.failed(ctx, req, &err)
	}
}

func (e *Executor) failed(ctx context.Context, req RemoteRequest, err error) FetchResult {
	failedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("report", req.Report)))
	return FetchResult{Report: req.Report, Err: err}
}

// fetch drives a pageFetcher until every page of the report has been
// collected. When first is set it is used as the first page.
func (e *Executor) fetch(ctx context.Context, req RemoteRequest, first *RemoteResponse) FetchResult {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttributes(attribute.String("report", req.Report))

	f := newPageFetcher(req)
	if first != nil {
		pageCounter.Add(ctx, 1)
		f.accept(*first)
	}

	for !f.done() {
		next := f.next()
		var page RemoteResponse
		callErr := e.opts.Retry.do(ctx, req.Report, e.onRetry(ctx), func(ctx context.Context) error {
			res, err := e.transport.RunReport(ctx, next)
			if err != nil {
				return err
			}
			page = res
			return nil
		})
		if callErr != nil {
			f.fail(callErr)
			break
		}
		pageCounter.Add(ctx, 1)
		e.tel.ReportDebug(
			"fetched page",
			slog.String("report", req.Report),
			slog.Int64("offset", next.Offset),
			slog.Int("rows", len(page.Rows)),
		)
		f.accept(page)
	}

	if f.duplicates > 0 {
		e.tel.ReportWarning(report_executor_duplicate, slog.String("report", req.Report), slog.Int("duplicates", f.duplicates))
	}
	span.SetAttributes(
		attribute.Int("pages", f.pages),
		attribute.Int("rows", len(f.response.Rows)),
	)

	if f.state == stateFailed {
		span.RecordError(f.err)
		span.SetStatus(codes.Error, "fetch failed")
		err := classify(req.Report, f.err)
		e.tel.ReportBroken(report_executor_paginate, err, slog.Int("pages", f.pages))
		return e.failed(ctx, req, err)
	}
	return FetchResult{Report: req.Report, Response: f.response, Pages: f.pages}
}
