package reportbatch

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("internal/reportbatch")
var meter = otel.Meter("internal/reportbatch")

var (
	pageCounter, _       = meter.Int64Counter("reportbatch.pages_fetched")
	retryCounter, _      = meter.Int64Counter("reportbatch.retries")
	failedCounter, _     = meter.Int64Counter("reportbatch.failed_reports")
	droppedRowCounter, _ = meter.Int64Counter("reportbatch.dropped_rows")
)

const (
	report_executor_batch     = "executor.batch"
	report_executor_isolate   = "executor.isolate"
	report_executor_retry     = "executor.retry"
	report_executor_paginate  = "executor.paginate"
	report_executor_duplicate = "executor.duplicate-rows"

	report_generator_report  = "generator.report"
	report_generator_dropped = "generator.dropped-rows"
	report_generator_rows    = "generator.rows"
)
