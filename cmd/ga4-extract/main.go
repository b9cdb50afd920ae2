package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"ga4-extract/cmd/ga4-extract/commands"
	"ga4-extract/lib/telemetry"
	"ga4-extract/lib/util/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())

	tel, err := telemetry.SetupFromEnv(ctx, "ga4-extract")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("telemetry is disabled", "err", err)
	}
	if tel.MeterProvider != nil {
		telemetry.InstrumentPerfStats(ctx, 10*time.Second)
	}

	code := commands.ExecuteContext(ctx)
	sample, _ := telemetry.SamplePerfStats(ctx)
	slog.Debug("process stats", "exit_code", code, "stats", sample)
	cancel()

	err = tel.Shutdown(context.Background())
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	os.Exit(code)
}
