package reportbatch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"ga4-extract/internal/telemetry"
	"ga4-extract/lib/platforms/analyticsdata"
)

var (
	errRejected = &analyticsdata.APIError{
		Code:    400,
		Status:  "INVALID_ARGUMENT",
		Message: "Field sessionz is not a valid metric.",
	}
	errThrottled = &analyticsdata.APIError{
		Code:    429,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "Exhausted property tokens per hour.",
	}
)

var testRetry = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

type fakeReport struct {
	headers []Header
	rows    [][]string
	// reject fails every request for the report like an invalid field would
	reject bool
	// overlap makes every page after the first start this many rows early
	overlap int
	// reversePages returns the columns of later pages in reverse order
	reversePages bool
}

// fakeService is an in-memory reporting service that pages through fixed datasets.
type fakeService struct {
	mu      sync.Mutex
	reports map[string]*fakeReport

	batches [][]string
	singles []RemoteRequest

	// batchErrors are returned by successive BatchRunReports calls
	batchErrors []error
	// runErrors are returned by successive RunReport calls of a report
	runErrors map[string][]error
}

func newFakeService(reports map[string]*fakeReport) *fakeService {
	return &fakeService{reports: reports, runErrors: map[string][]error{}}
}

func (s *fakeService) page(req RemoteRequest) (RemoteResponse, error) {
	r, ok := s.reports[req.Report]
	if !ok || r.reject {
		return RemoteResponse{}, errRejected
	}

	start := int(req.Offset)
	if start > 0 {
		start -= r.overlap
	}
	start = min(start, len(r.rows))
	end := min(start+int(req.Limit), len(r.rows))

	headers := slices.Clone(r.headers)
	rows := make([][]string, 0, end-start)
	for _, row := range r.rows[start:end] {
		rows = append(rows, slices.Clone(row))
	}
	if req.Offset > 0 && r.reversePages {
		slices.Reverse(headers)
		for _, row := range rows {
			slices.Reverse(row)
		}
	}

	return RemoteResponse{
		Headers:  headers,
		Rows:     rows,
		RowCount: int64(len(r.rows)),
	}, nil
}

func (s *fakeService) BatchRunReports(ctx context.Context, property string, reqs []RemoteRequest) ([]RemoteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, reportNames(reqs))
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(s.batchErrors) > 0 {
		err := s.batchErrors[0]
		s.batchErrors = s.batchErrors[1:]
		return nil, err
	}

	out := make([]RemoteResponse, len(reqs))
	for i, req := range reqs {
		if req.Property != property {
			return nil, fmt.Errorf("request %q is for property %q, batch is for %q", req.Report, req.Property, property)
		}
		res, err := s.page(req)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func (s *fakeService) RunReport(ctx context.Context, req RemoteRequest) (RemoteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.singles = append(s.singles, req)
	if ctx.Err() != nil {
		return RemoteResponse{}, ctx.Err()
	}
	if queued := s.runErrors[req.Report]; len(queued) > 0 {
		s.runErrors[req.Report] = queued[1:]
		return RemoteResponse{}, queued[0]
	}
	return s.page(req)
}

func (s *fakeService) singleOffsets(report string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []int64{}
	for _, req := range s.singles {
		if req.Report == report {
			out = append(out, req.Offset)
		}
	}
	return out
}

// dailyReport is a date by activeUsers dataset with n days.
func dailyReport(n int) *fakeReport {
	r := &fakeReport{
		headers: []Header{
			{Name: "date", Kind: ColumnString},
			{Name: "activeUsers", Kind: ColumnNumeric, MetricType: string(analyticsdata.MetricTypeInteger)},
		},
		rows: [][]string{},
	}
	for i := 0; i < n; i++ {
		r.rows = append(r.rows, []string{fmt.Sprintf("202404%02d", i+1), fmt.Sprint(i * 10)})
	}
	return r
}

func mustConfig(t testing.TB, specs ...ReportSpec) BatchConfig {
	t.Helper()
	cfg, err := NewBatchConfig(specs...)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestGenerator(t testing.TB, transport Transport, opts Options) *Generator {
	t.Helper()
	if opts.Executor.Retry == (RetryPolicy{}) {
		opts.Executor.Retry = testRetry
	}
	g, err := NewGenerator(transport, telemetry.SlogAPI{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return g
}
