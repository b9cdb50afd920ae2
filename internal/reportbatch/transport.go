package reportbatch

import (
	"context"
	"errors"
	"fmt"

	"ga4-extract/lib/platforms/analyticsdata"
)

type ColumnKind int

const (
	ColumnString ColumnKind = iota
	ColumnNumeric
)

func (k ColumnKind) String() string {
	if k == ColumnNumeric {
		return "numeric"
	}
	return "string"
}

// Header describes one returned column, MetricType is only set on numeric columns.
type Header struct {
	Name       string
	Kind       ColumnKind
	MetricType string
}

// RemoteResponse is the raw result of one request (all of its pages once
// the executor is done with it). Row cells are aligned with Headers.
type RemoteResponse struct {
	Headers  []Header
	Rows     [][]string
	RowCount int64
}

// Transport is the authenticated handle to the reporting service.
// Implementations must be safe for concurrent use.
//
// note: fault injection point
type Transport interface {
	// BatchRunReports issues all requests in one call, they share a property.
	// The responses are aligned with the requests. A single invalid request
	// fails the whole call.
	BatchRunReports(ctx context.Context, property string, reqs []RemoteRequest) ([]RemoteResponse, error)
	// RunReport issues a single request.
	RunReport(ctx context.Context, req RemoteRequest) (RemoteResponse, error)
}

// AnalyticsTransport implements Transport on top of the GA4 Data API client.
type AnalyticsTransport struct {
	client *analyticsdata.Client
}

func NewAnalyticsTransport(client *analyticsdata.Client) AnalyticsTransport {
	return AnalyticsTransport{client: client}
}

func toWireRequest(req RemoteRequest) analyticsdata.RunReportRequest {
	out := analyticsdata.RunReportRequest{
		DateRanges: []analyticsdata.DateRange{{
			StartDate: req.DateRange.StartDate,
			EndDate:   req.DateRange.EndDate,
		}},
		Offset: req.Offset,
		Limit:  req.Limit,
	}
	for _, d := range req.Dimensions {
		out.Dimensions = append(out.Dimensions, analyticsdata.Dimension{Name: d})
	}
	for _, m := range req.Metrics {
		out.Metrics = append(out.Metrics, analyticsdata.Metric{Name: m})
	}
	for _, d := range req.OrderBy {
		out.OrderBys = append(out.OrderBys, analyticsdata.OrderBy{
			Dimension: &analyticsdata.DimensionOrderBy{DimensionName: d},
		})
	}
	return out
}

func fromWireResponse(res analyticsdata.RunReportResponse) (RemoteResponse, error) {
	out := RemoteResponse{
		Headers:  make([]Header, 0, len(res.DimensionHeaders)+len(res.MetricHeaders)),
		Rows:     make([][]string, len(res.Rows)),
		RowCount: res.RowCount,
	}
	for _, h := range res.DimensionHeaders {
		out.Headers = append(out.Headers, Header{Name: h.Name, Kind: ColumnString})
	}
	for _, h := range res.MetricHeaders {
		out.Headers = append(out.Headers, Header{
			Name:       h.Name,
			Kind:       ColumnNumeric,
			MetricType: string(h.Type),
		})
	}

	for i, row := range res.Rows {
		if len(row.DimensionValues) != len(res.DimensionHeaders) ||
			len(row.MetricValues) != len(res.MetricHeaders) {
			return RemoteResponse{}, fmt.Errorf(
				"%w: row %d has %d dimension and %d metric values for %d and %d headers",
				errMalformedResponse, i, len(row.DimensionValues), len(row.MetricValues),
				len(res.DimensionHeaders), len(res.MetricHeaders),
			)
		}
		cells := make([]string, 0, len(out.Headers))
		for _, v := range row.DimensionValues {
			cells = append(cells, v.Value)
		}
		for _, v := range row.MetricValues {
			cells = append(cells, v.Value)
		}
		out.Rows[i] = cells
	}
	return out, nil
}

func (t AnalyticsTransport) BatchRunReports(ctx context.Context, property string, reqs []RemoteRequest) ([]RemoteResponse, error) {
	wire := make([]analyticsdata.RunReportRequest, len(reqs))
	for i, r := range reqs {
		wire[i] = toWireRequest(r)
	}

	res, err := t.client.BatchRunReports(ctx, property, wire)
	if err != nil {
		return nil, err
	}

	out := make([]RemoteResponse, len(res.Reports))
	for i, report := range res.Reports {
		converted, err := fromWireResponse(report)
		if err != nil {
			return nil, fmt.Errorf("report %q: %w", reqs[i].Report, err)
		}
		out[i] = converted
	}
	return out, nil
}

func (t AnalyticsTransport) RunReport(ctx context.Context, req RemoteRequest) (RemoteResponse, error) {
	res, err := t.client.RunReport(ctx, req.Property, toWireRequest(req))
	if err != nil {
		return RemoteResponse{}, err
	}
	return fromWireResponse(res)
}

// classify turns an error returned by a Transport into a RemoteCallError.
func classify(report string, err error) *RemoteCallError {
	var existing *RemoteCallError
	if errors.As(err, &existing) {
		return existing
	}

	out := &RemoteCallError{Report: report, Err: err}

	var apiErr *analyticsdata.APIError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// the caller gave up, retrying would not help
		out.Transient = false
	case errors.As(err, &apiErr):
		out.StatusCode = apiErr.Code
		out.Status = apiErr.Status
		out.Transient = apiErr.Temporary()
	case errors.Is(err, analyticsdata.ErrCredentials):
		out.Transient = false
	default:
		// transport level failures (connection reset, timeouts)
		out.Transient = !errors.Is(err, errMalformedResponse)
	}
	return out
}

// errMalformedResponse marks responses that will not get better when retried.
var errMalformedResponse = analyticsdata.ErrMalformedResponse
