package analyticsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ga4-extract/lib/restyutil"
	"ga4-extract/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("platforms/analyticsdata")

const DefaultBaseUrl = "https://analyticsdata.googleapis.com"

// ErrMalformedResponse is wrapped by errors about responses that do not
// match what was requested, retrying will not fix them.
var ErrMalformedResponse = errors.New("malformed response")

type ClientOptions struct {
	BaseUrl string
	// Credentials supplies the access token of every request, Token is
	// used when it is nil.
	Credentials oauth2.TokenSource
	Token       Token
	// RequestsPerSecond bounds the outgoing request rate, 0 means unlimited.
	RequestsPerSecond float64
	// Timeout is applied to each HTTP request, defaults to one minute.
	Timeout time.Duration
	// Transcripts receives every request and response when set.
	Transcripts restyutil.Output
}

// Client is safe for concurrent use once constructed.
type Client struct {
	http *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	credentials := opts.Credentials
	if credentials == nil && opts.Token.AccessToken != "" {
		credentials = opts.Token.TokenSource()
	}
	if credentials == nil {
		return nil, errors.New("credentials or an access token are required")
	}
	credentials = oauth2.ReuseTokenSource(nil, credentials)
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Minute
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("content-type", "application/json")

	if opts.RequestsPerSecond > 0 {
		// burst of 1 so concurrent workers are spread out evenly
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		token, err := credentials.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCredentials, err)
		}
		req.SetHeader("Authorization", token.Type()+" "+token.AccessToken)
		return nil
	})

	telemetry.InstrumentResty(client, "platforms/analyticsdata/http")
	restyutil.RecordTranscripts(client, opts.Transcripts)

	return &Client{http: client}, nil
}

// PropertyPath turns `123` or `properties/123` into `properties/123`.
func PropertyPath(property string) string {
	if strings.HasPrefix(property, "properties/") {
		return property
	}
	return "properties/" + property
}

func post[Input, Output any](
	ctx context.Context,
	client *resty.Client,
	method,
	property string,
	input Input,
) (Output, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("analyticsdata:%s", method))
	defer span.End()

	var defaultOut Output
	path := fmt.Sprintf("/v1beta/%s:%s", PropertyPath(property), method)
	span.SetAttributes(attribute.String("custom.path", path))

	body, err := json.Marshal(input)
	if err != nil {
		span.SetStatus(codes.Error, "failed to serialize request")
		return defaultOut, fmt.Errorf("json marshal: %w", err)
	}

	res, err := client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return defaultOut, err
	}

	if res.IsError() {
		apiErr := &APIError{Code: res.StatusCode(), Message: res.Status()}
		var envelope errorEnvelope
		if json.Unmarshal(res.Body(), &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			if apiErr.Code == 0 {
				apiErr.Code = res.StatusCode()
			}
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Status)
		return defaultOut, apiErr
	}

	var out Output
	err = json.Unmarshal(res.Body(), &out)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		return defaultOut, fmt.Errorf("%w: json unmarshal: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

// RunReport issues a single report request.
func (c *Client) RunReport(ctx context.Context, property string, req RunReportRequest) (RunReportResponse, error) {
	return post[RunReportRequest, RunReportResponse](ctx, c.http, "runReport", property, req)
}

// BatchRunReports issues several report requests in one call, the service
// rejects the whole batch if any of the requests is invalid.
func (c *Client) BatchRunReports(ctx context.Context, property string, reqs []RunReportRequest) (BatchRunReportsResponse, error) {
	res, err := post[BatchRunReportsRequest, BatchRunReportsResponse](
		ctx, c.http, "batchRunReports", property,
		BatchRunReportsRequest{Requests: reqs},
	)
	if err != nil {
		return res, err
	}
	if len(res.Reports) != len(reqs) {
		return res, fmt.Errorf(
			"%w: batchRunReports returned %d reports for %d requests",
			ErrMalformedResponse, len(res.Reports), len(reqs),
		)
	}
	return res, nil
}
