package analyticsdata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t testing.TB, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Token:   Token{AccessToken: "ya29.test"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestPropertyPath(t *testing.T) {
	require.Equal(t, "properties/123", PropertyPath("123"))
	require.Equal(t, "properties/123", PropertyPath("properties/123"))
}

func TestRunReport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/properties/123456:runReport", r.URL.Path)
		require.Equal(t, "Bearer ya29.test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req RunReportRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, []Dimension{{Name: "date"}}, req.Dimensions)
		require.Equal(t, int64(100), req.Offset)
		require.Equal(t, int64(50), req.Limit)

		w.Write([]byte(`{
			"dimensionHeaders": [{"name": "date"}],
			"metricHeaders": [{"name": "activeUsers", "type": "TYPE_INTEGER"}],
			"rows": [
				{"dimensionValues": [{"value": "20240101"}], "metricValues": [{"value": "42"}]}
			],
			"rowCount": 151,
			"kind": "analyticsData#runReport"
		}`))
	})

	res, err := client.RunReport(context.Background(), "123456", RunReportRequest{
		Dimensions: []Dimension{{Name: "date"}},
		Metrics:    []Metric{{Name: "activeUsers"}},
		Offset:     100,
		Limit:      50,
	})
	require.NoError(t, err)
	require.Equal(t, int64(151), res.RowCount)
	require.Equal(t, []MetricHeader{{Name: "activeUsers", Type: MetricTypeInteger}}, res.MetricHeaders)
	require.Equal(t, "42", res.Rows[0].MetricValues[0].Value)
}

func TestBatchRunReports(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/properties/42:batchRunReports", r.URL.Path)

		var req BatchRunReportsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)

		w.Write([]byte(`{"reports": [{"rowCount": 0}, {"rowCount": 3}]}`))
	})

	res, err := client.BatchRunReports(context.Background(), "properties/42", []RunReportRequest{
		{Metrics: []Metric{{Name: "sessions"}}},
		{Metrics: []Metric{{Name: "activeUsers"}}},
	})
	require.NoError(t, err)
	require.Len(t, res.Reports, 2)
	require.Equal(t, int64(3), res.Reports[1].RowCount)
}

func TestBatchRunReportsCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reports": [{"rowCount": 0}]}`))
	})

	_, err := client.BatchRunReports(context.Background(), "42", []RunReportRequest{{}, {}})
	require.ErrorContains(t, err, "returned 1 reports for 2 requests")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestAPIError(t *testing.T) {
	table := []struct {
		status    int
		body      string
		expected  APIError
		temporary bool
	}{
		{
			status: http.StatusBadRequest,
			body:   `{"error": {"code": 400, "message": "Field userGender is not a valid dimension.", "status": "INVALID_ARGUMENT"}}`,
			expected: APIError{
				Code:    400,
				Message: "Field userGender is not a valid dimension.",
				Status:  "INVALID_ARGUMENT",
			},
		},
		{
			status:    http.StatusTooManyRequests,
			body:      `{"error": {"code": 429, "message": "Exhausted property tokens", "status": "RESOURCE_EXHAUSTED"}}`,
			expected:  APIError{Code: 429, Message: "Exhausted property tokens", Status: "RESOURCE_EXHAUSTED"},
			temporary: true,
		},
		{
			status:    http.StatusBadGateway,
			body:      `<html>bad gateway</html>`,
			expected:  APIError{Code: 502, Message: "502 Bad Gateway"},
			temporary: true,
		},
	}

	for _, row := range table {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(row.status)
			w.Write([]byte(row.body))
		})

		_, err := client.RunReport(context.Background(), "1", RunReportRequest{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), err)
		require.Equal(t, row.expected, *apiErr)
		require.Equal(t, row.temporary, apiErr.Temporary())
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)
}

func TestParseToken(t *testing.T) {
	table := []struct {
		input    string
		expected Token
		fails    bool
	}{
		{input: "ya29.abc\n", expected: Token{AccessToken: "ya29.abc", TokenType: "Bearer"}},
		{
			input:    `{"access_token": "ya29.def", "token_type": "Bearer", "expires_in": 3599}`,
			expected: Token{AccessToken: "ya29.def", TokenType: "Bearer", ExpiresIn: 3599},
		},
		{input: `{"token_type": "Bearer"}`, fails: true},
		{input: "  \n", fails: true},
	}

	for _, row := range table {
		token, err := ParseToken([]byte(row.input))
		if row.fails {
			require.Error(t, err, row.input)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, row.expected, token)
	}
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token": "abc"}`), 0600))

	token, err := LoadToken(path)
	require.NoError(t, err)
	issued, err := token.TokenSource().Token()
	require.NoError(t, err)
	require.Equal(t, "Bearer", issued.Type())
	require.Equal(t, "abc", issued.AccessToken)
}
