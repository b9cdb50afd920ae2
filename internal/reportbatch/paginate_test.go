package reportbatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func page(rowCount int64, rows ...[]string) RemoteResponse {
	return RemoteResponse{
		Headers:  dailyReport(0).headers,
		Rows:     rows,
		RowCount: rowCount,
	}
}

func TestPageFetcherStates(t *testing.T) {
	f := newPageFetcher(RemoteRequest{Report: "daily", Limit: 2})
	require.Equal(t, stateRequesting, f.state)
	require.Equal(t, int64(0), f.next().Offset)

	f.accept(page(5, []string{"20240401", "1"}, []string{"20240402", "2"}))
	require.Equal(t, stateAwaitingPage, f.state)
	require.Equal(t, int64(2), f.next().Offset)

	f.accept(page(5, []string{"20240403", "3"}, []string{"20240404", "4"}))
	require.Equal(t, stateAwaitingPage, f.state)
	require.Equal(t, int64(4), f.next().Offset)

	f.accept(page(5, []string{"20240405", "5"}))
	require.Equal(t, stateComplete, f.state)
	require.True(t, f.done())
	require.Equal(t, 3, f.pages)
	require.Len(t, f.response.Rows, 5)
	require.Equal(t, int64(5), f.response.RowCount)

	// pages after completion are ignored
	f.accept(page(5, []string{"20240406", "6"}))
	require.Len(t, f.response.Rows, 5)
}

func TestPageFetcherStopsOnEmptyPage(t *testing.T) {
	f := newPageFetcher(RemoteRequest{Report: "daily", Limit: 2})
	f.accept(page(10, []string{"20240401", "1"}, []string{"20240402", "2"}))
	require.Equal(t, stateAwaitingPage, f.state)

	// the total shrank between calls
	f.accept(page(10))
	require.Equal(t, stateComplete, f.state)
	require.Len(t, f.response.Rows, 2)
}

func TestPageFetcherDeduplicates(t *testing.T) {
	f := newPageFetcher(RemoteRequest{Report: "daily", Limit: 2})
	f.accept(page(4, []string{"20240401", "1"}, []string{"20240402", "2"}))
	f.accept(page(4, []string{"20240402", "2"}, []string{"20240403", "3"}))

	require.Equal(t, stateComplete, f.state)
	require.Equal(t, 1, f.duplicates)
	require.Equal(t, [][]string{
		{"20240401", "1"},
		{"20240402", "2"},
		{"20240403", "3"},
	}, f.response.Rows)
}

func TestPageFetcherKeepsRowsWithoutDimensions(t *testing.T) {
	f := newPageFetcher(RemoteRequest{Report: "totals", Limit: 10})
	f.accept(RemoteResponse{
		Headers:  []Header{{Name: "sessions", Kind: ColumnNumeric}},
		Rows:     [][]string{{"5"}, {"5"}},
		RowCount: 2,
	})
	require.Equal(t, stateComplete, f.state)
	require.Len(t, f.response.Rows, 2)
}

func TestPageFetcherRejectsChangedColumns(t *testing.T) {
	f := newPageFetcher(RemoteRequest{Report: "daily", Limit: 1})
	f.accept(page(3, []string{"20240401", "1"}))

	f.accept(RemoteResponse{
		Headers:  []Header{{Name: "date"}, {Name: "sessions", Kind: ColumnNumeric}},
		Rows:     [][]string{{"20240402", "2"}},
		RowCount: 3,
	})
	require.Equal(t, stateFailed, f.state)
	require.ErrorIs(t, f.err, errMalformedResponse)
	require.Equal(t, "failed", f.state.String())
}

func TestPageFetcherAlignsReorderedPages(t *testing.T) {
	first := []Header{
		{Name: "date", Kind: ColumnString},
		{Name: "country", Kind: ColumnString},
		{Name: "activeUsers", Kind: ColumnNumeric},
	}
	reordered := []Header{first[2], first[1], first[0]}

	f := newPageFetcher(RemoteRequest{Report: "by_country", Limit: 1})
	f.accept(RemoteResponse{Headers: first, Rows: [][]string{{"20240401", "US", "1"}}, RowCount: 3})
	f.accept(RemoteResponse{Headers: reordered, Rows: [][]string{{"2", "US"}}, RowCount: 3})
	require.Equal(t, stateAwaitingPage, f.state)
	f.accept(RemoteResponse{Headers: reordered, Rows: [][]string{{"3", "DE", "20240402"}}, RowCount: 3})

	require.Equal(t, stateComplete, f.state)
	require.Equal(t, [][]string{
		{"20240401", "US", "1"},
		{"2", "US"},
		{"20240402", "DE", "3"},
	}, f.response.Rows)

	table, err := Reconstruct(
		ReportSpec{Name: "by_country", Dimensions: []string{"date", "country"}, Metrics: []string{"activeUsers"}},
		f.response,
	)
	require.NoError(t, err)
	require.Equal(t, [][]any{
		{"20240401", "US", int64(1)},
		{"20240402", "DE", int64(3)},
	}, table.Rows)
	require.Len(t, table.Dropped, 1)
	require.Equal(t, 1, table.Dropped[0].Row)
}
