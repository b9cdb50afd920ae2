package reportbatch

import (
	"fmt"
	"strings"
)

type fetchState int

const (
	stateRequesting fetchState = iota
	stateAwaitingPage
	stateComplete
	stateFailed
)

func (s fetchState) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case stateAwaitingPage:
		return "awaiting-page"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("fetchState(%d)", int(s))
}

// pageFetcher accumulates every page of a single report.
//
//	requesting --accept--> awaiting-page --accept--> ... --> complete
//	     \________________________\______fail______________> failed
//
// It performs no I/O, the executor feeds it pages.
type pageFetcher struct {
	state fetchState
	req   RemoteRequest

	response RemoteResponse
	// position of each header of the first page, by name
	columns map[string]int
	// positions of the dimension columns, rows are unique by these values
	dimensions []int
	seen       map[string]bool

	pages      int
	received   int64
	duplicates int
	err        error
}

func newPageFetcher(req RemoteRequest) *pageFetcher {
	return &pageFetcher{
		state: stateRequesting,
		req:   req,
		seen:  map[string]bool{},
	}
}

func (f *pageFetcher) done() bool {
	return f.state == stateComplete || f.state == stateFailed
}

// next returns the request for the page the fetcher is waiting on.
func (f *pageFetcher) next() RemoteRequest {
	if f.state == stateAwaitingPage {
		return f.req.WithOffset(f.req.Offset + f.received)
	}
	return f.req
}

func (f *pageFetcher) fail(err error) {
	f.state = stateFailed
	f.err = err
}

func (f *pageFetcher) rowKey(row []string) string {
	values := make([]string, len(f.dimensions))
	for i, idx := range f.dimensions {
		values[i] = row[idx]
	}
	return strings.Join(values, "\x00")
}

// align reorders the cells of a later page onto the first page's header order.
func (f *pageFetcher) align(page RemoteResponse) ([][]string, error) {
	if len(page.Headers) != len(f.response.Headers) {
		return nil, fmt.Errorf(
			"%w: page at offset %d has %d columns, first page had %d",
			errMalformedResponse, f.next().Offset, len(page.Headers), len(f.response.Headers),
		)
	}

	mapping := make([]int, len(page.Headers))
	identity := true
	for i, h := range page.Headers {
		target, ok := f.columns[h.Name]
		if !ok {
			return nil, fmt.Errorf(
				"%w: page at offset %d returned unexpected column %q",
				errMalformedResponse, f.next().Offset, h.Name,
			)
		}
		mapping[i] = target
		identity = identity && target == i
	}
	if identity {
		return page.Rows, nil
	}

	out := make([][]string, len(page.Rows))
	for r, row := range page.Rows {
		// ragged rows are left for Reconstruct to drop
		if len(row) != len(mapping) {
			out[r] = row
			continue
		}
		aligned := make([]string, len(f.response.Headers))
		for i, cell := range row {
			aligned[mapping[i]] = cell
		}
		out[r] = aligned
	}
	return out, nil
}

func (f *pageFetcher) accept(page RemoteResponse) {
	if f.done() {
		return
	}

	rows := page.Rows
	if f.pages == 0 {
		f.response = RemoteResponse{
			Headers:  page.Headers,
			RowCount: page.RowCount,
			Rows:     make([][]string, 0, len(page.Rows)),
		}
		f.columns = make(map[string]int, len(page.Headers))
		for i, h := range page.Headers {
			f.columns[h.Name] = i
			if h.Kind == ColumnString {
				f.dimensions = append(f.dimensions, i)
			}
		}
	} else {
		aligned, err := f.align(page)
		if err != nil {
			f.fail(err)
			return
		}
		rows = aligned
	}

	f.pages++
	f.received += int64(len(page.Rows))

	for _, row := range rows {
		if len(f.dimensions) > 0 && len(row) == len(f.response.Headers) {
			key := f.rowKey(row)
			if f.seen[key] {
				f.duplicates++
				continue
			}
			f.seen[key] = true
		}
		f.response.Rows = append(f.response.Rows, row)
	}

	more := len(page.Rows) > 0 &&
		int64(len(page.Rows)) >= f.req.Limit &&
		f.req.Offset+f.received < page.RowCount
	if more {
		f.state = stateAwaitingPage
		return
	}
	f.state = stateComplete
}
