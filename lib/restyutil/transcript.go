package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// RecordTranscripts writes the full exchange of every completed request made
// by the client to output, credentials redacted. Ids are sequential and
// carry the last path segment, ex. `0001-properties_123:runReport`.
func RecordTranscripts(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(&counter, 1)
		output.Write(transcriptId(n, res.Request.URL), formatTranscript(res))
		return nil
	})
}

func transcriptId(n uint64, url string) string {
	url = strings.SplitN(url, "?", 2)[0]
	segments := strings.Split(strings.TrimSuffix(url, "/"), "/")
	last := segments[len(segments)-1]
	if len(segments) >= 2 {
		last = segments[len(segments)-2] + "_" + last
	}
	return fmt.Sprintf("%04d-%s", n, last)
}
