package reportbatch

import (
	"fmt"
	"regexp"
)

// MaxPageSize is the largest number of rows the service returns in one page.
const MaxPageSize int64 = 250_000

var propertyPattern = regexp.MustCompile(`^(properties/)?[0-9]+$`)

// DateRange uses the service's date syntax, `YYYY-MM-DD`, `today`, `yesterday` or `NdaysAgo`.
type DateRange struct {
	StartDate string
	EndDate   string
}

// DefaultDateRange is used when RequestOptions does not set one.
var DefaultDateRange = DateRange{StartDate: "2024-04-01", EndDate: "2024-04-30"}

var datePattern = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2}|today|yesterday|[0-9]+daysAgo)$`)

// RequestOptions are shared by every request of a batch. The zero value asks
// for DefaultDateRange in pages of MaxPageSize.
type RequestOptions struct {
	DateRange DateRange
	// Limit is the page size, 0 means MaxPageSize.
	Limit int64
}

// RemoteRequest is one report request bound to a property. Follow-up pages
// are requested through copies made with WithOffset.
type RemoteRequest struct {
	Report     string
	Property   string
	Dimensions []string
	Metrics    []string
	DateRange  DateRange
	Offset     int64
	Limit      int64
	// OrderBy lists the dimensions rows are sorted by (ascending), it keeps
	// the row order stable across pages.
	OrderBy []string
}

// WithOffset returns a copy of the request starting at the given row.
func (r RemoteRequest) WithOffset(offset int64) RemoteRequest {
	r.Offset = offset
	return r
}

// ValidateProperty checks the identifier is `123` or `properties/123`.
func ValidateProperty(property string) error {
	if property == "" {
		return &ConfigError{Field: "property", Reason: "property identifier is empty"}
	}
	if !propertyPattern.MatchString(property) {
		return &ConfigError{
			Field:  "property",
			Reason: fmt.Sprintf("%q is not a property identifier, expected digits or properties/<digits>", property),
		}
	}
	return nil
}

func (o RequestOptions) resolve() (RequestOptions, error) {
	if o.DateRange == (DateRange{}) {
		o.DateRange = DefaultDateRange
	}
	if !datePattern.MatchString(o.DateRange.StartDate) {
		return o, &ConfigError{Field: "start_date", Reason: fmt.Sprintf("%q is not a valid date", o.DateRange.StartDate)}
	}
	if !datePattern.MatchString(o.DateRange.EndDate) {
		return o, &ConfigError{Field: "end_date", Reason: fmt.Sprintf("%q is not a valid date", o.DateRange.EndDate)}
	}

	if o.Limit == 0 {
		o.Limit = MaxPageSize
	}
	if o.Limit < 1 || o.Limit > MaxPageSize {
		return o, &ConfigError{
			Field:  "limit",
			Reason: fmt.Sprintf("%d is outside of 1..%d", o.Limit, MaxPageSize),
		}
	}
	return o, nil
}

// BuildRequest turns a report into the request sent to the service, the
// property is passed through unmodified. It never touches the network.
func BuildRequest(spec ReportSpec, property string, opts RequestOptions) (RemoteRequest, error) {
	err := ValidateProperty(property)
	if err != nil {
		return RemoteRequest{}, err
	}
	err = validateSpec(spec)
	if err != nil {
		return RemoteRequest{}, err
	}
	opts, err = opts.resolve()
	if err != nil {
		return RemoteRequest{}, err
	}

	return RemoteRequest{
		Report:     spec.Name,
		Property:   property,
		Dimensions: append([]string(nil), spec.Dimensions...),
		Metrics:    append([]string(nil), spec.Metrics...),
		DateRange:  opts.DateRange,
		Limit:      opts.Limit,
		OrderBy:    append([]string(nil), spec.Dimensions...),
	}, nil
}

// BuildRequests builds one request per report in configuration order.
func BuildRequests(cfg BatchConfig, property string, opts RequestOptions) ([]RemoteRequest, error) {
	reports := cfg.Reports()
	out := make([]RemoteRequest, len(reports))
	for i, spec := range reports {
		req, err := BuildRequest(spec, property, opts)
		if err != nil {
			return nil, err
		}
		out[i] = req
	}
	return out, nil
}
