package analyticsdata

// Wire types for the GA4 Data API v1beta, only the fields this client uses.
// https://developers.google.com/analytics/devguides/reporting/data/v1/rest/v1beta/properties/runReport

type Dimension struct {
	Name string `json:"name"`
}

type Metric struct {
	Name string `json:"name"`
}

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type DimensionOrderBy struct {
	DimensionName string `json:"dimensionName"`
}

type OrderBy struct {
	Dimension *DimensionOrderBy `json:"dimension,omitempty"`
	Desc      bool              `json:"desc,omitempty"`
}

type RunReportRequest struct {
	Dimensions []Dimension `json:"dimensions,omitempty"`
	Metrics    []Metric    `json:"metrics,omitempty"`
	DateRanges []DateRange `json:"dateRanges,omitempty"`
	Offset     int64       `json:"offset,omitempty"`
	Limit      int64       `json:"limit,omitempty"`
	OrderBys   []OrderBy   `json:"orderBys,omitempty"`
}

type BatchRunReportsRequest struct {
	Requests []RunReportRequest `json:"requests"`
}

type DimensionHeader struct {
	Name string `json:"name"`
}

// MetricType values as declared by the service, ex. TYPE_INTEGER, TYPE_FLOAT, TYPE_SECONDS.
type MetricType string

const (
	MetricTypeUnspecified MetricType = "METRIC_TYPE_UNSPECIFIED"
	MetricTypeInteger     MetricType = "TYPE_INTEGER"
	MetricTypeFloat       MetricType = "TYPE_FLOAT"
)

type MetricHeader struct {
	Name string     `json:"name"`
	Type MetricType `json:"type"`
}

type Value struct {
	Value string `json:"value"`
}

type Row struct {
	DimensionValues []Value `json:"dimensionValues"`
	MetricValues    []Value `json:"metricValues"`
}

type RunReportResponse struct {
	DimensionHeaders []DimensionHeader `json:"dimensionHeaders"`
	MetricHeaders    []MetricHeader    `json:"metricHeaders"`
	Rows             []Row             `json:"rows"`
	RowCount         int64             `json:"rowCount"`
	Kind             string            `json:"kind"`
}

type BatchRunReportsResponse struct {
	Reports []RunReportResponse `json:"reports"`
	Kind    string              `json:"kind"`
}
