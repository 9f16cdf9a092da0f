package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	FormatMetrics  = "metrics"
	FormatDailyLog = "daily-log"
)

// Source supplies the metrics of one calendar day.
// Implementations return *InputError when the day is unavailable or malformed.
type Source interface {
	Fetch(ctx context.Context, date string) (DayMetrics, error)
}

// Parse decodes data according to format.
func Parse(format string, data []byte) (DayMetrics, error) {
	switch format {
	case FormatDailyLog:
		return FromDailyLog(data)
	case FormatMetrics, "":
		return Decode(data)
	default:
		return DayMetrics{}, fmt.Errorf("unsupported metrics format %q", format)
	}
}

// DirSource reads <dir>/<date>.json files.
type DirSource struct {
	dir    string
	format string
}

// Fetch loads and decodes the file of the given date.
// The decoded record must carry the requested date.
func (ds *DirSource) Fetch(ctx context.Context, date string) (DayMetrics, error) {
	if err := ctx.Err(); err != nil {
		return DayMetrics{}, err
	}

	if _, err := time.Parse(DateLayout, date); err != nil {
		return DayMetrics{}, NewInputError(date, "date must be YYYY-MM-DD")
	}

	path := filepath.Join(ds.dir, date+".json")
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DayMetrics{}, NewInputError(date, "no metrics file %s", path)
		}
		return DayMetrics{}, fmt.Errorf("read %s: %w", path, err)
	}

	m, err := Parse(ds.format, content)
	if err != nil {
		return DayMetrics{}, err
	}
	if m.Date != date {
		return DayMetrics{}, NewInputError(date, "file %s holds date %q", path, m.Date)
	}
	return m, nil
}

// NewDirSource creates a DirSource over dir using the given document format.
func NewDirSource(dir, format string) *DirSource {
	return &DirSource{dir: dir, format: format}
}

// HTTPSource asks the upstream extractor service for a day's metrics.
// Request: GET <url>/days/<date>. The response body is a document of the configured format.
type HTTPSource struct {
	url    string       // base URL of the extractor service
	client *http.Client // HTTP client with timeout
	format string       // response document format
}

// Fetch requests the metrics of date.
// 404 is reported as *InputError (input unavailable); other non-200 statuses and
// transport failures are plain errors.
func (hs *HTTPSource) Fetch(ctx context.Context, date string) (DayMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.url+"/days/"+date, nil)
	if err != nil {
		return DayMetrics{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hs.client.Do(req)
	if err != nil {
		return DayMetrics{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return DayMetrics{}, NewInputError(date, "extractor has no metrics")
	default:
		return DayMetrics{}, fmt.Errorf("extractor response error code=%d status=%s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DayMetrics{}, err
	}

	m, err := Parse(hs.format, body)
	if err != nil {
		return DayMetrics{}, err
	}
	if m.Date != date {
		return DayMetrics{}, NewInputError(date, "extractor returned date %q", m.Date)
	}
	return m, nil
}

// NewHTTPSource creates an HTTPSource.
// Parameters:
//   - url: base address of the extractor, e.g. "http://extractor:8080"
//   - timeout: per-request timeout
//   - format: response document format
func NewHTTPSource(url string, timeout time.Duration, format string) *HTTPSource {
	return &HTTPSource{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
		format: format,
	}
}
