package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Export serialises the analytics of a period. JSON carries the overview with
// the user and quiz sections; CSV is a fixed summary of headline metrics and
// drops everything nested.
func (s *Service) Export(ctx context.Context, period, format string) (*Export, error) {
	defer observe(s.metrics, "export")()

	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	rg := s.resolver.Resolve(period)
	overview, users, quizzes, err := s.compose(ctx, period, rg, format == FormatJSON)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(ExportDocument{
			Overview: overview,
			Users:    users,
			Quizzes:  quizzes,
		}, "", "  ")
	case FormatCSV:
		data, err = summaryCSV(overview.Overview)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s export: %w", format, err)
	}

	export := &Export{
		Data:        data,
		Format:      format,
		ContentType: contentType(format),
		Filename:    fmt.Sprintf("analytics-%s-%s.%s", period, rg.End, format),
	}

	s.logger.Info("Analytics exported",
		zap.String("period", period),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
	)

	return export, nil
}

func summaryCSV(totals OverviewTotals) ([]byte, error) {
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Users", strconv.Itoa(totals.TotalUsers)},
		{"Active Users", strconv.Itoa(totals.ActiveUsers)},
		{"New Users", strconv.Itoa(totals.NewUsers)},
		{"Retention Rate", strconv.FormatFloat(totals.RetentionRate, 'f', 2, 64)},
		{"Total Events", strconv.FormatInt(totals.TotalEvents, 10)},
		{"Total Enrollments", strconv.FormatInt(totals.TotalEnrollments, 10)},
		{"Quiz Completions", strconv.FormatInt(totals.QuizCompletions, 10)},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func contentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}
