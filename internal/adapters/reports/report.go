// Package reports renders stand volume summaries and exports them to blob
// storage on a background worker.
package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"seem/internal/scaling"
	"seem/internal/stand"
)

// Format is an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat accepts json, csv or html in any case.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatCSV, FormatHTML:
		return f, nil
	}
	return "", fmt.Errorf("reports: unsupported format %q", raw)
}

func (f Format) contentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// StandReport is the standing volume of a stand plus its harvest volume for
// each requested period. Volumes are per hectare.
type StandReport struct {
	Stand       string                    `json:"stand"`
	Policy      string                    `json:"policy"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Standing    stand.StandVolume         `json:"standing"`
	Harvest     map[int]stand.StandVolume `json:"harvest,omitempty"`
}

// Row is one grade (or the total) of one section of a report.
type Row struct {
	Section  string  `json:"section"`
	Period   int     `json:"period,omitempty"`
	Grade    string  `json:"grade"`
	Cubic    float64 `json:"cubic_m3_per_ha"`
	Scribner float64 `json:"scribner_mbf_per_ha"`
	Logs     float64 `json:"logs_per_ha"`
}

// Rows flattens the report: standing grades then a total, followed by each
// harvest period in ascending order.
func (r StandReport) Rows() []Row {
	rows := sectionRows("standing", 0, r.Standing)
	for _, period := range slices.Sorted(maps.Keys(r.Harvest)) {
		rows = append(rows, sectionRows("harvest", period, r.Harvest[period])...)
	}
	return rows
}

func sectionRows(section string, period int, v stand.StandVolume) []Row {
	rows := make([]Row, 0, scaling.GradeCount+1)
	for _, g := range scaling.Grades {
		rows = append(rows, Row{Section: section, Period: period, Grade: g.String(), Cubic: v.Cubic[g], Scribner: v.Scribner[g], Logs: v.Logs[g]})
	}
	return append(rows, Row{Section: section, Period: period, Grade: "total", Cubic: v.TotalCubic(), Scribner: v.TotalScribner(), Logs: v.TotalLogs()})
}

var csvHeader = []string{"section", "period", "grade", "cubic_m3_per_ha", "scribner_mbf_per_ha", "logs_per_ha"}

// Render encodes the report in the given format.
func Render(report StandReport, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(struct {
			StandReport
			Rows []Row `json:"rows"`
		}{report, report.Rows()})
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		w := csv.NewWriter(buf)
		if err := w.Write(csvHeader); err != nil {
			return nil, err
		}
		for _, row := range report.Rows() {
			record := []string{row.Section, strconv.Itoa(row.Period), row.Grade,
				formatFloat(row.Cubic), formatFloat(row.Scribner), formatFloat(row.Logs)}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatHTML:
		buf := &bytes.Buffer{}
		if err := htmlReport.Execute(buf, struct {
			StandReport
			Rows []Row
		}{report, report.Rows()}); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("reports: unsupported format %q", format)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{"num": formatFloat}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Stand}} volume</title></head><body>
<h1>{{.Stand}}</h1>
<p>{{.Policy}} logs, generated {{.GeneratedAt.Format "2006-01-02T15:04:05Z07:00"}}</p>
<table>
<thead><tr><th>section</th><th>period</th><th>grade</th><th>m³/ha</th><th>MBF/ha</th><th>logs/ha</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Section}}</td><td>{{if .Period}}{{.Period}}{{end}}</td><td>{{.Grade}}</td><td>{{num .Cubic}}</td><td>{{num .Scribner}}</td><td>{{num .Logs}}</td></tr>
{{- end}}
</tbody></table></body></html>
`))
