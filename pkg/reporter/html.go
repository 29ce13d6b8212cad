package reporter

import (
	"fmt"
	"html/template"
	"io"
	"strings"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Table Compression Report - {{.Database}}</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f7fa; color: #333; padding: 20px; }
        .container { max-width: 1400px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #c74634 0%, #7a2a1f 100%); color: white; padding: 40px; }
        .cards { display: flex; gap: 20px; padding: 30px 40px; }
        .card { flex: 1; background: #f8f9fa; border-radius: 6px; padding: 20px; }
        .card .value { font-size: 2em; font-weight: bold; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 10px 14px; border-bottom: 1px solid #e8eaed; text-align: left; }
        th { background: #f1f3f4; }
        .section { padding: 20px 40px; }
        .badge { padding: 3px 8px; border-radius: 10px; font-size: 0.85em; font-weight: 600; }
        .level-high { background: #fce8e6; color: #c5221f; }
        .level-medium { background: #fef7e0; color: #b06000; }
        .level-low, .level-none { background: #e6f4ea; color: #137333; }
        .footer { padding: 20px 40px; color: #777; font-size: 0.9em; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>Table Compression Report</h1>
        <p><strong>Database:</strong> {{.Database}}</p>
        <p><strong>Generated:</strong> {{.GeneratedAt.Format "January 2, 2006 15:04:05 MST"}}</p>
    </div>
    <div class="cards">
        <div class="card"><div>Tables Analyzed</div><div class="value">{{.TableCount}}</div></div>
        <div class="card"><div>Opportunities</div><div class="value">{{.ActionableCount}}</div></div>
        <div class="card"><div>Current Size</div><div class="value">{{bytes .CurrentBytes}}</div></div>
        <div class="card"><div>Expected Savings</div><div class="value">{{bytes .SavedBytes}}</div></div>
    </div>
    {{if .SchemeStats}}
    <div class="section">
        <h2>By Scheme</h2>
        <table>
            <thead><tr><th>Scheme</th><th>Tables</th><th>Current</th><th>Saved</th><th>Savings</th></tr></thead>
            <tbody>
            {{range .SchemeStats}}
                <tr><td>{{.Scheme}}</td><td>{{.Tables}}</td><td>{{bytes .CurrentBytes}}</td><td>{{bytes .SavedBytes}}</td><td>{{printf "%.1f" .SavedPercent}}%</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}
    <div class="section">
        <h2>Recommendations</h2>
        <table>
            <thead><tr><th>Table</th><th>Current</th><th>Recommended</th><th>Workload</th><th>Size</th><th>Savings</th><th>Priority</th><th>Risk</th></tr></thead>
            <tbody>
            {{range .Recommendations}}
                <tr>
                    <td><strong>{{.Schema}}.{{.Table}}</strong></td>
                    <td>{{.CurrentScheme}}</td>
                    <td>{{.Scheme}}</td>
                    <td>{{.Workload.Type}}</td>
                    <td>{{bytes .Savings.CurrentBytes}}</td>
                    <td>{{bytes .Savings.SavedBytes}} ({{printf "%.1f" .Savings.Percent}}%)</td>
                    <td><span class="badge level-{{lower .Priority}}">{{.Priority}}</span></td>
                    <td><span class="badge level-{{lower .Risk.Level}}">{{.Risk.Level}}</span></td>
                </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    <div class="footer">Generated by <strong>table-compression-advisor</strong></div>
</div>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": func(v any) string { return strings.ToLower(fmt.Sprintf("%v", v)) },
	"bytes": FormatBytes,
}).Parse(htmlTemplate))

// GenerateHTML creates an HTML report
func GenerateHTML(report *Report, writer io.Writer) error {
	if err := reportTemplate.Execute(writer, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}
