package cmd

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/audit"
	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/rules"
)

const markdownTemplatePath = "templates/report.md"

//go:embed templates/report.md
var reportTemplateFS embed.FS

var markdownTemplateFuncs = template.FuncMap{
	"formatTime": formatShortTimestamp,
}

var markdownReportTemplate = template.Must(
	template.New("report.md").Funcs(markdownTemplateFuncs).ParseFS(reportTemplateFS, markdownTemplatePath),
)

// TemplateData feeds the markdown and PDF renderers.
type TemplateData struct {
	Report    *audit.Report
	PassCount int
	FailCount int
	WarnCount int
	InfoCount int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a saved audit report (markdown or PDF)",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a rendered report from a saved report JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if input == "" {
			return fmt.Errorf("--input is required")
		}
		format = strings.ToLower(format)
		if format != "md" && format != "pdf" {
			return fmt.Errorf("invalid format: %s (must be md or pdf)", format)
		}

		report, err := loadSavedReport(input)
		if err != nil {
			return err
		}
		data := buildTemplateData(report)

		var content []byte
		switch format {
		case "md":
			content, err = renderMarkdownReport(data)
		case "pdf":
			content, err = generatePDFReportBytes(data)
		}
		if err != nil {
			return err
		}

		if output == "" {
			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			output = filepath.Join(resultsDir, base+"."+format)
		}
		if err := os.WriteFile(output, content, 0o600); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s report written to %s\n", colorInfo("→"), output)
		return nil
	},
}

func init() {
	reportGenerateCmd.Flags().String("input", "", "Path to a saved report JSON (from audit --save)")
	reportGenerateCmd.Flags().String("format", "md", "Output format (md or pdf)")
	reportGenerateCmd.Flags().String("output", "", "Output path (defaults into the results directory)")
	reportCmd.AddCommand(reportGenerateCmd)
}

func loadSavedReport(path string) (*audit.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var report audit.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", path, err)
	}
	return &report, nil
}

func buildTemplateData(report *audit.Report) TemplateData {
	data := TemplateData{Report: report}
	for _, v := range report.Verdicts {
		switch v.Status {
		case rules.StatusPass:
			data.PassCount++
		case rules.StatusFail:
			data.FailCount++
		case rules.StatusWarn:
			data.WarnCount++
		case rules.StatusInfo:
			data.InfoCount++
		}
	}
	return data
}

func renderMarkdownReport(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownReportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func generatePDFReportBytes(data TemplateData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "SSH Configuration Audit Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Host: %s:%d", data.Report.Host, data.Report.Port), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("User: %s", data.Report.User), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", formatShortTimestamp(data.Report.GeneratedAt)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Overall status: %s", data.Report.Status), "", 1, "", false, 0, "")
	pdf.Ln(5)

	// Summary section
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Pass: %d | Fail: %d | Warn: %d | Info: %d",
		data.PassCount, data.FailCount, data.WarnCount, data.InfoCount), "", 1, "", false, 0, "")
	pdf.Ln(5)

	// Verdicts section
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Verdicts", "", 1, "", false, 0, "")
	pdf.Ln(2)

	for _, v := range data.Report.Verdicts {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 7, fmt.Sprintf("%s - %s", v.RuleID, v.Status), "", 1, "", true, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		if v.Observed != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("Observed: %s", v.Observed), "", 1, "", false, 0, "")
		}
		pdf.MultiCell(0, 5, v.Message, "", "", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
