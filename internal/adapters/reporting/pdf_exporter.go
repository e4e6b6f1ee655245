package reporting

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// PDFExporter renders ledger snapshots as PDF reports
type PDFExporter struct {
	Title string
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{Title: "Wireless Scan Snapshot"}
}

type column struct {
	title string
	width float64
	align string
}

var tagColumns = []column{
	{"Address", 38, "L"},
	{"Kind", 34, "L"},
	{"RSSI", 16, "R"},
	{"Trend", 20, "C"},
	{"Distance", 22, "R"},
	{"Seen", 14, "R"},
	{"Last Seen", 26, "L"},
}

var networkColumns = []column{
	{"SSID", 42, "L"},
	{"BSSID", 36, "L"},
	{"Security", 18, "L"},
	{"Signal", 16, "R"},
	{"Quality", 20, "L"},
	{"Band", 16, "L"},
	{"Ch", 12, "R"},
}

// WritePDF renders rec to w. Its signature matches the file sink encoders.
func (e *PDFExporter) WritePDF(w io.Writer, rec domain.SnapshotRecord) error {
	data, err := e.ExportSnapshot(rec)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ExportSnapshot generates a PDF document for one snapshot record
func (e *PDFExporter) ExportSnapshot(rec domain.SnapshotRecord) ([]byte, error) {
	if !rec.Kind.IsValid() {
		return nil, fmt.Errorf("unknown snapshot kind %q", rec.Kind)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	e.addHeader(pdf, rec)
	switch rec.Kind {
	case domain.SnapshotTags:
		e.addTagSummary(pdf, rec.Tags)
		e.addTable(pdf, tagColumns, tagRows(rec.Tags), nil)
	case domain.SnapshotNetworks:
		e.addNetworkSummary(pdf, rec.Networks)
		e.addTable(pdf, networkColumns, networkRows(rec.Networks), networkColors(rec.Networks))
	}
	e.addFooter(pdf, rec)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, rec domain.SnapshotRecord) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 12, e.Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Captured: %s", rec.CapturedAt.Format("2006-01-02 15:04:05 MST")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Snapshot: %s (%s)", rec.ID, rec.Kind), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, title string, stats [][2]string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	// Two columns of label/value pairs
	for i, s := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, s[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 102, 204)
		pdf.CellFormat(30, 7, s[1], "", 0, "R", false, 0, "")
		if i%2 == 1 || i == len(stats)-1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addTagSummary(pdf *gofpdf.Fpdf, tags []domain.TrackedTag) {
	airtags, rising := 0, 0
	for _, t := range tags {
		if t.Kind.IsAirTag() {
			airtags++
		}
		if t.Trend == domain.TrendRising {
			rising++
		}
	}
	e.addSummary(pdf, "Tag Overview", [][2]string{
		{"Tracked tags", fmt.Sprintf("%d", len(tags))},
		{"AirTags", fmt.Sprintf("%d", airtags)},
		{"Approaching", fmt.Sprintf("%d", rising)},
	})
}

func (e *PDFExporter) addNetworkSummary(pdf *gofpdf.Fpdf, networks []domain.WifiNetwork) {
	open, hidden := 0, 0
	for _, n := range networks {
		if n.IsOpen() {
			open++
		}
		if n.IsHidden() {
			hidden++
		}
	}
	e.addSummary(pdf, "Network Overview", [][2]string{
		{"Access points", fmt.Sprintf("%d", len(networks))},
		{"Open", fmt.Sprintf("%d", open)},
		{"Hidden", fmt.Sprintf("%d", hidden)},
	})
}

// addTable draws a header row followed by zebra-striped data rows.
// colors, when set, tints the last-but-two column per row.
func (e *PDFExporter) addTable(pdf *gofpdf.Fpdf, cols []column, rows [][]string, colors [][3]int) {
	if len(rows) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "Nothing in range", "", 1, "L", false, 0, "")
		return
	}

	header := func() {
		pdf.SetFillColor(240, 240, 240)
		pdf.SetFont("Arial", "B", 9)
		pdf.SetTextColor(0, 0, 0)
		for _, c := range cols {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	pdf.SetFont("Arial", "", 9)
	for i, row := range rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
			pdf.SetFont("Arial", "", 9)
		}
		fill := i%2 == 1
		pdf.SetFillColor(250, 250, 250)
		for j, c := range cols {
			pdf.SetTextColor(60, 60, 60)
			if colors != nil && j == len(cols)-3 {
				pdf.SetTextColor(colors[i][0], colors[i][1], colors[i][2])
			}
			pdf.CellFormat(c.width, 6, row[j], "1", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, rec domain.SnapshotRecord) {
	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 5, fmt.Sprintf("%d entries. Distances are path-loss estimates.", rec.Len()), "", 1, "L", false, 0, "")
}

func tagRows(tags []domain.TrackedTag) [][]string {
	rows := make([][]string, len(tags))
	for i, t := range tags {
		rows[i] = []string{
			t.Address,
			string(t.Kind),
			fmt.Sprintf("%d", t.RSSI),
			string(t.Trend),
			fmt.Sprintf("%.1f m", t.Distance),
			fmt.Sprintf("%d", t.Count),
			t.LastSeen.Format("15:04:05"),
		}
	}
	return rows
}

func networkRows(networks []domain.WifiNetwork) [][]string {
	rows := make([][]string, len(networks))
	for i, n := range networks {
		ssid := n.SSID
		if n.IsHidden() {
			ssid = "<hidden>"
		}
		rows[i] = []string{
			ssid,
			n.BSSID,
			string(n.Security),
			fmt.Sprintf("%d%%", n.Signal),
			string(n.Quality),
			string(n.Band),
			fmt.Sprintf("%d", n.Channel),
		}
	}
	return rows
}

func networkColors(networks []domain.WifiNetwork) [][3]int {
	out := make([][3]int, len(networks))
	for i, n := range networks {
		out[i] = qualityColor(n.Quality)
	}
	return out
}

// qualityColor returns RGB color based on quality tier
func qualityColor(q domain.QualityTier) [3]int {
	switch q {
	case domain.QualityExcellent:
		return [3]int{52, 199, 89} // Green
	case domain.QualityGood:
		return [3]int{0, 102, 204} // Blue
	case domain.QualityFair:
		return [3]int{255, 149, 0} // Orange
	default:
		return [3]int{220, 53, 69} // Red
	}
}
