package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"tessera/internal"
	"tessera/internal/util"
)

// ErrStructural marks a file-level failure detected before any row is
// processed: no header, no data rows, or no usable phone/name columns.
var ErrStructural = errors.New("unusable source file")

func structuralErr(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrStructural)...)
}

// ParseSourceFile reads a guest export from disk, dispatching on extension.
func ParseSourceFile(path string) (internal.SourceFile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.SourceFile{}, err
	}
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return ParseCSV(bytes.NewReader(blob), name)
	case ".xlsx", ".xls":
		return ParseXLSX(blob, name)
	case ".html", ".htm":
		return ParseHTMLTable(string(blob), name)
	case ".eml":
		return ParseEML(blob)
	default:
		return internal.SourceFile{}, fmt.Errorf("unsupported source file type: %s", name)
	}
}

// ParseCSV reads a delimited export. Quoted cells with embedded delimiters
// and doubled quotes are handled by encoding/csv; the delimiter is sniffed
// from the header line (regional exports often use semicolons).
func ParseCSV(r io.Reader, name string) (internal.SourceFile, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return internal.SourceFile{}, err
	}

	reader := csv.NewReader(bytes.NewReader(blob))
	reader.Comma = sniffDelimiter(blob)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return internal.SourceFile{}, fmt.Errorf("parse csv %s: %w", name, err)
	}
	return fromRecords(records, name)
}

func sniffDelimiter(blob []byte) rune {
	line := blob
	if i := bytes.IndexByte(blob, '\n'); i >= 0 {
		line = blob[:i]
	}
	switch {
	case bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")):
		return ';'
	case bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")):
		return '\t'
	default:
		return ','
	}
}

// ParseXLSX reads the first sheet of a workbook; the first row is the header.
func ParseXLSX(blob []byte, name string) (internal.SourceFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return internal.SourceFile{}, fmt.Errorf("open xlsx %s: %w", name, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return internal.SourceFile{}, fmt.Errorf("read xlsx %s: %w", name, err)
	}
	return fromRecords(rows, name)
}

// ParseHTMLTable reads the first table that has a header row plus data rows,
// for exports copied out of web dashboards.
func ParseHTMLTable(html string, name string) (internal.SourceFile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return internal.SourceFile{}, err
	}

	var records [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			records = append(records, cells)
		})
		return false
	})

	return fromRecords(records, name)
}

// ParseEML extracts the first CSV or XLSX attachment of a mailed export and
// feeds it to the matching parser.
func ParseEML(raw []byte) (internal.SourceFile, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.SourceFile{}, err
	}

	for _, att := range env.Attachments {
		lower := strings.ToLower(strings.TrimSpace(att.FileName))
		switch {
		case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".txt"):
			return ParseCSV(bytes.NewReader(att.Content), att.FileName)
		case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
			return ParseXLSX(att.Content, att.FileName)
		}
	}

	return internal.SourceFile{}, structuralErr("no csv or xlsx attachment in message")
}

func fromRecords(records [][]string, name string) (internal.SourceFile, error) {
	if len(records) == 0 {
		return internal.SourceFile{}, structuralErr("%s has no header row", name)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if emptyRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}

	return internal.SourceFile{Name: name, Headers: headers, Rows: rows}, nil
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
