package importer

import (
	"strings"

	"tessera/internal"
	"tessera/internal/config"
	"tessera/internal/util"
)

const (
	CityDoha   = "doha"
	CityRiyadh = "riyadh"
)

var riyadhTokens = []string{"riyadh", "saudi", "ksa", "الرياض"}

// Columns resolves a FieldMapping against the header row once, so row
// normalization is index lookups only. A key maps to -1 when its column is
// unmapped or missing from the file.
type Columns map[internal.CanonicalField]int

func ResolveColumns(headers []string, mapping internal.FieldMapping) Columns {
	cols := Columns{}
	for key, source := range mapping {
		cols[key] = -1
		for i, header := range headers {
			if strings.EqualFold(strings.TrimSpace(header), strings.TrimSpace(source)) {
				cols[key] = i
				break
			}
		}
	}
	return cols
}

func (c Columns) cell(row []string, key internal.CanonicalField) string {
	i, ok := c[key]
	if !ok || i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// NormalizeRow turns one raw source row into a CandidateRecord. Every field
// is parsed independently; an unmapped field keeps its default. Only name and
// phone problems make the row invalid, everything else is best-effort.
func NormalizeRow(cfg config.Config, lineNo int, row []string, cols Columns) internal.CandidateRecord {
	rec := internal.CandidateRecord{LineNo: lineNo, City: CityDoha}

	salutation := cols.cell(row, internal.FieldSalutation)
	first := cols.cell(row, internal.FieldFirstName)
	last := cols.cell(row, internal.FieldLastName)
	rec.Salutation = salutation
	if first == "" && last == "" {
		rec.Errors = append(rec.Errors, internal.CodeMissingName)
	} else {
		rec.FullName = util.CollapseSpaces(salutation + " " + first + " " + last)
	}

	rec.Phone = util.NormalizePhone(cols.cell(row, internal.FieldPhone))
	switch {
	case rec.Phone == "":
		rec.Errors = append(rec.Errors, internal.CodeMissingPhone)
	case len(rec.Phone) < cfg.MinPhoneLen:
		rec.Errors = append(rec.Errors, internal.CodeInvalidPhone)
	}

	rec.Email = util.NormalizeEmail(cols.cell(row, internal.FieldEmail))
	rec.TotalVisits = util.ParseVisits(cols.cell(row, internal.FieldTotalVisits))
	rec.IsVIP = util.Truthy(cols.cell(row, internal.FieldIsVIP))
	rec.Birthday = util.ParseDate(cols.cell(row, internal.FieldBirthday))
	rec.LastVisitAt = util.ParseDate(cols.cell(row, internal.FieldLastVisitDate))
	rec.Notes = util.Truncate(cols.cell(row, internal.FieldNotes), cfg.NotesMaxLen)
	rec.Tags = cols.cell(row, internal.FieldTags)

	rec.LocationText = cols.cell(row, internal.FieldLastLocation)
	if util.ContainsAnyFold(rec.LocationText, riyadhTokens) {
		rec.City = CityRiyadh
	}

	return rec
}
