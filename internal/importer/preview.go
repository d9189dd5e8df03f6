package importer

import (
	"tessera/internal"
	"tessera/internal/identity"
)

// Preview computes the per-row report shown before executing an import. It
// runs the same normalization, duplicate lookup, and policy resolution as
// Run, but writes nothing.
func (s *Service) Preview(src internal.SourceFile, mapping internal.FieldMapping, policy internal.MergePolicy) ([]internal.PreviewRow, error) {
	cols, err := s.preflight(src, mapping)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.ListIdentitySnapshot()
	if err != nil {
		return nil, err
	}
	idx := identity.Build(snapshot)

	out := make([]internal.PreviewRow, 0, len(src.Rows))
	for i, row := range src.Rows {
		rec := NormalizeRow(s.cfg, i+1, row, cols)
		preview := internal.PreviewRow{
			LineNo:   rec.LineNo,
			FullName: rec.FullName,
			Phone:    rec.Phone,
			Errors:   rec.Errors,
		}

		if !rec.Valid() {
			preview.Status = internal.RowInvalid
			out = append(out, preview)
			continue
		}

		match := idx.Lookup(rec.Phone, rec.Email)
		action := Resolve(rec, match, policy, mapping, nil)
		preview.Action = string(action.Kind)
		if match.Matched {
			preview.Status = internal.RowDuplicate
			preview.MatchedBy = match.MatchedBy
		} else {
			preview.Status = internal.RowNew
		}
		out = append(out, preview)
	}

	return out, nil
}
