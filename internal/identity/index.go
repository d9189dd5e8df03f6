package identity

import (
	"tessera/internal"
	"tessera/internal/util"
)

// Index is a point-in-time duplicate lookup built once per batch from the
// guest store snapshot. It is not refreshed mid-batch: guests created during
// the same run are invisible to later rows.
type Index struct {
	ByPhone map[string]int64
	ByEmail map[string]int64
}

func Build(snapshot []internal.IdentityRow) *Index {
	idx := &Index{
		ByPhone: make(map[string]int64, len(snapshot)),
		ByEmail: make(map[string]int64, len(snapshot)),
	}

	for _, row := range snapshot {
		phone := util.NormalizePhone(row.Phone)
		if phone != "" {
			if _, ok := idx.ByPhone[phone]; !ok {
				idx.ByPhone[phone] = row.ID
			}
		}
		email := util.NormalizeEmail(row.Email)
		if email != "" {
			if _, ok := idx.ByEmail[email]; !ok {
				idx.ByEmail[email] = row.ID
			}
		}
	}

	return idx
}

// Lookup checks the phone map first, then the email map. Both arguments are
// expected in normalized form (candidate records already are).
func (idx *Index) Lookup(phone, email string) internal.MatchResult {
	if phone != "" {
		if id, ok := idx.ByPhone[phone]; ok {
			return internal.MatchResult{Matched: true, ExistingID: id, MatchedBy: internal.MatchedByPhone}
		}
	}
	if email != "" {
		if id, ok := idx.ByEmail[email]; ok {
			return internal.MatchResult{Matched: true, ExistingID: id, MatchedBy: internal.MatchedByEmail}
		}
	}
	return internal.MatchResult{}
}
