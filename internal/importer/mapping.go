package importer

import (
	"strings"

	"tessera/internal"
)

// keyPriority is the fixed iteration order for auto-detection. Ambiguous
// headers resolve to the earliest matching key, not the best match; the
// operator edits the proposal when that is wrong.
var keyPriority = []internal.CanonicalField{
	internal.FieldPhone,
	internal.FieldEmail,
	internal.FieldFirstName,
	internal.FieldLastName,
	internal.FieldSalutation,
	internal.FieldBirthday,
	internal.FieldLastVisitDate,
	internal.FieldLastLocation,
	internal.FieldTotalVisits,
	internal.FieldIsVIP,
	internal.FieldTags,
	internal.FieldNotes,
}

var fieldPatterns = map[internal.CanonicalField][]string{
	internal.FieldPhone:         {"phone", "mobile", "cell", "contact no", "whatsapp", "tel"},
	internal.FieldEmail:         {"email", "e-mail", "mail"},
	internal.FieldFirstName:     {"first name", "firstname", "first_name", "fname", "given name"},
	internal.FieldLastName:      {"last name", "lastname", "last_name", "surname", "family name", "lname"},
	internal.FieldSalutation:    {"salutation", "title", "prefix", "mr/ms"},
	internal.FieldBirthday:      {"birthday", "birth date", "birthdate", "date of birth", "dob"},
	internal.FieldLastVisitDate: {"last visit", "last seen", "recent visit", "visit date"},
	internal.FieldLastLocation:  {"location", "branch", "outlet", "store", "venue"},
	internal.FieldTotalVisits:   {"visits", "visit count", "no of visits", "times visited"},
	internal.FieldIsVIP:         {"vip", "is_vip", "vip status"},
	internal.FieldTags:          {"tags", "tag", "segment", "labels"},
	internal.FieldNotes:         {"notes", "note", "comments", "remarks", "memo"},
}

// ProposeMapping inspects the source headers and proposes a FieldMapping.
// Each header is assigned to at most one canonical key and each key to at
// most one header. The proposal is never enforced: callers may override it
// freely, including assigning one column to several keys.
func ProposeMapping(headers []string) internal.FieldMapping {
	mapping := internal.FieldMapping{}
	assigned := map[internal.CanonicalField]bool{}

	for _, raw := range headers {
		header := strings.ToLower(strings.TrimSpace(raw))
		if header == "" {
			continue
		}
		for _, key := range keyPriority {
			if assigned[key] {
				continue
			}
			if matchesAny(header, fieldPatterns[key]) {
				mapping[key] = raw
				assigned[key] = true
				break
			}
		}
	}

	return mapping
}

// matchesAny tests substring containment in both directions, so "mobile
// number" hits the "mobile" pattern and a bare "name" header hits
// "firstname".
func matchesAny(header string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(header, pattern) || strings.Contains(pattern, header) {
			return true
		}
	}
	return false
}

// MappingUsable reports whether the executed mapping carries the minimum the
// pipeline needs: a phone column and at least one name column.
func MappingUsable(m internal.FieldMapping) bool {
	if !m.Has(internal.FieldPhone) {
		return false
	}
	return m.Has(internal.FieldFirstName) || m.Has(internal.FieldLastName)
}
