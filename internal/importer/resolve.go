package importer

import (
	"fmt"
	"strings"

	"tessera/internal"
	"tessera/internal/util"
)

// ParsePolicy maps caller input onto the closed policy enum.
func ParsePolicy(s string) (internal.MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return internal.PolicySkip, nil
	case "update":
		return internal.PolicyUpdate, nil
	case "create_anyway", "create-anyway":
		return internal.PolicyCreateAnyway, nil
	default:
		return "", fmt.Errorf("unknown merge policy: %q (want skip|update|create_anyway)", s)
	}
}

type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionSkip   ActionKind = "skip"
)

// Action is the resolver's verdict for one candidate row.
type Action struct {
	Kind       ActionKind
	ExistingID int64
	Fields     internal.GuestFields
	Patch      internal.GuestPatch
}

// Resolve applies the merge policy to one candidate and its match result.
// This switch is the single place merge semantics live:
//
//	            skip      update             create_anyway
//	no match    create    create             create
//	match       noop      sparse patch       create (intentional duplicate)
//
// locationID is the pre-resolved id for the row's location text, nil when
// unknown.
func Resolve(rec internal.CandidateRecord, match internal.MatchResult, policy internal.MergePolicy, mapping internal.FieldMapping, locationID *int64) Action {
	if !match.Matched {
		return Action{Kind: ActionCreate, Fields: buildFields(rec, locationID)}
	}

	switch policy {
	case internal.PolicySkip:
		return Action{Kind: ActionSkip, ExistingID: match.ExistingID}
	case internal.PolicyUpdate:
		return Action{Kind: ActionUpdate, ExistingID: match.ExistingID, Patch: buildPatch(rec, mapping, locationID)}
	case internal.PolicyCreateAnyway:
		return Action{Kind: ActionCreate, Fields: buildFields(rec, locationID)}
	default:
		return Action{Kind: ActionSkip, ExistingID: match.ExistingID}
	}
}

func buildFields(rec internal.CandidateRecord, locationID *int64) internal.GuestFields {
	return internal.GuestFields{
		FullName:    rec.FullName,
		Salutation:  rec.Salutation,
		Phone:       rec.Phone,
		Email:       rec.Email,
		TotalVisits: rec.TotalVisits,
		IsVIP:       rec.IsVIP,
		Birthday:    rec.Birthday,
		LastVisitAt: rec.LastVisitAt,
		Notes:       rec.Notes,
		Tags:        rec.Tags,
		City:        rec.City,
		LocationID:  locationID,
	}
}

// buildPatch overwrites exactly the mapped fields. A mapped field overwrites
// even when its incoming value is empty; an unmapped field never appears in
// the patch. Name is always mapped (the pipeline refuses to run otherwise),
// so full name and salutation are always overwritten, matching the stored
// identity to the freshest export. Phone is the identity key and never
// patched.
func buildPatch(rec internal.CandidateRecord, mapping internal.FieldMapping, locationID *int64) internal.GuestPatch {
	patch := internal.GuestPatch{
		FullName:   util.StringPtr(rec.FullName),
		Salutation: util.StringPtr(rec.Salutation),
	}

	if mapping.Has(internal.FieldEmail) {
		patch.Email = util.StringPtr(rec.Email)
	}
	if mapping.Has(internal.FieldTotalVisits) {
		patch.TotalVisits = util.IntPtr(rec.TotalVisits)
	}
	if mapping.Has(internal.FieldIsVIP) {
		patch.IsVIP = util.BoolPtr(rec.IsVIP)
	}
	if mapping.Has(internal.FieldNotes) {
		patch.Notes = util.StringPtr(rec.Notes)
	}
	if mapping.Has(internal.FieldTags) {
		patch.Tags = util.StringPtr(rec.Tags)
	}
	if mapping.Has(internal.FieldBirthday) {
		patch.SetBirthday = true
		patch.Birthday = rec.Birthday
	}
	if mapping.Has(internal.FieldLastVisitDate) {
		patch.SetLastVisit = true
		patch.LastVisitAt = rec.LastVisitAt
	}
	if mapping.Has(internal.FieldLastLocation) {
		patch.SetLocation = true
		patch.LocationID = locationID
		patch.City = util.StringPtr(rec.City)
	}

	return patch
}
