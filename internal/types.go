package internal

import "time"

// CanonicalField is one of the fixed target attributes a source column may be
// mapped to.
type CanonicalField string

const (
	FieldSalutation    CanonicalField = "salutation"
	FieldFirstName     CanonicalField = "first_name"
	FieldLastName      CanonicalField = "last_name"
	FieldPhone         CanonicalField = "phone"
	FieldEmail         CanonicalField = "email"
	FieldIsVIP         CanonicalField = "is_vip"
	FieldTotalVisits   CanonicalField = "total_visits"
	FieldBirthday      CanonicalField = "birthday"
	FieldNotes         CanonicalField = "notes"
	FieldTags          CanonicalField = "tags"
	FieldLastLocation  CanonicalField = "last_location"
	FieldLastVisitDate CanonicalField = "last_visit_date"
)

// FieldMapping maps canonical keys to source column names. A key absent from
// the map (or mapped to "") is unmapped. The auto-detected proposal assigns
// each source column at most once; caller overrides are not constrained.
type FieldMapping map[CanonicalField]string

func (m FieldMapping) Has(key CanonicalField) bool {
	return m[key] != ""
}

// SourceFile is one parsed upload: header row plus data rows, consumed once.
type SourceFile struct {
	Name    string
	Headers []string
	Rows    [][]string
}

type ValidationCode string

const (
	CodeMissingName  ValidationCode = "missing_name"
	CodeMissingPhone ValidationCode = "missing_phone"
	CodeInvalidPhone ValidationCode = "invalid_phone"
)

// CandidateRecord is the normalized projection of one source row through a
// FieldMapping. Errors is empty iff the record may be written.
type CandidateRecord struct {
	LineNo       int
	FullName     string
	Salutation   string
	Phone        string
	Email        string
	TotalVisits  int
	IsVIP        bool
	Birthday     *time.Time
	LastVisitAt  *time.Time
	Notes        string
	Tags         string
	LocationText string
	City         string
	Errors       []ValidationCode
}

func (r CandidateRecord) Valid() bool {
	return len(r.Errors) == 0
}

type MatchedBy string

const (
	MatchedByPhone MatchedBy = "phone"
	MatchedByEmail MatchedBy = "email"
)

// MatchResult reports whether a candidate resolves to an existing guest.
// Phone matches take precedence over email matches.
type MatchResult struct {
	Matched    bool
	ExistingID int64
	MatchedBy  MatchedBy
}

// IdentityRow is the (id, phone, email) projection the index is built from.
type IdentityRow struct {
	ID    int64
	Phone string
	Email string
}

type MergePolicy string

const (
	PolicySkip         MergePolicy = "skip"
	PolicyUpdate       MergePolicy = "update"
	PolicyCreateAnyway MergePolicy = "create_anyway"
)

// GuestFields is the full field set written on create.
type GuestFields struct {
	FullName    string
	Salutation  string
	Phone       string
	Email       string
	TotalVisits int
	IsVIP       bool
	Birthday    *time.Time
	LastVisitAt *time.Time
	Notes       string
	Tags        string
	City        string
	LocationID  *int64
}

// GuestPatch is a sparse update: absent fields keep their stored value,
// present fields overwrite unconditionally, including with empty values. The
// nullable columns carry an explicit Set flag so "overwrite with NULL" and
// "no change" stay distinguishable.
type GuestPatch struct {
	FullName    *string
	Salutation  *string
	Email       *string
	TotalVisits *int
	IsVIP       *bool
	Notes       *string
	Tags        *string
	City        *string

	SetBirthday bool
	Birthday    *time.Time

	SetLastVisit bool
	LastVisitAt  *time.Time

	SetLocation bool
	LocationID  *int64
}

type GuestRow struct {
	ID          int64
	FullName    string
	Salutation  string
	Phone       string
	Email       string
	TotalVisits int
	IsVIP       bool
	Birthday    *string
	LastVisitAt *string
	Notes       string
	Tags        string
	City        string
	LocationID  *int64
}

type LocationRow struct {
	ID   int64
	Name string
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunSummary carries the batch counters persisted at run end.
type RunSummary struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Status    RunStatus
}

type ImportRunRow struct {
	ID           int64
	FileName     string
	DeclaredRows int
	Processed    int
	Created      int
	Updated      int
	Skipped      int
	Failed       int
	Status       string
	StartedAt    string
	FinishedAt   *string
}

type RowStatus string

const (
	RowNew       RowStatus = "new"
	RowDuplicate RowStatus = "duplicate"
	RowInvalid   RowStatus = "invalid"
)

// PreviewRow is one line of the pre-import report shown to the operator.
type PreviewRow struct {
	LineNo    int
	FullName  string
	Phone     string
	Status    RowStatus
	Action    string
	MatchedBy MatchedBy
	Errors    []ValidationCode
}
