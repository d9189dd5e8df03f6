package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"tessera/internal"
	"tessera/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "tessera.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, db, testConfig(), zap.NewNop()), db
}

func guestFile(rows ...[]string) internal.SourceFile {
	return internal.SourceFile{
		Name:    "guests.csv",
		Headers: []string{"First Name", "Mobile", "Email"},
		Rows:    rows,
	}
}

func guestMapping() internal.FieldMapping {
	return internal.FieldMapping{
		internal.FieldFirstName: "First Name",
		internal.FieldPhone:     "Mobile",
		internal.FieldEmail:     "Email",
	}
}

func TestRunEndToEnd(t *testing.T) {
	svc, db := newTestService(t)

	if _, err := db.CreateGuest(internal.GuestFields{FullName: "Omar Said", Phone: "+97455551234", City: CityDoha}); err != nil {
		t.Fatal(err)
	}

	src := guestFile(
		[]string{"Sara", "+974 9999 0000", "sara@example.com"},
		[]string{"Omar", "+974 5555 1234", "omar@new.example.com"},
		[]string{"Noor", "", "noor@example.com"},
	)

	summary, err := svc.Run(context.Background(), src, RunOptions{Policy: internal.PolicyUpdate, Mapping: guestMapping()})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 1 || summary.Updated != 1 || summary.Failed != 1 || summary.Processed != 3 {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.Status != internal.RunCompleted {
		t.Fatalf("status: %s", summary.Status)
	}

	count, err := db.CountGuests()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("guest count: %d", count)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != "completed" || runs[0].Created != 1 || runs[0].Updated != 1 || runs[0].Failed != 1 {
		t.Fatalf("persisted run: %+v", runs)
	}
}

func TestRunSkipPolicyIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	src := guestFile(
		[]string{"Sara", "+97499990000", "sara@example.com"},
		[]string{"Omar", "+97455551234", "omar@example.com"},
	)
	opts := RunOptions{Policy: internal.PolicySkip, Mapping: guestMapping()}

	first, err := svc.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Created != 2 {
		t.Fatalf("first: %+v", first)
	}

	second, err := svc.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || second.Updated != 0 || second.Skipped != 2 {
		t.Fatalf("second run must be a no-op: %+v", second)
	}

	count, _ := db.CountGuests()
	if count != 2 {
		t.Fatalf("guest count: %d", count)
	}
}

func TestRunUpdatePolicyConverges(t *testing.T) {
	svc, db := newTestService(t)
	src := guestFile(
		[]string{"Sara", "+97499990000", "sara@example.com"},
		[]string{"Omar", "+97455551234", "omar@example.com"},
	)
	opts := RunOptions{Policy: internal.PolicyUpdate, Mapping: guestMapping()}

	if _, err := svc.Run(context.Background(), src, opts); err != nil {
		t.Fatal(err)
	}

	second, err := svc.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatal(err)
	}
	third, err := svc.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || third.Created != 0 {
		t.Fatalf("reruns must not create: %+v / %+v", second, third)
	}
	if second.Updated != third.Updated {
		t.Fatalf("reruns must converge: %+v / %+v", second, third)
	}

	count, _ := db.CountGuests()
	if count != 2 {
		t.Fatalf("guest count: %d", count)
	}
}

func TestRunCreateAnywayDuplicates(t *testing.T) {
	svc, db := newTestService(t)
	src := guestFile([]string{"Omar", "+97455551234", ""})
	opts := RunOptions{Policy: internal.PolicyCreateAnyway, Mapping: guestMapping()}

	if _, err := svc.Run(context.Background(), src, opts); err != nil {
		t.Fatal(err)
	}
	summary, err := svc.Run(context.Background(), src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 1 || summary.Skipped != 0 {
		t.Fatalf("summary: %+v", summary)
	}

	count, _ := db.CountGuests()
	if count != 2 {
		t.Fatalf("create_anyway must duplicate intentionally, count=%d", count)
	}
}

func TestRunStructuralAbort(t *testing.T) {
	svc, db := newTestService(t)

	cases := []internal.SourceFile{
		{Name: "empty.csv"},
		{Name: "headeronly.csv", Headers: []string{"First Name", "Mobile"}},
		guestFile([]string{"", "", "x@example.com"}),
	}
	for _, src := range cases {
		_, err := svc.Run(context.Background(), src, RunOptions{Policy: internal.PolicySkip, Mapping: guestMapping()})
		if !errors.Is(err, ErrStructural) {
			t.Fatalf("%s: err %v", src.Name, err)
		}
	}

	// A structural abort persists nothing, not even a run row.
	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs persisted on abort: %+v", runs)
	}
}

func TestRunUnusableMapping(t *testing.T) {
	svc, _ := newTestService(t)
	src := guestFile([]string{"Sara", "+97499990000", ""})

	_, err := svc.Run(context.Background(), src, RunOptions{
		Policy:  internal.PolicySkip,
		Mapping: internal.FieldMapping{internal.FieldFirstName: "First Name"},
	})
	if !errors.Is(err, ErrStructural) {
		t.Fatalf("err: %v", err)
	}
}

func TestRunCancellationLeavesRunning(t *testing.T) {
	svc, db := newTestService(t)
	src := guestFile(
		[]string{"Sara", "+97499990000", ""},
		[]string{"Omar", "+97455551234", ""},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Run(ctx, src, RunOptions{Policy: internal.PolicySkip, Mapping: guestMapping()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: %v", err)
	}
	if summary.Status != internal.RunRunning || summary.Processed != 0 {
		t.Fatalf("summary: %+v", summary)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != "running" {
		t.Fatalf("cancelled run must stay running: %+v", runs)
	}
}

func TestRunProgressCallback(t *testing.T) {
	svc, _ := newTestService(t)
	src := guestFile(
		[]string{"Sara", "+97499990000", ""},
		[]string{"Omar", "+97455551234", ""},
		[]string{"Noor", "", ""},
	)

	var calls [][2]int
	_, err := svc.Run(context.Background(), src, RunOptions{
		Policy:  internal.PolicySkip,
		Mapping: guestMapping(),
		Progress: func(done, total int) {
			calls = append(calls, [2]int{done, total})
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 {
		t.Fatalf("calls: %v", calls)
	}
	if last := calls[len(calls)-1]; last != [2]int{3, 3} {
		t.Fatalf("last call: %v", last)
	}
}

// failingStore wraps the sqlite store and fails every write, to exercise
// per-row failure isolation.
type failingStore struct {
	*storage.DB
}

func (f failingStore) CreateGuest(internal.GuestFields) (int64, error) {
	return 0, errors.New("store unavailable")
}

func (f failingStore) UpdateGuest(int64, internal.GuestPatch) error {
	return errors.New("store unavailable")
}

func TestRunWriteFailuresDoNotAbort(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "tessera.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	svc := NewService(failingStore{db}, db, testConfig(), zap.NewNop())

	src := guestFile(
		[]string{"Sara", "+97499990000", ""},
		[]string{"Omar", "+97455551234", ""},
	)
	summary, err := svc.Run(context.Background(), src, RunOptions{Policy: internal.PolicySkip, Mapping: guestMapping()})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 || summary.Failed != 2 {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.Status != internal.RunFailed {
		t.Fatalf("all-failed run must be failed, got %s", summary.Status)
	}
}
