package storage

import (
	"path/filepath"
	"testing"
	"time"

	"tessera/internal"
	"tessera/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tessera.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndSnapshot(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateGuest(internal.GuestFields{FullName: "Sara Ahmed", Phone: "+97455551234", Email: "sara@example.com", City: "doha"})
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := db.ListIdentitySnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != id || snapshot[0].Phone != "+97455551234" {
		t.Fatalf("snapshot: %+v", snapshot)
	}
}

func TestUpdateGuestSparse(t *testing.T) {
	db := openTestDB(t)

	birthday := time.Date(1990, 4, 15, 0, 0, 0, 0, time.UTC)
	id, err := db.CreateGuest(internal.GuestFields{
		FullName: "Sara Ahmed", Phone: "+97455551234", Email: "sara@example.com",
		TotalVisits: 3, Notes: "keep", Birthday: &birthday, City: "doha",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Patch visits only: everything else must keep its stored value.
	if err := db.UpdateGuest(id, internal.GuestPatch{TotalVisits: util.IntPtr(9)}); err != nil {
		t.Fatal(err)
	}
	guest, err := db.GetGuestByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if guest.TotalVisits != 9 || guest.Email != "sara@example.com" || guest.Notes != "keep" || guest.Birthday == nil {
		t.Fatalf("guest after sparse patch: %+v", guest)
	}

	// A present empty value overwrites; a Set flag with nil value nulls out.
	err = db.UpdateGuest(id, internal.GuestPatch{Email: util.StringPtr(""), SetBirthday: true})
	if err != nil {
		t.Fatal(err)
	}
	guest, err = db.GetGuestByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if guest.Email != "" || guest.Birthday != nil {
		t.Fatalf("guest after overwrite patch: %+v", guest)
	}
}

func TestUpdateGuestMissing(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpdateGuest(999, internal.GuestPatch{TotalVisits: util.IntPtr(1)}); err == nil {
		t.Fatal("expected error for missing guest")
	}
}

func TestResolveLocationByName(t *testing.T) {
	db := openTestDB(t)

	id, err := db.AddLocation("West Bay")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddLocation("Olaya"); err != nil {
		t.Fatal(err)
	}

	// Substring in either direction, case-insensitive.
	got, err := db.ResolveLocationByName("west bay, doha")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != id {
		t.Fatalf("got %v want %d", got, id)
	}

	got, err = db.ResolveLocationByName("Bay")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != id {
		t.Fatalf("reverse containment: got %v", got)
	}

	got, err = db.ResolveLocationByName("Pearl")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.BeginRun("guests.csv", 10)
	if err != nil {
		t.Fatal(err)
	}
	run, err := db.GetRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != "running" || run.DeclaredRows != 10 || run.FinishedAt != nil {
		t.Fatalf("run after begin: %+v", run)
	}

	summary := internal.RunSummary{Processed: 10, Created: 6, Updated: 2, Skipped: 1, Failed: 1, Status: internal.RunCompleted}
	if err := db.CompleteRun(runID, summary); err != nil {
		t.Fatal(err)
	}
	run, err = db.GetRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != "completed" || run.Created != 6 || run.Failed != 1 || run.FinishedAt == nil {
		t.Fatalf("run after complete: %+v", run)
	}
}
