package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testJournal(t *testing.T, j Journal) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

	if _, ok, err := j.LastSuccess(ctx, "15.03.2024"); err != nil || ok {
		t.Fatalf("LastSuccess on empty journal is %v %v", ok, err)
	}

	for i, e := range []Entry{
		{Date: "15.03.2024", Outcome: OutcomeSuccess, Status: 200, Size: 3, Digest: Digest([]byte("one"))},
		{Date: "16.03.2024", Outcome: OutcomeNotFound, Status: 404},
		{Date: "15.03.2024", Outcome: OutcomeSuccess, Status: 200, Size: 3, Digest: Digest([]byte("two"))},
		{Date: "15.03.2024", Outcome: OutcomeTransport},
	} {
		e.FetchedAt = base.Add(time.Duration(i) * time.Minute)
		if err := j.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	last, ok, err := j.LastSuccess(ctx, "15.03.2024")
	if err != nil || !ok {
		t.Fatalf("LastSuccess is %v %v", ok, err)
	}
	if last.Digest != Digest([]byte("two")) || !last.FetchedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("LastSuccess is %+v", last)
	}
	if _, ok, _ := j.LastSuccess(ctx, "16.03.2024"); ok {
		t.Fatal("LastSuccess found a not-found entry")
	}

	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Outcome != OutcomeTransport || recent[1].Digest != last.Digest {
		t.Fatalf("Recent is %+v", recent)
	}
}

func TestMemJournal(t *testing.T) {
	testJournal(t, NewMemJournal())
}

func TestSQLiteJournal(t *testing.T) {
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	testJournal(t, j)
}

func TestDigest(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Fatal("Digests collide")
	}
	if len(Digest(nil)) != 64 {
		t.Fatalf("Digest is %s", Digest(nil))
	}
}
