package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lvillar/signdoc"
)

var base = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func record(name, email string, offset time.Duration) Record {
	sub := signdoc.Submission{
		FullName:        name,
		Email:           email,
		Phone:           "555-0100",
		SignatureMethod: signdoc.SignatureTyped,
		SignatureImage:  []byte("\x89PNG signature of " + name),
	}
	return NewRecord(sub, []byte("%PDF-1.3 for "+name), base.Add(offset))
}

// testStore runs the behaviour every backend shares against an empty store.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	all, err := s.All(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("fresh store: %v records, err %v", len(all), err)
	}

	jane, err := s.Append(ctx, record("Jane Doe", "jane@x.com", 0))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !strings.HasPrefix(jane.ID, "agr_") {
		t.Errorf("id %q lacks prefix", jane.ID)
	}
	john, _ := s.Append(ctx, record("John Roe", "john@y.com", time.Minute))
	jane2, _ := s.Append(ctx, record("Jane Doe", "JANE@x.com", 2*time.Minute))

	t.Run("all", func(t *testing.T) {
		all, err := s.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, r := range all {
			ids = append(ids, r.ID)
		}
		want := []string{jane.ID, john.ID, jane2.ID}
		if strings.Join(ids, ",") != strings.Join(want, ",") {
			t.Fatalf("order %v, want %v", ids, want)
		}
	})

	t.Run("get", func(t *testing.T) {
		got, err := s.Get(ctx, john.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.FullName != "John Roe" || got.Email != "john@y.com" || got.Status != StatusCompleted ||
			got.SignatureMethod != signdoc.SignatureTyped || got.DisplayDate != "March 14, 2025" {
			t.Errorf("unexpected record %+v", got)
		}
		if !got.Timestamp.Equal(base.Add(time.Minute)) {
			t.Errorf("timestamp %v", got.Timestamp)
		}
		if !bytes.Equal(got.Artifact, []byte("%PDF-1.3 for John Roe")) {
			t.Errorf("artifact %q", got.Artifact)
		}
		if !bytes.Equal(got.SignatureImage, []byte("\x89PNG signature of John Roe")) {
			t.Errorf("signature %q", got.SignatureImage)
		}

		if _, err := s.Get(ctx, "agr_missing"); !errors.Is(err, signdoc.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("by email", func(t *testing.T) {
		got, err := s.ByEmail(ctx, " Jane@X.com")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].ID != jane.ID || got[1].ID != jane2.ID {
			t.Fatalf("got %d records", len(got))
		}
		none, err := s.ByEmail(ctx, "nobody@x.com")
		if err != nil || len(none) != 0 {
			t.Fatalf("unknown email: %d records, err %v", len(none), err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		st, err := StatsFor(ctx, s)
		if err != nil {
			t.Fatal(err)
		}
		if st.Total != 3 || st.UniqueEmails != 2 || st.ByStatus[StatusCompleted] != 3 {
			t.Errorf("unexpected stats %+v", st)
		}
		if !st.Oldest.Equal(base) || !st.Newest.Equal(base.Add(2*time.Minute)) {
			t.Errorf("range %v..%v", st.Oldest, st.Newest)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, john.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, john.ID); !errors.Is(err, signdoc.ErrNotFound) {
			t.Errorf("deleted record still found: %v", err)
		}
		if err := s.Delete(ctx, john.ID); !errors.Is(err, signdoc.ErrNotFound) {
			t.Errorf("second delete: %v", err)
		}
		all, _ := s.All(ctx)
		if len(all) != 2 {
			t.Errorf("%d records left, want 2", len(all))
		}
	})

	t.Run("clear", func(t *testing.T) {
		if err := s.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		all, _ := s.All(ctx)
		byEmail, _ := s.ByEmail(ctx, "jane@x.com")
		if len(all) != 0 || len(byEmail) != 0 {
			t.Fatalf("store not empty after Clear: %d / %d", len(all), len(byEmail))
		}
	})
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	r, _ := s.Append(ctx, record("Jane Doe", "jane@x.com", 0))
	r.Artifact[0] = 'X'
	got, _ := s.Get(ctx, r.ID)
	if got.Artifact[0] != '%' {
		t.Fatal("caller mutated stored artifact")
	}
}

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis(t *testing.T) {
	testStore(t, NewRedis(newMiniRedis(t), "test:"))
}

func TestRedisKeyLayout(t *testing.T) {
	ctx := context.Background()
	client := newMiniRedis(t)
	s := NewRedis(client, "")
	r, err := s.Append(ctx, record("Jane Doe", "Jane@X.com", 0))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := client.Exists(ctx, "signdoc:record:"+r.ID).Result(); n != 1 {
		t.Error("record hash missing")
	}
	if ok, _ := client.SIsMember(ctx, "signdoc:email:jane@x.com", r.ID).Result(); !ok {
		t.Error("email index missing")
	}
	if ids, _ := client.LRange(ctx, "signdoc:records", 0, -1).Result(); len(ids) != 1 || ids[0] != r.ID {
		t.Errorf("id list %v", ids)
	}
}

var testKey = bytes.Repeat([]byte{7}, KeySize)

func TestSealed(t *testing.T) {
	s, err := NewSealed(NewMemory(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestSealedEncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	s, _ := NewSealed(inner, testKey)

	r, err := s.Append(ctx, record("Jane Doe", "jane@x.com", 0))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := inner.Get(ctx, r.ID)
	if bytes.Contains(raw.Artifact, []byte("%PDF")) || bytes.Contains(raw.SignatureImage, []byte("PNG")) {
		t.Fatal("artifact stored in the clear")
	}

	other, _ := NewSealed(inner, bytes.Repeat([]byte{8}, KeySize))
	if _, err := other.Get(ctx, r.ID); !errors.Is(err, signdoc.ErrStore) {
		t.Fatalf("wrong key: expected ErrStore, got %v", err)
	}
}

func TestNewSealedKeySize(t *testing.T) {
	if _, err := NewSealed(NewMemory(), []byte("short")); err == nil {
		t.Fatal("expected key size error")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "memory", Key: testKey})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Sealed); !ok {
		t.Errorf("keyed store is %T, want *Sealed", s)
	}
	if _, err := Open(ctx, Config{Driver: "cassandra"}); err == nil {
		t.Error("expected unknown driver error")
	}

	mr := miniredis.RunT(t)
	rs, err := Open(ctx, Config{Driver: "redis", URL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Close()
	if _, ok := rs.(*Redis); !ok {
		t.Errorf("redis driver opened %T", rs)
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	r, _ := s.Append(ctx, record("Jane Doe", "jane@x.com", 0))

	var buf bytes.Buffer
	if err := Export(ctx, s, &buf, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != r.ID || got[0]["status"] != "completed" || got[0]["pdfBase64"] == nil {
		t.Fatalf("unexpected export %v", got)
	}

	buf.Reset()
	if err := Export(ctx, NewMemory(), &buf, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty export = %q", buf.String())
	}
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	s.Append(ctx, record("Jane Doe", "jane@x.com", 0))
	s.Append(ctx, record(`Roe, "Johnny"`, "john@y.com", time.Minute))

	var buf bytes.Buffer
	if err := Export(ctx, s, &buf, FormatCSV); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("export is not CSV: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "id" || rows[2][1] != `Roe, "Johnny"` {
		t.Fatalf("unexpected rows %q", rows)
	}
	if rows[1][7] != "2025-03-14T15:09:26Z" {
		t.Errorf("timestamp column %q", rows[1][7])
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "csv": FormatCSV} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
	if got := ExportFileName(base, FormatCSV); got != "contracts_export_2025-03-14.csv" {
		t.Errorf("ExportFileName = %q", got)
	}
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("SIGNDOC_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SIGNDOC_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url, "signdoc_records_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestMongo(t *testing.T) {
	uri := os.Getenv("SIGNDOC_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SIGNDOC_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := OpenMongo(ctx, uri, "signdoc_test", "records")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}
