package submit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/layout"
	"github.com/lvillar/signdoc/mail"
	"github.com/lvillar/signdoc/render"
	"github.com/lvillar/signdoc/store"
)

var at = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func jane() signdoc.Submission {
	return signdoc.Submission{
		FullName:        "Jane Doe",
		Email:           "jane@x.com",
		Phone:           "555-0100",
		SignatureMethod: signdoc.SignatureTyped,
	}
}

func composer(opts ...compose.Option) *compose.Composer {
	return compose.New(append([]compose.Option{compose.WithMeasurer(layout.FixedAdvance(0.5))}, opts...)...)
}

type failingMail struct{ calls int }

func (f *failingMail) Send(context.Context, mail.Params) error {
	f.calls++
	return errors.New("connection reset")
}

type failingStore struct{ store.Store }

func (failingStore) Append(context.Context, store.Record) (store.Record, error) {
	return store.Record{}, signdoc.ErrStore
}

func TestSubmit(t *testing.T) {
	var out mail.Outbox
	st := store.NewMemory()
	svc := New(composer(), &out, WithStore(st), WithLogger(log.New(&bytes.Buffer{})))

	res, err := svc.Submit(context.Background(), jane(), at)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !bytes.HasPrefix(res.PDF, []byte("%PDF")) || res.Pages < 1 {
		t.Fatalf("bad artifact: %d bytes, %d pages", len(res.PDF), res.Pages)
	}
	if res.FileName != "Jane_Doe_Contract_2025-03-14.pdf" {
		t.Errorf("file name %q", res.FileName)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}

	sent := out.Sent()
	if len(sent) != 1 {
		t.Fatalf("%d mails sent", len(sent))
	}
	if sent[0].Attachment != render.DataURI(res.PDF) {
		t.Error("mail attachment is not the rendered PDF")
	}
	if len(sent[0].Submission.SignatureImage) == 0 {
		t.Error("typed signature was not rendered before mailing")
	}
	if len(out.Confirmed()) != 0 {
		t.Error("confirmation sent without WithConfirmation")
	}

	rec, err := st.Get(context.Background(), res.Record.ID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Status != store.StatusMailed || !bytes.Equal(rec.Artifact, res.PDF) {
		t.Errorf("stored record status %q, %d artifact bytes", rec.Status, len(rec.Artifact))
	}
}

func TestSubmitIsDeterministic(t *testing.T) {
	svc := New(composer(), &mail.Outbox{}, WithLogger(log.New(&bytes.Buffer{})))
	a, err := svc.Submit(context.Background(), jane(), at)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := svc.Submit(context.Background(), jane(), at)
	if !bytes.Equal(a.PDF, b.PDF) {
		t.Fatal("same submission and time produced different bytes")
	}
}

func TestSubmitConfirmation(t *testing.T) {
	var out mail.Outbox
	svc := New(composer(), &out, WithConfirmation(true), WithLogger(log.New(&bytes.Buffer{})))
	if _, err := svc.Submit(context.Background(), jane(), at); err != nil {
		t.Fatal(err)
	}
	if len(out.Confirmed()) != 1 {
		t.Fatal("confirmation not sent")
	}
}

func TestSubmitMissingField(t *testing.T) {
	var out mail.Outbox
	st := store.NewMemory()
	svc := New(composer(), &out, WithStore(st), WithLogger(log.New(&bytes.Buffer{})))

	sub := jane()
	sub.Phone = " "
	res, err := svc.Submit(context.Background(), sub, at)
	var se *signdoc.StageError
	if !errors.As(err, &se) || se.Stage != compose.StageClientInfo || !errors.Is(err, signdoc.ErrMissingField) {
		t.Fatalf("expected client_info StageError, got %v", err)
	}
	if res != nil || len(out.Sent()) != 0 {
		t.Fatal("failed composition produced output")
	}
	if all, _ := st.All(context.Background()); len(all) != 0 {
		t.Fatal("failed composition was stored")
	}
}

func TestSubmitBadSignature(t *testing.T) {
	svc := New(composer(), &mail.Outbox{}, WithLogger(log.New(&bytes.Buffer{})))
	sub := jane()
	sub.SignatureMethod = signdoc.SignatureDrawn
	sub.SignatureImage = []byte("not an image")

	_, err := svc.Submit(context.Background(), sub, at)
	var se *signdoc.StageError
	if !errors.As(err, &se) || se.Stage != compose.StageSignature {
		t.Fatalf("expected signature StageError, got %v", err)
	}
}

func TestSubmitDispatchFailure(t *testing.T) {
	fm := &failingMail{}
	st := store.NewMemory()
	svc := New(composer(), fm, WithStore(st), WithLogger(log.New(&bytes.Buffer{})))

	res, err := svc.Submit(context.Background(), jane(), at)
	if res != nil || !errors.Is(err, signdoc.ErrDispatch) || !signdoc.IsRetryable(err) {
		t.Fatalf("expected retryable dispatch error, got %v", err)
	}
	if fm.calls != 1 {
		t.Fatalf("dispatch attempted %d times, want 1", fm.calls)
	}
	all, _ := st.All(context.Background())
	if len(all) != 1 || all[0].Status != store.StatusFailed {
		t.Fatalf("failed attempt not recorded: %+v", all)
	}
}

func TestSubmitStoreFailureIsNotFatal(t *testing.T) {
	var logs bytes.Buffer
	var out mail.Outbox
	svc := New(composer(), &out, WithStore(failingStore{store.NewMemory()}), WithLogger(log.New(&logs)))

	res, err := svc.Submit(context.Background(), jane(), at)
	if err != nil {
		t.Fatalf("store failure failed the submission: %v", err)
	}
	if len(out.Sent()) != 1 {
		t.Fatal("agreement not mailed")
	}
	if res.Record.ID != "" || len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "record not stored") {
		t.Fatalf("unexpected result %+v", res.Warnings)
	}
	if !strings.Contains(logs.String(), "Record not stored") {
		t.Errorf("store failure not logged: %q", logs.String())
	}
}

func TestDownload(t *testing.T) {
	var out mail.Outbox
	st := store.NewMemory()
	svc := New(composer(), &out,
		WithStore(st),
		WithPreview(composer(compose.WithWatermark("PREVIEW"))),
		WithRenderOptions(render.WithCompression(false)),
		WithLogger(log.New(&bytes.Buffer{})),
	)

	art, err := svc.Download(jane(), at)
	if err != nil {
		t.Fatal(err)
	}
	if art.FileName != "Jane_Doe_Contract_2025-03-14.pdf" {
		t.Errorf("file name %q", art.FileName)
	}
	if !bytes.Contains(art.PDF, []byte("(PREVIEW)")) {
		t.Error("preview watermark missing")
	}
	if len(out.Sent()) != 0 {
		t.Error("download sent mail")
	}
	if all, _ := st.All(context.Background()); len(all) != 0 {
		t.Error("download stored a record")
	}
}
