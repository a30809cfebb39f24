package stats

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
)

func TestObserveMessagesCountsByKind(t *testing.T) {
	r := New()
	batch := []*message.Message{
		{Kind: message.Event},
		{Kind: message.Event},
		{Kind: message.StreamBegin},
	}
	r.ObserveMessages(batch)

	if got := testutil.ToFloat64(r.messages.WithLabelValues(message.Event.String())); got != 2 {
		t.Fatalf("got %v event messages, want 2", got)
	}
	if got := testutil.ToFloat64(r.messages.WithLabelValues(message.StreamBegin.String())); got != 1 {
		t.Fatalf("got %v stream_begin messages, want 1", got)
	}
}

func TestObserveRunOnceClassifiesOutcomes(t *testing.T) {
	r := New()

	r.ObserveRunOnce(time.Millisecond, nil)
	r.ObserveRunOnce(time.Millisecond, errs.Again)
	r.ObserveRunOnce(time.Millisecond, errs.End)
	r.ObserveRunOnce(time.Millisecond, errs.New(errs.DecodeError, "boom"))

	if got := testutil.ToFloat64(r.runOnceAgain); got != 1 {
		t.Fatalf("got %v again count, want 1", got)
	}
	if got := testutil.ToFloat64(r.runOnceEnd); got != 1 {
		t.Fatalf("got %v end count, want 1", got)
	}
	if got := testutil.ToFloat64(r.runOnceErrors.WithLabelValues(errs.DecodeError.String())); got != 1 {
		t.Fatalf("got %v decode-error count, want 1", got)
	}
	if got := testutil.CollectAndCount(r.runOnceDuration); got != 1 {
		t.Fatalf("got %d duration observations registered, want 1 metric", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	r := New()
	r.ObserveRunOnce(time.Millisecond, errs.End)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ctf_run_once_end_total") {
		t.Fatalf("response missing ctf_run_once_end_total:\n%s", rec.Body.String())
	}
}
