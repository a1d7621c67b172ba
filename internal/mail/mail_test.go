package mail

import (
	"context"
	"strings"
	"testing"
)

type captured struct {
	to, subject, body string
}

type recorder struct{ sent []captured }

func (r *recorder) Send(_ context.Context, to, subject, body string) error {
	r.sent = append(r.sent, captured{to, subject, body})
	return nil
}

func TestNotifierResetCode(t *testing.T) {
	r := &recorder{}
	n := NewNotifier(r)

	if err := n.ResetCode(context.Background(), "a@b.rw", "Aline", "X7K2QP"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(r.sent) != 1 {
		t.Fatalf("sent %d", len(r.sent))
	}
	got := r.sent[0]
	if got.to != "a@b.rw" || got.subject != "Reset Password" {
		t.Errorf("envelope: %+v", got)
	}
	if !strings.Contains(got.body, "X7K2QP") || !strings.Contains(got.body, "Hello Aline") {
		t.Errorf("body missing code or name")
	}
}

func TestNotifierEscapesName(t *testing.T) {
	r := &recorder{}
	NewNotifier(r).Welcome(context.Background(), "a@b.rw", "<script>")
	if strings.Contains(r.sent[0].body, "<script>") {
		t.Error("name not escaped")
	}
}
