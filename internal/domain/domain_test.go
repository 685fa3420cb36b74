package domain

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/alecgard/mergeflow/internal/id"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"B@Acme.com ", "b@acme.com", false},
		{"", "", true},
		{"not-an-email", "", true},
		{"a@", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrValidation) {
			t.Errorf("NormalizeEmail(%q) error kind = %v, want validation", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmailDomain(t *testing.T) {
	if got := EmailDomain("a@Acme.COM"); got != "acme.com" {
		t.Errorf("EmailDomain = %q", got)
	}
	if got := EmailDomain("nodomain"); got != "" {
		t.Errorf("EmailDomain = %q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFoundf("Team %s not found.", "x"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound")
	}
	if got := Message(err, "fallback"); got != "Team x not found." {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("boom"), "fallback"); got != "fallback" {
		t.Errorf("Message = %q", got)
	}
}

func TestDocumentGrantIsIdempotent(t *testing.T) {
	d := &Document{}
	if !d.Grant("m1", PermissionEdit) {
		t.Fatal("first grant should apply")
	}
	if d.Grant("m1", PermissionView) {
		t.Fatal("second grant should be a no-op")
	}
	if len(d.SharedWith) != 1 || d.SharedWith[0].Permission != PermissionEdit {
		t.Errorf("SharedWith = %+v", d.SharedWith)
	}
	if !d.Revoke("m1") || len(d.SharedWith) != 0 {
		t.Errorf("Revoke left %+v", d.SharedWith)
	}
}

func TestDocumentVisibleTo(t *testing.T) {
	member := &Member{ID: "m1", GroupID: "g1"}
	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{"hidden even when shared", Document{ShowFile: false, Groups: []id.ID{"g1"}}, false},
		{"via group", Document{ShowFile: true, Groups: []id.ID{"g1"}}, true},
		{"via direct share", Document{ShowFile: true, SharedWith: []Share{{Member: "m1", Permission: PermissionView}}}, true},
		{"other group", Document{ShowFile: true, Groups: []id.ID{"g2"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.VisibleTo(member); got != tt.want {
				t.Errorf("VisibleTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTeamPending(t *testing.T) {
	team := &Team{Shared: []string{"a@x.com", "b@x.com"}}
	team.AddPending(PendingShare{Email: "a@x.com", DocID: "d1"})
	team.AddPending(PendingShare{Email: "a@x.com", DocID: "d1"})
	team.AddPending(PendingShare{Email: "c@x.com", DocID: "d2"})
	if len(team.DocShared) != 2 {
		t.Fatalf("DocShared = %+v", team.DocShared)
	}

	taken := team.TakePending("a@x.com")
	if len(taken) != 1 || taken[0].DocID != "d1" || len(team.DocShared) != 1 {
		t.Errorf("TakePending = %+v, left %+v", taken, team.DocShared)
	}

	team.ForgetEmails("b@x.com", "c@x.com")
	if !slices.Equal(team.Shared, []string{"a@x.com"}) || len(team.DocShared) != 0 {
		t.Errorf("ForgetEmails left %+v %+v", team.Shared, team.DocShared)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" a ", "", "b", "a"})
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("NormalizeTags = %v", got)
	}
}
