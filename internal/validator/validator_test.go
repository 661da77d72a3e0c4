package validator_test

import (
	"strings"
	"testing"

	"github.com/openlms/sequent/internal/validator"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/dsl"
)

func TestValidate_CleanManifest(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PreRule("skip", dsl.Cond("always")),
			dsl.NewItem("unit").Add(
				dsl.NewItem("b").Resource("b.html"),
			),
		).
		Build()

	report := validator.Validate(m)
	if err := report.Err(); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", report.Warnings)
	}
}

func TestValidate_Problems(t *testing.T) {
	cases := []struct {
		name     string
		manifest *domain.Manifest
		fragment string
	}{
		{
			name:     "no organizations",
			manifest: &domain.Manifest{Identifier: "x"},
			fragment: "no organizations",
		},
		{
			name:     "empty organization",
			manifest: dsl.New("x").Build(),
			fragment: "has no items",
		},
		{
			name: "duplicate identifier",
			manifest: dsl.New("x").Add(
				dsl.NewItem("a").Resource("a.html"),
				dsl.NewItem("a").Resource("b.html"),
			).Build(),
			fragment: "duplicate identifier",
		},
		{
			name: "missing default organization",
			manifest: &domain.Manifest{
				Identifier:          "x",
				DefaultOrganization: "ghost",
				Organizations: []domain.Organization{
					{ID: "org", Items: []domain.Item{{ID: "a", ResourceRef: "a.html"}}},
				},
			},
			fragment: "not found",
		},
		{
			name: "negative weight",
			manifest: dsl.New("x").Add(
				dsl.NewItem("a").Resource("a.html").Weight(-2),
			).Build(),
			fragment: "negative objective weight",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.manifest).Err()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Errorf("expected error containing %q, got %v", tc.fragment, err)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PreRule("teleport", dsl.Cond("always")).
				PreRule("skip", dsl.Cond("fullMoon")).
				PreRule("skip"),
			dsl.NewItem("bare"),
		).
		Build()

	report := validator.Validate(m)
	if err := report.Err(); err != nil {
		t.Fatalf("degradable definitions must not reject: %v", err)
	}

	wantFragments := []string{
		"unknown action",
		"unknown kind",
		"no conditions",
		"never be deliverable",
	}
	for _, frag := range wantFragments {
		found := false
		for _, w := range report.Warnings {
			if strings.Contains(w, frag) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a warning containing %q, got %v", frag, report.Warnings)
		}
	}
}

func TestValidate_WrittenNeverReadGlobal(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("writer").Resource("w.html").
				MapGlobal("orphan", false, true),
			dsl.NewItem("reader").Resource("r.html").
				MapGlobal("wired", true, false),
			dsl.NewItem("publisher").Resource("p.html").
				MapGlobal("wired", false, true),
		).
		Build()

	report := validator.Validate(m)
	if err := report.Err(); err != nil {
		t.Fatalf("dead global flow must warn, not reject: %v", err)
	}

	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "orphan") && strings.Contains(w, "never read") {
			found = true
		}
		if strings.Contains(w, `"wired"`) {
			t.Errorf("a read global must not warn: %v", w)
		}
	}
	if !found {
		t.Errorf("expected a never-read warning for %q, got %v", "orphan", report.Warnings)
	}
}
