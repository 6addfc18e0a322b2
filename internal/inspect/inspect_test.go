package inspect

import (
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/funvibe/accessor/internal/diagnostics"
)

const modelManifest = `package: ./testdata/model
accessors:
  - type: User
    field: Name
    value: string
    setter: true
  - type: User
    field: ID
    value: int
  - type: User
    field: email
    scope: public
  - type: User
    field: email
    scope: nonpublic
    value: any
  - type: User
    field: Shared
  - type: User
    field: Name
    value: int
  - type: User
    field: Tag
    value: string
    setter: true
  - type: User
    method: Save
  - type: User
    method: rename
    scope: nonpublic
    signature: [string]
  - type: User
    method: Ping
  - type: User
    method: Wide15
  - type: User
    method: Wide16
  - type: Store
    method: Get
  - type: Missing
    field: X
  - static_field: Count
    value: int
  - static_field: defaultUser
    scope: public
  - static_method: NewUser
    signature: [string]
  - static_method: NewUser
    signature: [int]
  - static_method: Sum16
  - static_method: Sum17
`

func requireGo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}
}

func TestParseManifest_Validation(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"no package", "accessors: []\n", "package is required"},
		{"two members", "package: x\naccessors:\n  - type: T\n    field: a\n    method: b\n", "exactly one"},
		{"field without type", "package: x\naccessors:\n  - field: a\n", "needs a type"},
		{"value on method", "package: x\naccessors:\n  - type: T\n    method: a\n    value: int\n", "only applies to fields"},
		{"bad scope", "package: x\naccessors:\n  - type: T\n    field: a\n    scope: secret\n", "unknown scope"},
		{"unknown key", "package: x\nextra: 1\n", "field extra not found"},
		{"empty", "", "empty manifest"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.data), "accessors.yaml")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestEntry_String(t *testing.T) {
	if got := (Entry{Type: "User", Field: "Name"}).String(); got != "field User.Name" {
		t.Errorf("String() = %q", got)
	}
	if got := (Entry{StaticMethod: "NewUser"}).String(); got != "static_method NewUser" {
		t.Errorf("String() = %q", got)
	}
}

func TestInspector_Check(t *testing.T) {
	requireGo(t)
	m, err := ParseManifest([]byte(modelManifest), "accessors.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := NewInspector(".").Check(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(m.Accessors) {
		t.Fatalf("got %d results, want %d", len(results), len(m.Accessors))
	}

	want := []diagnostics.Kind{
		0,                                 // Name
		0,                                 // promoted ID
		diagnostics.MemberNotFound,        // email under public scope
		0,                                 // email under nonpublic scope
		diagnostics.AmbiguousMember,       // Shared from Left and Right
		diagnostics.IncompatibleValueType, // Name as int
		diagnostics.IncompatibleValueType, // Label stored from string
		0,                                 // Save
		diagnostics.MemberNotFound,        // unexported rename(string)
		diagnostics.AmbiguousMember,       // Ping from Left and Right
		0,                                 // receiver + 15
		diagnostics.TooManyArguments,      // receiver + 16
		0,                                 // interface method
		diagnostics.MemberNotFound,        // no such type
		0,                                 // Count
		diagnostics.MemberNotFound,        // defaultUser under public scope
		0,                                 // NewUser(string)
		diagnostics.MemberNotFound,        // NewUser(int)
		0,                                 // 16 parameters
		diagnostics.TooManyArguments,      // 17 parameters
	}
	for i, r := range results {
		got := diagnostics.KindOf(r.Err)
		if got != want[i] {
			t.Errorf("%s: kind = %v, want %v (err %v)", r.Entry, got, want[i], r.Err)
		}
		if r.Err == nil && r.Found == "" {
			t.Errorf("%s: no description of the resolved member", r.Entry)
		}
	}
	if got := results[0].Found; got != "field string User.Name" {
		t.Errorf("Found = %q", got)
	}
	if err := results[8].Err; err == nil || !strings.Contains(err.Error(), "Registry") {
		t.Errorf("rename: error = %v, want it to point at the Registry", err)
	}
}

func TestInspector_LoadFailure(t *testing.T) {
	requireGo(t)
	_, err := NewInspector(".").Check(&Manifest{Package: "./testdata/nonexistent"})
	if err == nil {
		t.Fatal("expected an error for a missing package")
	}
	if errors.Is(err, diagnostics.ErrMemberNotFound) {
		t.Errorf("load failures are not member errors: %v", err)
	}
}
