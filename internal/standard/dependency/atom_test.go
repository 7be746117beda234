package dependency_test

import (
	"testing"

	"cros.local/portage/internal/standard/dependency"
)

func verifyParseAtom(t *testing.T, atomStr string) {
	t.Helper()
	a, err := dependency.ParseAtom(atomStr)
	if err != nil {
		t.Errorf("ParseAtom(%q) failed: %v", atomStr, err)
		return
	}
	s := a.String()
	if s != atomStr {
		t.Errorf("ParseAtom(%q).String() = %q; want %q", atomStr, s, atomStr)
	}
}

func TestParseAtom_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"<=dev-libs/9libs-1.0",
		"sys-devel/gcc",
		"=sys-devel/gcc-12.3.1_p20230526-r1:12/12.3=::gentoo",
		"dev-rust/atomic-polyfill[x,-y,z(+)?]",
		"~dev-lang/python-3.11.5",
	} {
		verifyParseAtom(t, s)
	}
}

func TestParseAtom_Fields(t *testing.T) {
	a, err := dependency.ParseAtom("=sys-devel/gcc-12.3.1_p20230526-r1:12/12.3=::gentoo")
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	if got, want := a.VersionOperator(), dependency.OpExactEqual; got != want {
		t.Errorf("VersionOperator() = %q; want %q", got, want)
	}
	if got, want := a.Category(), "sys-devel"; got != want {
		t.Errorf("Category() = %q; want %q", got, want)
	}
	if got, want := a.PN(), "gcc"; got != want {
		t.Errorf("PN() = %q; want %q", got, want)
	}
	if got, want := a.Version().String(), "12.3.1_p20230526-r1"; got != want {
		t.Errorf("Version().String() = %q; want %q", got, want)
	}
	if got, want := a.Slot().Slot(), "12"; got != want {
		t.Errorf("Slot().Slot() = %q; want %q", got, want)
	}
	if got, want := a.Slot().Subslot(), "12.3"; got != want {
		t.Errorf("Slot().Subslot() = %q; want %q", got, want)
	}
	if got, want := a.SlotOperator(), dependency.SlotOpRebuild; got != want {
		t.Errorf("SlotOperator() = %v; want %v", got, want)
	}
	if got, want := a.Repo(), "gentoo"; got != want {
		t.Errorf("Repo() = %q; want %q", got, want)
	}
}

func TestAtomMatch(t *testing.T) {
	for _, tc := range []struct {
		name   string
		query  string
		data   string
		want   bool
		flags  dependency.CompareFlags
	}{
		{
			name:  "wildcard matches prefix",
			query: "=dev-rust/atomic-polyfill-0.1*",
			data:  "dev-rust/atomic-polyfill-0.1.0",
			want:  true,
		},
		{
			name:  "wildcard rejects non-prefix",
			query: "=dev-lang/python-3.11*",
			data:  "dev-lang/python-3.12.0",
			want:  false,
		},
		{
			name:  "ge matches equal",
			query: ">=sys-devel/gcc-12",
			data:  "sys-devel/gcc-12.3.1",
			want:  true,
		},
		{
			name:  "lt rejects newer",
			query: "<sys-devel/gcc-12",
			data:  "sys-devel/gcc-12.3.1",
			want:  false,
		},
		{
			name:  "rough equal ignores revision",
			query: "~sys-apps/foo-1.2.3",
			data:  "sys-apps/foo-1.2.3-r4",
			want:  true,
		},
		{
			name:  "slot mismatch fails",
			query: "dev-libs/glib:2",
			data:  "dev-libs/glib",
			want:  false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q, err := dependency.ParseAtom(tc.query)
			if err != nil {
				t.Fatalf("ParseAtom(%q) failed: %v", tc.query, err)
			}
			d, err := dependency.ParseAtom(tc.data)
			if err != nil {
				t.Fatalf("ParseAtom(%q) failed: %v", tc.data, err)
			}
			got := dependency.Match(d, q, tc.flags)
			if got != tc.want {
				t.Errorf("Match(%q, %q) = %t; want %t", tc.data, tc.query, got, tc.want)
			}
		})
	}
}

func TestCompare_PMSExamples(t *testing.T) {
	for _, tc := range []struct {
		older, newer string
	}{
		{"1.0", "1.0.0"},
		{"1.0", "1.0a"},
		{"1.0_pre1", "1.0_rc1"},
		{"1.0", "1.0_p1"},
		{"1.001", "1.01"},
		{"1.01", "1.1"},
	} {
		newerQuery, err := dependency.ParseAtom(">sys-libs/pkg-" + tc.older)
		if err != nil {
			t.Fatalf("ParseAtom failed: %v", err)
		}
		newerData, err := dependency.ParseAtom("sys-libs/pkg-" + tc.newer)
		if err != nil {
			t.Fatalf("ParseAtom failed: %v", err)
		}
		if !dependency.Match(newerData, newerQuery, 0) {
			t.Errorf("expected %q > %q", tc.newer, tc.older)
		}
	}
}

func TestCompare_AntislotBlocker(t *testing.T) {
	query, err := dependency.ParseAtom("^sys-libs/pkg:2")
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	sameSlot, err := dependency.ParseAtom("sys-libs/pkg:2")
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	otherSlot, err := dependency.ParseAtom("sys-libs/pkg:3")
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	if dependency.Match(sameSlot, query, 0) {
		t.Errorf("antislot query unexpectedly matched same slot")
	}
	if !dependency.Match(otherSlot, query, 0) {
		t.Errorf("antislot query should match a different slot")
	}
}

func TestFormat(t *testing.T) {
	a, err := dependency.ParseAtom("=sys-devel/gcc-12.3.1-r1:12")
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	got, err := a.Format("%{CATEGORY}/%{PN}-%{PVR}")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if want := "sys-devel/gcc-12.3.1-r1"; got != want {
		t.Errorf("Format() = %q; want %q", got, want)
	}
	got, err = a.Format("%[REPO]")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "" {
		t.Errorf("Format(%%[REPO]) = %q; want empty (unset)", got)
	}
}
