package textutil

import "testing"

func TestSanitizePlainText(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "strips markup", in: "<b>fragile</b> <script>alert(1)</script>box", want: "fragile box"},
		{name: "keeps entities readable", in: "salt & pepper", want: "salt & pepper"},
		{name: "collapses whitespace", in: "  leave\n\tat   door ", want: "leave at door"},
		{name: "truncates runes", in: "ñandú rojo", limit: 5, want: "ñandú"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizePlainText(tc.in, tc.limit); got != tc.want {
				t.Fatalf("SanitizePlainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFoldKey(t *testing.T) {
	if FoldKey("  In   Progress ") != FoldKey("in progress") {
		t.Fatalf("expected case and spacing to fold together")
	}
	if FoldKey("Delivered") == FoldKey("Ordered") {
		t.Fatalf("distinct descriptions must not fold together")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"In Progress":   "in-progress",
		" ordered ":     "ordered",
		"ready_to-ship": "ready-to-ship",
		"--":            "",
		"Shipped!!":     "shipped",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
