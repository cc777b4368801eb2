package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Email(%q) = %q, want %q", in, got, want)
	}
}

func TestLocalPart(t *testing.T) {
	for in, want := range map[string]string{
		"john.doe@example.com": "john.doe",
		"a@b@c":                "a",
		"plain":                "plain",
		"":                     "",
	} {
		if got := LocalPart(in); got != want {
			t.Errorf("LocalPart(%q) = %q, want %q", in, got, want)
		}
	}
}
