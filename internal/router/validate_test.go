package router

import "testing"

func TestValidatePackageName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"com.example.app", false},
		{"foo", true},
		{"com.1example.app", true},
		{"com..example", true},
		{"com.example;rm -rf /", true},
	}
	for _, tc := range cases {
		err := ValidatePackageName(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestClassifyUninstallOutput(t *testing.T) {
	cases := []struct {
		output string
		want   bool
	}{
		{"Success", true},
		{"", true},
		{"Failure [DELETE_FAILED_INTERNAL_ERROR]", false},
		{"some other text mentioning DELETE_FAILED somewhere", false},
	}
	for _, tc := range cases {
		got := ClassifyUninstallOutput(tc.output)
		if got != tc.want {
			t.Errorf("ClassifyUninstallOutput(%q) = %v, want %v", tc.output, got, tc.want)
		}
	}
}

func TestResolveKeycode(t *testing.T) {
	code, err := ResolveKeycode("HOME")
	if err != nil || code != 3 {
		t.Errorf("ResolveKeycode(HOME) = (%d, %v), want (3, nil)", code, err)
	}

	code, err = ResolveKeycode("42")
	if err != nil || code != 42 {
		t.Errorf("ResolveKeycode(42) = (%d, %v), want (42, nil)", code, err)
	}

	_, err = ResolveKeycode("NOT_A_KEY")
	if err == nil {
		t.Error("ResolveKeycode(NOT_A_KEY) should fail")
	}
}

func TestEscapeShellText(t *testing.T) {
	got := escapeShellText("hello world")
	want := `"hello%sworld"`
	if got != want {
		t.Errorf("escapeShellText(\"hello world\") = %q, want %q", got, want)
	}
}
