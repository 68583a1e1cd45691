package action

import (
	"strings"
	"testing"
)

func TestScriptPreamble(t *testing.T) {
	got := string(Script("/w/a.txt", "is new", "echo hi\n"))
	want := "#!/bin/bash\nFILE='/w/a.txt'\nREASON='is new'\necho hi\n"
	if got != want {
		t.Fatalf("Script mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestScriptEmptyTemplate(t *testing.T) {
	got := string(Script("/w/a.txt", "is new", ""))
	if !strings.HasPrefix(got, "#!/bin/bash\n") {
		t.Fatalf("expected shebang preamble, got %q", got)
	}
	if !strings.Contains(got, "FILE='/w/a.txt'\n") || !strings.Contains(got, "REASON='is new'\n") {
		t.Fatalf("missing FILE/REASON preamble lines: %q", got)
	}
}

func TestScriptEscapesSingleQuotes(t *testing.T) {
	got := string(Script("/w/it's.txt", "is new", ""))
	if strings.Contains(got, "FILE='/w/it's.txt'") {
		t.Fatalf("unescaped single quote would break out of the shell assignment: %q", got)
	}
}
