// Package action implements the node action pipeline: generating the
// shell script bound to a quiescent file, running it through a swappable
// executor, and applying the retry/backoff policy to the outcome.
package action

import (
	"fmt"
	"strings"
)

// Script renders the generated action script for a file: the fixed
// preamble (shebang, FILE, REASON) followed by the tree's action template
// verbatim.
func Script(absPath, reason, actionTemplate string) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "FILE='%s'\n", escapeSingleQuotes(absPath))
	fmt.Fprintf(&b, "REASON='%s'\n", escapeSingleQuotes(reason))
	b.WriteString(actionTemplate)
	if actionTemplate != "" && !strings.HasSuffix(actionTemplate, "\n") {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// escapeSingleQuotes closes, escapes, and reopens a single-quoted shell
// string so that a path or reason containing a literal quote cannot break
// out of the assignment.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
