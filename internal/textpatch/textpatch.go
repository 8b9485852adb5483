// Package textpatch rewrites single lines of external build files
// (Makefiles, harness scripts) by regular-expression substitution.
// The transform itself is pure; File adds the copy-backup-then-write
// step around it.
package textpatch

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Transform applies re to every line of text, replacing matching lines
// with their expansion of repl. It returns the new text and the number
// of lines that changed. Line endings are preserved.
func Transform(text string, re *regexp.Regexp, repl string) (string, int) {
	lines := strings.Split(text, "\n")
	n := 0
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		if out := re.ReplaceAllString(line, repl); out != line {
			lines[i] = out
			n++
		}
	}
	return strings.Join(lines, "\n"), n
}

// File rewrites path in place with Transform, keeping a copy of the
// original at path+backupSuffix. It returns the number of changed
// lines. The backup is written before the target, so a failed write
// never loses the original content.
func File(path string, re *regexp.Regexp, repl, backupSuffix string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("patch %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("patch %s: %w", path, err)
	}

	out, n := Transform(string(data), re, repl)
	if n == 0 {
		return 0, nil
	}

	if backupSuffix != "" {
		if err := os.WriteFile(path+backupSuffix, data, info.Mode().Perm()); err != nil {
			return 0, fmt.Errorf("backup %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("patch %s: %w", path, err)
	}
	return n, nil
}
