package arch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/qiniu/x/log"
)

// header precedes the variable block of every generated arch file.
const header = "# arch file generated by cp2kbuild\n"

// Render serializes the option mapping as Make-include text: one
// "KEY = VALUE" line per entry in sorted key order, followed by the
// literal per-file rule footer. Sorted order makes the output
// deterministic for identical inputs.
func Render(o Options, instructions string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, k := range sortedKeys(o) {
		fmt.Fprintf(&sb, "%s = %s\n", k, o[k])
	}
	sb.WriteString(instructions)
	return sb.String()
}

// FilePath returns where the arch file for the given platform and
// build variant lives inside the source tree.
func FilePath(startFrom, platformID, typ string) string {
	return filepath.Join(startFrom, "arch", platformID+"."+typ)
}

// WriteFile renders the options and writes them to the arch path,
// returning the path written.
func WriteFile(startFrom, typ string, res *Result) (string, error) {
	path := FilePath(startFrom, res.PlatformID, typ)
	text := Render(res.Options, res.Instructions)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing arch file %s failed: %w", path, err)
	}
	log.Debugf("content of arch file (%s):\n%s", path, text)
	return path, nil
}

// varLine matches a serialized variable assignment. The per-file rule
// footer (target lines and tab-indented recipes) never matches it.
var varLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*) = (.*)$`)

// Parse reconstructs the option mapping from rendered arch-file text,
// ignoring comments and the rule footer. Render followed by Parse
// yields the original mapping.
func Parse(text string) Options {
	o := make(Options)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if m := varLine.FindStringSubmatch(line); m != nil {
			o[m[1]] = m[2]
		}
	}
	return o
}
