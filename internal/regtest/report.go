package regtest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
)

// Report holds the test counts scraped from the harness summary. The
// harness prints no structured output; the counts come from fixed-form
// "number of <category> tests <n>" lines.
type Report struct {
	Total   int
	Failed  int
	Wrong   int
	New     int
	Correct int
}

// countPattern builds the line-anchored regexp matching the summary
// count for a category; an empty label matches the total-count line.
func countPattern(label string) *regexp.Regexp {
	slot := ""
	if label != "" {
		slot = regexp.QuoteMeta(strings.ToUpper(label)) + `\s+`
	}
	return regexp.MustCompile(`(?im)^\s*number\s+of\s+` + slot + `tests\s+(\d+)`)
}

func findCount(text, label string) (int, bool) {
	m := countPattern(label).FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseReport extracts the total and per-category counts from the raw
// harness output. A missing total or category count is a parse error.
func ParseReport(text string) (*Report, error) {
	total, ok := findCount(text, "")
	if !ok {
		return nil, errs.Parse("finding total number of tests in regression test summary failed")
	}
	rep := &Report{Total: total}

	for label, dst := range map[string]*int{
		"FAILED":  &rep.Failed,
		"WRONG":   &rep.Wrong,
		"NEW":     &rep.New,
		"CORRECT": &rep.Correct,
	} {
		cnt, ok := findCount(text, label)
		if !ok {
			return nil, errs.Parse("finding number of %s tests in regression test summary failed", strings.ToLower(label))
		}
		*dst = cnt
	}
	return rep, nil
}

// Evaluate applies the severity policy to the parsed counts. Failed
// tests indicate a broken installation; wrong tests only matter in
// excess (more than 10% of the total). ignoreFails downgrades both to
// warnings. A nonzero NEW count only warns, which may be more lenient
// than intended; the behavior is kept as-is.
func (r *Report) Evaluate(ignoreFails bool) error {
	check := func(label string, cnt int) error {
		msg := fmt.Sprintf("regression test reported %d / %d %s tests", cnt, r.Total, strings.ToLower(label))
		fatal := (label == "FAILED" && cnt > 0) ||
			(label == "WRONG" && float64(cnt)/float64(r.Total) > 0.1)
		switch {
		case fatal:
			if ignoreFails {
				log.Warnf("%s", msg)
				log.Infof("ignoring failures in regression test, as requested")
				return nil
			}
			return fmt.Errorf("%s", msg)
		case label == "CORRECT" || cnt == 0:
			log.Infof("%s", msg)
		default:
			log.Warnf("%s", msg)
		}
		return nil
	}

	for _, c := range []struct {
		label string
		cnt   int
	}{
		{"FAILED", r.Failed},
		{"WRONG", r.Wrong},
		{"NEW", r.New},
		{"CORRECT", r.Correct},
	} {
		if err := check(c.label, c.cnt); err != nil {
			return err
		}
	}
	return nil
}
