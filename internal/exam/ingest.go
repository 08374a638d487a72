package exam

import (
	"fmt"
	"regexp"
	"strconv"
)

// Papers are uploaded under a canonical name like "2024_Jan_27_Shift_1";
// the (year, slot) identity is derived from it, never supplied separately.
var setNameRe = regexp.MustCompile(`^(\d{4})_([A-Za-z]{3})_(\d{2})_Shift_(\d)$`)

var imageURLRe = regexp.MustCompile(`^https?://.+\..+`)

var monthAbbrevs = map[string]bool{
	"Jan": true, "Feb": true, "Mar": true, "Apr": true, "May": true, "Jun": true,
	"Jul": true, "Aug": true, "Sep": true, "Oct": true, "Nov": true, "Dec": true,
}

// ParseSetName derives (year, slot) from a canonical paper name.
// "2024_Jan_27_Shift_1" becomes (2024, "Jan 27 Shift 1").
func ParseSetName(name string) (int, string, error) {
	m := setNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, "", fmt.Errorf("invalid paper name %q, expected YYYY_MMM_DD_Shift_N", name)
	}
	year, _ := strconv.Atoi(m[1])
	if year < 2000 {
		return 0, "", fmt.Errorf("year %d out of range, must be 2000 or later", year)
	}
	if !monthAbbrevs[m[2]] {
		return 0, "", fmt.Errorf("unknown month abbreviation %q", m[2])
	}
	day, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 {
		return 0, "", fmt.Errorf("day %d out of range", day)
	}
	slot := fmt.Sprintf("%s %s Shift %s", m[2], m[3], m[4])
	return year, slot, nil
}

// ValidateQuestions checks a candidate paper against the Question
// invariants and returns every problem found. An empty slice means the
// paper is storable.
func ValidateQuestions(qs []Question) []string {
	var problems []string
	if len(qs) != SetSize {
		problems = append(problems, fmt.Sprintf("expected %d questions, got %d", SetSize, len(qs)))
	}
	seen := make(map[int]bool, len(qs))
	for i, q := range qs {
		at := fmt.Sprintf("question %d (index %d)", q.ID, i)
		if seen[q.ID] {
			problems = append(problems, at+": duplicate question_id")
		}
		seen[q.ID] = true

		switch q.Type {
		case TypeMCQ:
			if len(q.Options) != 4 {
				problems = append(problems, fmt.Sprintf("%s: MCQ must have 4 options, got %d", at, len(q.Options)))
			} else if !distinct(q.Options) {
				problems = append(problems, at+": MCQ options must be distinct")
			}
			if q.Answer < 0 || q.Answer > 3 {
				problems = append(problems, fmt.Sprintf("%s: MCQ answer %d out of range 0-3", at, q.Answer))
			}
		case TypeInteger:
			if len(q.Options) != 0 {
				problems = append(problems, at+": Integer question must have no options")
			}
			if q.Answer < 0 {
				problems = append(problems, fmt.Sprintf("%s: Integer answer %d must be non-negative", at, q.Answer))
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown type %q", at, q.Type))
		}

		switch q.Subject {
		case SubjectMathematics, SubjectPhysics, SubjectChemistry:
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown subject %q", at, q.Subject))
		}

		if !imageURLRe.MatchString(q.Image) {
			problems = append(problems, at+": invalid image URL")
		}
	}
	return problems
}

func distinct(ss []string) bool {
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if seen[s] {
			return false
		}
		seen[s] = true
	}
	return true
}

// ComputeSubjectBoundaries folds the paper's question order into
// contiguous [start, end) index ranges per subject. The presentation
// layer uses these for subject-wise breakdowns; scoring only passes
// them through.
func ComputeSubjectBoundaries(qs []Question) []SubjectRange {
	var out []SubjectRange
	for i, q := range qs {
		if n := len(out); n > 0 && out[n-1].Subject == q.Subject {
			out[n-1].End = i + 1
			continue
		}
		out = append(out, SubjectRange{Subject: q.Subject, Start: i, End: i + 1})
	}
	return out
}
