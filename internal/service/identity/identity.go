// Package identity generates employee codes and usernames for provisioned
// accounts.
//
// Codes follow EMP + YY + department(2) + role(0-1) + NNN. The NNN part is a
// named counter owned by the store; this package only formats codes and
// derives the counter key, so the counter can be incremented inside the same
// transaction that inserts the account.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ignite/onboarding/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSequence is the largest sequence a 3-digit code can hold.
const MaxSequence = 999

// ErrSequenceExhausted is returned when a (year, department, role) key has
// used every 3-digit sequence value.
var ErrSequenceExhausted = errors.New("employee code sequence exhausted")

// departmentCodes maps normalized department names to their 2-char code.
var departmentCodes = map[string]string{
	"administration":         "AD",
	"customer support":       "CS",
	"engineering":            "EN",
	"finance":                "FN",
	"human resources":        "HR",
	"information technology": "IT",
	"it":                     "IT",
	"legal":                  "LG",
	"marketing":              "MK",
	"operations":             "OP",
	"product":                "PD",
	"research":               "RD",
	"sales":                  "SL",
}

// roleCodes maps roles to their optional 1-char code.
var roleCodes = map[domain.Role]string{
	domain.RoleEmployee: "",
	domain.RoleManager:  "M",
	domain.RoleHR:       "H",
	domain.RoleAdmin:    "A",
}

// DepartmentCode returns the 2-char code for a department. Unknown
// departments use their first two letters, or "GN" when there are none.
func DepartmentCode(department string) string {
	key := strings.ToLower(strings.Join(strings.Fields(department), " "))
	if code, ok := departmentCodes[key]; ok {
		return code
	}
	letters := make([]rune, 0, 2)
	for _, r := range foldASCII(department) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 2 {
				return string(letters)
			}
		}
	}
	return "GN"
}

// RoleCode returns the role suffix of an employee code.
func RoleCode(role domain.Role) string {
	return roleCodes[role]
}

// SequenceKey names the counter for a (year, department, role) triple.
func SequenceKey(year int, department string, role domain.Role) string {
	return fmt.Sprintf("%02d%s%s", year%100, DepartmentCode(department), RoleCode(role))
}

// EmployeeCode formats a code from its parts.
func EmployeeCode(year int, department string, role domain.Role, seq int) (string, error) {
	if seq < 1 {
		return "", fmt.Errorf("employee code sequence must be positive, got %d", seq)
	}
	if seq > MaxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("EMP%s%03d", SequenceKey(year, department, role), seq), nil
}

// Slugify turns a full name into a username base: lower-case ASCII words
// joined by underscores. "José  Núñez-Ortiz" becomes "jose_nunez_ortiz".
func Slugify(fullName string) string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range foldASCII(fullName) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			cur.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '.':
			// O'Brien -> obrien
		default:
			flush()
		}
	}
	flush()
	if len(words) == 0 {
		return "employee"
	}
	return strings.Join(words, "_")
}

// UsernameCandidate returns the n-th candidate for a base: base, base1, base2...
func UsernameCandidate(base string, n int) string {
	if n <= 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, n)
}

// foldASCII strips combining marks so accented letters fold to ASCII.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
