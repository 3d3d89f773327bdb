package service

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/leadline/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\-. ()]{7,}\d`)

	// "my name is Jane Doe", "I'm Jane", "this is Jane Doe"
	nameIntroRe = regexp.MustCompile(`(?:[Mm]y name is|[Ii]'m|[Ii] am|[Tt]his is|[Cc]all me)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	// "Jane Doe here"
	nameHereRe = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+here\b`)

	// "I work at Acme Corp", "we're from Initech"
	companyRe = regexp.MustCompile(`(?:[Ww]ork (?:at|for)|[Ii]'m (?:with|from)|[Ww]e'?re (?:at|from))\s+([A-Z][A-Za-z0-9&.\-]*(?:\s+[A-Z][A-Za-z0-9&.\-]*)?)`)
)

// ExtractContactInfo scans a message for contact signals. All fields are
// optional; an all-empty result means the message carried no identity.
func ExtractContactInfo(text string) domain.ContactInfo {
	var info domain.ContactInfo

	if m := emailRe.FindString(text); m != "" {
		info.Email = strings.ToLower(m)
	}

	// Strip any email before phone matching so digits in an address are not
	// mistaken for a number. Anything under 10 or over 14 digits is not a
	// dialable number.
	phoneSource := emailRe.ReplaceAllString(text, " ")
	if m := phoneRe.FindString(phoneSource); m != "" {
		if digits := countDigits(m); digits >= 10 && digits <= 14 {
			info.Phone = normalizePhone(m)
		}
	}

	if m := nameIntroRe.FindStringSubmatch(text); len(m) > 1 {
		info.Name = m[1]
	} else if m := nameHereRe.FindStringSubmatch(strings.TrimSpace(text)); len(m) > 1 {
		info.Name = m[1]
	}

	if m := companyRe.FindStringSubmatch(text); len(m) > 1 {
		info.Company = strings.TrimSpace(m[1])
	}

	return info
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// normalizePhone keeps digits and a leading plus.
func normalizePhone(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
