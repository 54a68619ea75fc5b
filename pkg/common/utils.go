package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const matriculePrefix = "CLT"

var matriculePattern = regexp.MustCompile(`^CLT(\d{3,})$`)

// Guinean mobile numbers: optional +224 country code, then 6 and 8 digits.
var phonePattern = regexp.MustCompile(`^(\+?224)?6[0-9]{8}$`)

// GenerateReference returns a unique reference number for a ledger entry.
func GenerateReference() string {
	return uuid.NewString()
}

// FormatMatricule renders a sequence number as a client registration code,
// zero-padded to three digits (CLT001, CLT042, CLT1205).
func FormatMatricule(seq int) string {
	return fmt.Sprintf("%s%03d", matriculePrefix, seq)
}

// ParseMatricule extracts the sequence number from a registration code.
func ParseMatricule(matricule string) (int, bool) {
	m := matriculePattern.FindStringSubmatch(strings.TrimSpace(matricule))
	if m == nil {
		return 0, false
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return seq, true
}

// ValidPhone reports whether s is an acceptable mobile number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

var frenchMonths = [12]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// MonthLabel returns the human-facing period label, e.g. "Mars 2025".
func MonthLabel(mois, annee int) string {
	if mois < 1 || mois > 12 {
		return fmt.Sprintf("%d-%d", mois, annee)
	}
	return fmt.Sprintf("%s %d", frenchMonths[mois-1], annee)
}

// PeriodRange returns the half-open interval [start, end) covering a
// calendar month in the local timezone.
func PeriodRange(mois, annee int) (time.Time, time.Time) {
	start := time.Date(annee, time.Month(mois), 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 1, 0)
}

// ParseMoisAnnee parses a "YYYY-MM" period string.
func ParseMoisAnnee(s string) (mois, annee int, err error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
	}
	return int(t.Month()), t.Year(), nil
}
