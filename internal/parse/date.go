package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Year bounds for group detection. Years outside this window are treated
// as data cells, not period groups.
const (
	MinYear = 1950
	MaxYear = 2035
)

// Months is the fixed pt-BR month abbreviation table, in calendar order.
var Months = []string{"JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

var monthIndex = func() map[string]time.Month {
	m := make(map[string]time.Month, len(Months))
	for i, name := range Months {
		m[name] = time.Month(i + 1)
	}
	return m
}()

var longMonths = map[string]time.Month{
	"JANEIRO": time.January, "FEVEREIRO": time.February, "MARCO": time.March,
	"ABRIL": time.April, "MAIO": time.May, "JUNHO": time.June,
	"JULHO": time.July, "AGOSTO": time.August, "SETEMBRO": time.September,
	"OUTUBRO": time.October, "NOVEMBRO": time.November, "DEZEMBRO": time.December,
}

// Year parses a bare 4-digit year, range-checked.
func Year(text string) (int, bool) {
	s := strings.TrimSpace(text)
	// Sheets sometimes render years as "2020.0".
	s = strings.TrimSuffix(s, ".0")
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < MinYear || y > MaxYear {
		return 0, false
	}
	return y, true
}

// Month matches a cell against the abbreviation table (and the long month
// names), case- and accent-insensitive. Unmatched tokens yield false.
func Month(token string) (time.Month, bool) {
	t := strings.ToUpper(Fold(strings.TrimSpace(token)))
	if m, ok := monthIndex[t]; ok {
		return m, true
	}
	if m, ok := longMonths[t]; ok {
		return m, true
	}
	return 0, false
}

// quarterMonths maps each quarter to its middle month. Quarterly
// tables (unemployment rate) fold into the monthly fact layout at that
// month.
var quarterMonths = [...]time.Month{0, time.February, time.May, time.August, time.November}

var quarterLabel = regexp.MustCompile(`^(?:([1-4])\s*O?\s*(?:T|TRI(?:M(?:ESTRE)?)?)|(?:T|Q)\s*([1-4]))$`)

// Quarter matches quarter labels like "T1", "1T", "Q3" and
// "1º Trimestre", returning the quarter's middle month. Unmatched
// tokens yield false.
func Quarter(token string) (time.Month, bool) {
	t := strings.ToUpper(Fold(strings.TrimSpace(token)))
	m := quarterLabel.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	d := m[1]
	if d == "" {
		d = m[2]
	}
	q, err := strconv.Atoi(d)
	if err != nil || q < 1 || q > 4 {
		return 0, false
	}
	return quarterMonths[q], true
}

// MonthlyDate builds the canonical reference date for a monthly
// observation: day-of-month is always 1, UTC.
func MonthlyDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

var (
	monthSlashYear = regexp.MustCompile(`^([a-z]+)[/\-](\d{2,4})$`)
	numSlashYear   = regexp.MustCompile(`^(\d{1,2})[/\-](\d{4})$`)
	yearDashNum    = regexp.MustCompile(`^(\d{4})[/\-](\d{1,2})$`)
)

// Period parses free-form monthly period labels: "jan/24",
// "janeiro/2024", "01/2024", "2024-01". Unrecognized labels yield false.
func Period(text string) (time.Time, bool) {
	s := strings.ToLower(Fold(strings.TrimSpace(text)))

	if m := monthSlashYear.FindStringSubmatch(s); m != nil {
		month, ok := Month(m[1])
		if !ok {
			return time.Time{}, false
		}
		year, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, false
		}
		if year < 100 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		if year < MinYear || year > MaxYear {
			return time.Time{}, false
		}
		return MonthlyDate(year, month), true
	}

	if m := numSlashYear.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || year < MinYear || year > MaxYear {
			return time.Time{}, false
		}
		return MonthlyDate(year, time.Month(month)), true
	}

	if m := yearDashNum.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || year < MinYear || year > MaxYear {
			return time.Time{}, false
		}
		return MonthlyDate(year, time.Month(month)), true
	}

	return time.Time{}, false
}
