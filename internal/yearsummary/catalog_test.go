package yearsummary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeriodsSortedAndNonOverlapping(t *testing.T) {
	for i, p := range Periods {
		assert.Less(t, p.From, p.To, "period %q is empty", p.Label)
		if i > 0 {
			assert.LessOrEqual(t, Periods[i-1].To, p.From, "period %q overlaps its predecessor", p.Label)
		}
	}
}

func TestPeriodLabel(t *testing.T) {
	cases := map[int]string{
		1:    "Ancient Indian kingdoms period",
		319:  "Ancient Indian kingdoms period",
		320:  "Gupta Empire period",
		550:  "Gupta Empire period",
		551:  DefaultPeriodLabel,
		1199: DefaultPeriodLabel,
		1200: "Delhi Sultanate period",
		1526: "Mughal Empire period",
		1857: "First War of Independence",
		1858: "British Colonial period",
		1947: "British Colonial period",
		1948: "Independence and Partition era",
		1950: "Independence and Partition era",
		1951: "Early Republic period",
		1975: "Early Republic period",
		1976: "Emergency period",
		1977: "Emergency period",
		1978: DefaultPeriodLabel,
		1991: "Economic liberalization era",
		2000: "Economic liberalization era",
		2001: "IT boom and modernization period",
		2010: "IT boom and modernization period",
		2011: DefaultPeriodLabel,
		2024: DefaultPeriodLabel,
	}
	for year, want := range cases {
		assert.Equal(t, want, PeriodLabel(year), "year %d", year)
	}
}

func TestSignificantDatesOrder(t *testing.T) {
	want := []MonthDay{{1, 26}, {8, 15}, {10, 2}, {11, 14}, {4, 13}, {3, 12}}
	assert.Equal(t, want, SignificantDates)
}
