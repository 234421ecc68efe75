package yearsummary

// CatalogVersion changes whenever the static data below changes. It is part
// of the cache key so stale summaries are not served after an edit.
const CatalogVersion = "v1"

// Period is a half-open range of years [From, To) with its label.
type Period struct {
	From, To int
	Label    string
}

// DefaultPeriodLabel applies to years outside every period.
const DefaultPeriodLabel = "significant period in Indian history"

// Periods is sorted by From and non-overlapping.
var Periods = []Period{
	{1, 320, "Ancient Indian kingdoms period"},
	{320, 551, "Gupta Empire period"},
	{1200, 1526, "Delhi Sultanate period"},
	{1526, 1857, "Mughal Empire period"},
	{1857, 1858, "First War of Independence"},
	{1858, 1948, "British Colonial period"},
	{1948, 1951, "Independence and Partition era"},
	{1951, 1976, "Early Republic period"},
	{1976, 1978, "Emergency period"},
	{1991, 2001, "Economic liberalization era"},
	{2001, 2011, "IT boom and modernization period"},
}

// PeriodLabel returns the label of the period containing year.
func PeriodLabel(year int) string {
	for _, p := range Periods {
		if year >= p.From && year < p.To {
			return p.Label
		}
	}
	return DefaultPeriodLabel
}

// MonthDay is a calendar day without a year.
type MonthDay struct {
	Month, Day int
}

// SignificantDates are scanned in this order; results keep it.
var SignificantDates = []MonthDay{
	{1, 26},  // Republic Day
	{8, 15},  // Independence Day
	{10, 2},  // Gandhi Jayanti
	{11, 14}, // Children's Day
	{4, 13},  // Jallianwala Bagh
	{3, 12},  // Salt March
}

// Keywords select on-this-day events related to India. Matching is a
// case-insensitive substring test.
var Keywords = []string{
	"india", "indian", "delhi", "mumbai", "calcutta", "kolkata",
	"chennai", "madras", "bengal", "punjab", "gandhi", "nehru",
	"british raj", "mughal", "maratha",
}

const (
	maxTopical  = 5
	maxPeople   = 5
	maxTimeline = 8
	maxPrompts  = 4
	maxNarrated = 3

	topicalQuery = "India %d events history politics independence"
	peopleQuery  = "Indian born %d died %d biography politician freedom fighter"

	narrativeOpening = "In %d, India experienced significant historical developments."
	narrativeClosing = "These events played crucial roles in shaping the Indian subcontinent's political, social, and cultural landscape."
	eventPrompt      = "An artistic scene depicting the Indian historical event in %d: %s"

	defaultEventTitle  = "Historical Event in India"
	defaultEventImpact = "Significant impact on Indian history"

	fallbackTitle   = "Historical developments in India during %d"
	fallbackSummary = "%d was part of the %s in Indian history. This year saw various political, social, and cultural developments that contributed to shaping modern India."
)

var fallbackPrompts = []string{
	"Historical scene from India in %[1]d showing the %[2]s",
	"Artistic representation of Indian life and society in %[1]d",
	"Cultural and architectural aspects of India in %[1]d",
	"Indian historical figures and events from %[1]d",
}
