package prayer

import (
	"fmt"
	"strings"
)

// Method is a named astronomical calculation convention.
type Method int

const (
	MuslimWorldLeague Method = iota
	ISNA
	Egyptian
	UmmAlQura
	Karachi
	Tehran
	Dubai
	Kuwait
	Qatar
	Singapore
	Turkey
	MoonsightingCommittee
)

var methodNames = []string{
	"MuslimWorldLeague", "ISNA", "Egyptian", "UmmAlQura", "Karachi", "Tehran",
	"Dubai", "Kuwait", "Qatar", "Singapore", "Turkey", "MoonsightingCommittee",
}

// Methods lists every supported method in display order.
var Methods = []Method{
	MuslimWorldLeague, ISNA, Egyptian, UmmAlQura, Karachi, Tehran,
	Dubai, Kuwait, Qatar, Singapore, Turkey, MoonsightingCommittee,
}

// MethodDescriptions gives a human-readable label for each method.
var MethodDescriptions = map[Method]string{
	MuslimWorldLeague:     "Muslim World League (MWL)",
	ISNA:                  "Islamic Society of North America (ISNA)",
	Egyptian:              "Egyptian General Authority of Survey",
	UmmAlQura:             "Umm Al-Qura University, Makkah",
	Karachi:               "University of Islamic Sciences, Karachi",
	Tehran:                "Institute of Geophysics, University of Tehran",
	Dubai:                 "Dubai (experimental)",
	Kuwait:                "Kuwait",
	Qatar:                 "Qatar",
	Singapore:             "Majlis Ugama Islam Singapura (Singapore)",
	Turkey:                "Diyanet Isleri Baskanligi, Turkey",
	MoonsightingCommittee: "Moonsighting Committee Worldwide",
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod accepts a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	for i, name := range methodNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("unknown calculation method %q; valid methods: %s", s, strings.Join(methodNames, ", "))
}

// Madhab selects the shadow factor used for Asr.
type Madhab int

const (
	Shafi Madhab = iota
	Hanafi
)

func (m Madhab) String() string {
	switch m {
	case Shafi:
		return "Shafi"
	case Hanafi:
		return "Hanafi"
	default:
		return fmt.Sprintf("Madhab(%d)", int(m))
	}
}

// ShadowFactor is the Asr shadow length multiplier (1 for Shafi, 2 for Hanafi).
func (m Madhab) ShadowFactor() float64 {
	if m == Hanafi {
		return 2
	}
	return 1
}

// ParseMadhab accepts "Shafi" or "Hanafi", case-insensitively.
func ParseMadhab(s string) (Madhab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shafi":
		return Shafi, nil
	case "hanafi":
		return Hanafi, nil
	default:
		return 0, fmt.Errorf("unknown madhab %q; must be Shafi or Hanafi", s)
	}
}

// HighLatitudeRule picks the fallback used when twilight angles are never
// reached during the night.
type HighLatitudeRule int

const (
	MiddleOfTheNight HighLatitudeRule = iota
	SeventhOfTheNight
	TwilightAngle
)

var highLatNames = []string{"MiddleOfTheNight", "SeventhOfTheNight", "TwilightAngle"}

func (r HighLatitudeRule) String() string {
	if r < 0 || int(r) >= len(highLatNames) {
		return fmt.Sprintf("HighLatitudeRule(%d)", int(r))
	}
	return highLatNames[r]
}

// ParseHighLatitudeRule accepts a rule name, case-insensitively.
func ParseHighLatitudeRule(s string) (HighLatitudeRule, error) {
	for i, name := range highLatNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return HighLatitudeRule(i), nil
		}
	}
	return 0, fmt.Errorf("unknown high latitude rule %q; valid rules: %s", s, strings.Join(highLatNames, ", "))
}

// Settings are the user's calculation preferences. The calculator reads
// them on every computation and never mutates them.
type Settings struct {
	Method           Method           `json:"method"`
	Madhab           Madhab           `json:"madhab"`
	HighLatitudeRule HighLatitudeRule `json:"high_latitude_rule"`
}

// DefaultSettings returns MWL / Shafi / MiddleOfTheNight.
func DefaultSettings() Settings {
	return Settings{
		Method:           MuslimWorldLeague,
		Madhab:           Shafi,
		HighLatitudeRule: MiddleOfTheNight,
	}
}

// String returns a stable representation, also used in cache keys.
func (s Settings) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Method, s.Madhab, s.HighLatitudeRule)
}
