package solar

import "github.com/smokyabdulrahman/prayer-companion/internal/prayer"

// MethodParams are the twilight parameters of a calculation method.
// IshaMinutes, when non-zero, places Isha a fixed interval after Maghrib
// instead of using IshaAngle.
type MethodParams struct {
	FajrAngle      float64
	IshaAngle      float64
	IshaMinutes    float64
	MaghribAngle   float64 // zero means Maghrib = sunset
	MaghribMinutes float64
}

var methodParams = map[prayer.Method]MethodParams{
	prayer.MuslimWorldLeague:     {FajrAngle: 18, IshaAngle: 17},
	prayer.ISNA:                  {FajrAngle: 15, IshaAngle: 15},
	prayer.Egyptian:              {FajrAngle: 19.5, IshaAngle: 17.5},
	prayer.UmmAlQura:             {FajrAngle: 18.5, IshaMinutes: 90},
	prayer.Karachi:               {FajrAngle: 18, IshaAngle: 18},
	prayer.Tehran:                {FajrAngle: 17.7, IshaAngle: 14, MaghribAngle: 4.5},
	prayer.Dubai:                 {FajrAngle: 18.2, IshaAngle: 18.2, MaghribMinutes: 3},
	prayer.Kuwait:                {FajrAngle: 18, IshaAngle: 17.5},
	prayer.Qatar:                 {FajrAngle: 18, IshaMinutes: 90},
	prayer.Singapore:             {FajrAngle: 20, IshaAngle: 18},
	prayer.Turkey:                {FajrAngle: 18, IshaAngle: 17},
	prayer.MoonsightingCommittee: {FajrAngle: 18, IshaAngle: 18},
}

// ParamsFor returns the parameters of m, falling back to MWL.
func ParamsFor(m prayer.Method) MethodParams {
	if p, ok := methodParams[m]; ok {
		return p
	}
	return methodParams[prayer.MuslimWorldLeague]
}
