package weather

import (
	"strings"
)

// Condition is a normalized weather condition keyword as understood by
// home-automation weather entities.
type Condition string

const (
	ConditionUnknown        Condition = ""
	ConditionClearNight     Condition = "clear-night"
	ConditionCloudy         Condition = "cloudy"
	ConditionFog            Condition = "fog"
	ConditionLightning      Condition = "lightning"
	ConditionLightningRainy Condition = "lightning-rainy"
	ConditionPartlyCloudy   Condition = "partlycloudy"
	ConditionPouring        Condition = "pouring"
	ConditionRainy          Condition = "rainy"
	ConditionSnowy          Condition = "snowy"
	ConditionSnowyRainy     Condition = "snowy-rainy"
	ConditionSunny          Condition = "sunny"
	ConditionWindy          Condition = "windy"
	ConditionWindyVariant   Condition = "windy-variant"
)

// ConditionCode is one row of the NEA two-letter weather code table.
type ConditionCode struct {
	Code        string
	Description string
	Condition   Condition
}

// conditionCodes maps each NEA code to its canonical description and
// normalized condition.
var conditionCodes = []ConditionCode{
	{"BR", "Mist", ConditionFog},
	{"CL", "Cloudy", ConditionCloudy},
	{"DR", "Drizzle", ConditionRainy},
	{"FA", "Fair (Day)", ConditionSunny},
	{"FG", "Fog", ConditionFog},
	{"FN", "Fair (Night)", ConditionClearNight},
	{"FW", "Fair & Warm", ConditionSunny},
	{"HG", "Heavy Thundery Showers with Gusty Winds", ConditionLightning},
	{"HR", "Heavy Rain", ConditionPouring},
	{"HS", "Heavy Showers", ConditionPouring},
	{"HT", "Heavy Thundery Showers", ConditionLightning},
	{"HZ", "Hazy", ConditionFog},
	{"LH", "Slightly Hazy", ConditionFog},
	{"LR", "Light Rain", ConditionRainy},
	{"LS", "Light Showers", ConditionRainy},
	{"OC", "Overcast", ConditionCloudy},
	{"PC", "Partly Cloudy (Day)", ConditionPartlyCloudy},
	{"PN", "Partly Cloudy (Night)", ConditionPartlyCloudy},
	{"PS", "Passing Showers", ConditionRainy},
	{"RA", "Moderate Rain", ConditionRainy},
	{"SH", "Showers", ConditionRainy},
	{"SK", "Strong Winds, Showers", ConditionPouring},
	{"SN", "Snow", ConditionSnowy},
	{"SR", "Strong Winds, Rain", ConditionRainy},
	{"SS", "Snow Showers", ConditionSnowyRainy},
	{"SU", "Sunny", ConditionSunny},
	{"SW", "Strong Winds", ConditionWindy},
	{"TL", "Thundery Showers", ConditionLightningRainy},
	{"WC", "Windy, Cloudy", ConditionWindyVariant},
	{"WD", "Windy", ConditionWindy},
	{"WF", "Windy, Fair", ConditionWindy},
	{"WR", "Windy, Rain", ConditionRainy},
	{"WS", "Windy, Showers", ConditionRainy},
}

// Descriptions the primary API also emits without the day/night suffix.
var descriptionAliases = map[string]string{
	"Fair":          "FA",
	"Partly Cloudy": "PC",
}

var (
	codesByCode        = make(map[string]ConditionCode, len(conditionCodes))
	codesByDescription = make(map[string]ConditionCode, len(conditionCodes)+len(descriptionAliases))
)

func init() {
	for _, c := range conditionCodes {
		codesByCode[c.Code] = c
		codesByDescription[strings.ToLower(c.Description)] = c
	}
	for desc, code := range descriptionAliases {
		c := codesByCode[code]
		codesByDescription[strings.ToLower(desc)] = ConditionCode{Code: code, Description: desc, Condition: c.Condition}
	}
}

// LookupCode resolves a two-letter NEA code, case-insensitively.
func LookupCode(code string) (ConditionCode, bool) {
	c, ok := codesByCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// LookupDescription resolves a forecast description such as "Light Rain".
func LookupDescription(desc string) (ConditionCode, bool) {
	c, ok := codesByDescription[strings.ToLower(strings.TrimSpace(desc))]
	return c, ok
}

// ConditionForDescription returns the normalized condition for a forecast
// description, or ConditionUnknown.
func ConditionForDescription(desc string) Condition {
	c, _ := LookupDescription(desc)
	return c.Condition
}

// outlookKeywords is checked in order against the lower-cased free-form
// 4-day forecast text; the first match wins.
var outlookKeywords = []struct {
	keyword   string
	condition Condition
}{
	{"thundery showers", ConditionLightningRainy},
	{"partly cloudy", ConditionPartlyCloudy},
	{"rain", ConditionRainy},
	{"showers", ConditionRainy},
	{"fair", ConditionSunny},
	{"hazy", ConditionFog},
	{"cloudy", ConditionCloudy},
	{"overcast", ConditionCloudy},
	{"windy", ConditionWindy},
}

// MatchOutlookCondition maps a free-form forecast sentence to a condition.
func MatchOutlookCondition(text string) (Condition, bool) {
	lower := strings.ToLower(text)
	for _, k := range outlookKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.condition, true
		}
	}
	return ConditionUnknown, false
}
