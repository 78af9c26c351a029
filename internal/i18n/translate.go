package i18n

import "strings"

// attributeDictionary maps Chinese domain terms to their English display form
var attributeDictionary = map[string]string{
	// Fuel types
	"汽油":   "Gasoline",
	"柴油":   "Diesel",
	"纯电动":  "Electric",
	"插电混动": "PHEV",
	"油电混动": "Hybrid",

	// Transmission
	"自动挡":     "Automatic",
	"手动挡":     "Manual",
	"手自一体":    "Auto-Manual",
	"CVT无级变速": "CVT",
	"双离合":     "Dual Clutch",

	// Body types
	"轿车":  "Sedan",
	"SUV": "SUV",
	"MPV": "MPV",
	"跑车":  "Sports Car",
	"旅行车": "Wagon",
	"皮卡":  "Pickup",
	"面包车": "Van",
}

// Translate returns the display form of an enumerated attribute value.
// Unknown values pass through trimmed.
func Translate(value string, target Locale) string {
	clean := strings.TrimSpace(value)
	if !target.IsSecondary() {
		return clean
	}

	if translated, ok := attributeDictionary[clean]; ok {
		return translated
	}
	return clean
}

// TranslateAll applies Translate to every value
func TranslateAll(values []string, target Locale) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Translate(v, target)
	}
	return out
}
