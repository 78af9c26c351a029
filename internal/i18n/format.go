package i18n

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// tenThousand is the base of the Chinese 万 unit
	tenThousand = 10000

	// distanceScaleThreshold is where distances switch to a scaled unit
	distanceScaleThreshold = 1000
)

// FormatDistance renders a distance in kilometres for the locale
func FormatDistance(km float64, locale Locale) string {
	if locale.IsSecondary() {
		if km >= distanceScaleThreshold {
			return fixed(km/1000, 1) + "k km"
		}
		return plain(km) + " km"
	}

	if km >= distanceScaleThreshold {
		return fixed(km/tenThousand, 1) + "万公里"
	}
	return plain(km) + "公里"
}

// FormatPrice renders a price in yuan
func FormatPrice(yuan float64) string {
	// compare at the precision that is printed below the threshold
	if math.Round(yuan*1000)/1000 >= tenThousand {
		return "¥" + fixed(yuan/tenThousand, 0) + "万"
	}
	p := message.NewPrinter(language.Chinese)
	return "¥" + p.Sprintf("%v", number.Decimal(yuan, number.MaxFractionDigits(3)))
}

// fixed rounds half away from zero and prints exactly digits decimals
func fixed(v float64, digits int) string {
	p := math.Pow10(digits)
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', digits, 64)
}

// plain prints v without exponent or trailing zeros
func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
