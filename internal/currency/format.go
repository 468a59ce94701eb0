package currency

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"UAH": "₴",
	"PLN": "zł",
	"CHF": "CHF ",
	"CAD": "C$",
	"JPY": "¥",
}

// zeroDecimal currencies have no fractional subunit and render as grouped
// integers.
var zeroDecimal = map[string]bool{
	"JPY": true,
}

var printer = message.NewPrinter(language.English)

// FormatCurrency renders an amount with its currency symbol. Unknown codes
// fall back to the code itself as a prefix.
func FormatCurrency(amount float64, code string) string {
	sym, ok := symbols[code]
	if !ok {
		sym = code + " "
	}
	if zeroDecimal[code] {
		return sym + printer.Sprintf("%d", int64(math.Round(amount)))
	}
	return sym + fmt.Sprintf("%.2f", amount)
}
