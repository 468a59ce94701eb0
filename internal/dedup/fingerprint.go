// Package dedup provides content fingerprinting and the store-backed
// duplicate filter for imported transactions.
package dedup

import (
	"strconv"
	"time"
)

// stampLayout truncates a local wall-clock instant to minute precision.
const stampLayout = "2006-01-02 15:04"

// LocalStamp formats the transaction date as a local "YYYY-MM-DD HH:MM"
// string. The date is taken in its own location and never converted to a UTC
// instant first: a transaction recorded at 23:58 local time must hash the
// same on every host, and a UTC round-trip would move it across the date
// boundary on some of them.
func LocalStamp(date time.Time) string {
	return date.Format(stampLayout)
}

// Fingerprint builds the content hash of a transaction from its local
// minute-precision date, description, amount and currency.
// Input: "{YYYY-MM-DD HH:MM}|{description}|{amount}|{currency}", passed
// through a 31-polynomial rolling hash over int32 and rendered in decimal.
func Fingerprint(date time.Time, description string, amount float64, currency string) string {
	input := LocalStamp(date) + "|" + description + "|" +
		strconv.FormatFloat(amount, 'f', -1, 64) + "|" + currency

	var h int32
	for _, r := range input {
		h = 31*h + int32(r)
	}
	return strconv.FormatInt(int64(h), 10)
}
