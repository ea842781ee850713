package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

var currencyHints = []struct {
	hints    []string
	currency string
}{
	{[]string{"kes", "kenyan shilling", "ksh"}, "KES"},
	{[]string{"ngn", "naira", "₦"}, "NGN"},
	{[]string{"zar", "rand"}, "ZAR"},
	{[]string{"ghs", "cedi"}, "GHS"},
	{[]string{"£", "gbp", "pound"}, "GBP"},
	{[]string{"€", "eur", "euro"}, "EUR"},
	{[]string{"$", "usd", "dollar"}, "USD"},
}

// Numbers that look like money: adjacent to a currency marker, or grouped
// with thousands separators. Bare numbers like years and day-of-month are
// deliberately not matched.
var (
	currencyLeadRegex  = regexp.MustCompile(`(?i)(?:[$€£₦]|usd|eur|gbp|kes|ngn|zar|ghs)\s?(\d[\d,]*(?:\.\d+)?)\s?(million|m\b|k\b)?`)
	currencyTrailRegex = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s?(million|m\b|k\b)?\s?(?:usd|eur|gbp|kes|ngn|zar|ghs)`)
	groupedNumberRegex = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b`)
)

// parseAmount extracts min/max amounts and a currency from free text. It is
// the local fallback for when the LLM extraction misses or is unavailable.
func parseAmount(text string, defaultCurrency string) (float64, float64, string) {
	textLower := strings.ToLower(text)

	currency := defaultCurrency
	if currency == "" {
		currency = "USD"
	}
	for _, c := range currencyHints {
		matched := false
		for _, hint := range c.hints {
			if strings.Contains(textLower, hint) {
				matched = true
				break
			}
		}
		if matched {
			currency = c.currency
			break
		}
	}

	var amounts []float64
	appendAmount := func(number, multiplier string) {
		val, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
		if err != nil || val <= 0 {
			return
		}
		switch strings.ToLower(strings.TrimSpace(multiplier)) {
		case "million", "m":
			val *= 1_000_000
		case "k":
			val *= 1_000
		}
		amounts = append(amounts, val)
	}

	for _, m := range currencyLeadRegex.FindAllStringSubmatch(text, -1) {
		appendAmount(m[1], m[2])
	}
	for _, m := range currencyTrailRegex.FindAllStringSubmatch(text, -1) {
		appendAmount(m[1], m[2])
	}
	for _, m := range groupedNumberRegex.FindAllString(text, -1) {
		appendAmount(m, "")
	}

	if len(amounts) == 0 {
		return 0, 0, ""
	}

	min := amounts[0]
	max := amounts[0]
	for _, a := range amounts {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}

	if min == max {
		if strings.Contains(textLower, "minimum") || strings.Contains(textLower, "at least") {
			return max, 0, currency
		}
		// "up to", "maximum", or no qualifier: treat as the ceiling.
		return 0, max, currency
	}
	return min, max, currency
}
