package sentiment

import (
	"regexp"
	"slices"
	"strings"
)

var tickerPattern = regexp.MustCompile(`\$([A-Z]{1,5})`)

// ExtractTickers finds cashtags ($ followed by 1 to 5 letters, any case) and
// returns them uppercased, deduplicated and sorted.
func ExtractTickers(text string) []string {
	matches := tickerPattern.FindAllStringSubmatch(strings.ToUpper(text), -1)
	if len(matches) == 0 {
		return nil
	}

	tickers := make([]string, 0, len(matches))
	for _, m := range matches {
		tickers = append(tickers, m[1])
	}
	slices.Sort(tickers)
	return slices.Compact(tickers)
}
