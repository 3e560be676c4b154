package finder

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/zachfi/radiogo/pkg/radiobrowser"
)

// sortStations orders stations by country, then state, then name. Each key
// is compared after Unicode case folding, so empty values sort first. The
// sort is stable: stations equal on all three keys keep directory order.
func sortStations(stations []radiobrowser.Station) {
	fold := cases.Fold()

	sort.SliceStable(stations, func(i, j int) bool {
		a, b := stations[i], stations[j]
		if c := strings.Compare(fold.String(a.Country), fold.String(b.Country)); c != 0 {
			return c < 0
		}
		if c := strings.Compare(fold.String(a.State), fold.String(b.State)); c != 0 {
			return c < 0
		}
		return fold.String(a.Name) < fold.String(b.Name)
	})
}
