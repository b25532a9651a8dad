package service

import (
	"sort"

	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PresentationOrder returns a sorted copy of cities: favorites first, then by
// name using case-insensitive collation. Equal entries keep their relative
// order, so applying it twice gives the same result. The input is not modified.
func PresentationOrder(cities []model.City) []model.City {
	out := model.CloneCities(cities)
	if out == nil {
		return []model.City{}
	}

	// A Collator is not safe for concurrent use.
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsFavorite != out[j].IsFavorite {
			return out[i].IsFavorite
		}
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}
