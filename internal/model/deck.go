package model

import (
	"math"
	"strconv"
)

// Deck is the ordered set of allowed vote values for a room.
type Deck []string

// DaysDeck is the default deck: day estimates 1-10 plus the non-numeric
// "unsure" and "break" cards.
var DaysDeck = Deck{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "?", "☕"}

// Contains reports whether v is a legal vote for this deck.
func (d Deck) Contains(v string) bool {
	for _, card := range d {
		if card == v {
			return true
		}
	}
	return false
}

// NumericValue parses a vote value as a number. Non-numeric cards such as
// "?" and "☕" count toward participation but never toward the average.
func NumericValue(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Average computes the arithmetic mean of the numeric votes in the map,
// rounded to one decimal. Returns nil when no numeric votes are present.
func Average(votes map[string]string) *float64 {
	var sum float64
	var n int
	for _, v := range votes {
		if f, ok := NumericValue(v); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*10) / 10
	return &avg
}
