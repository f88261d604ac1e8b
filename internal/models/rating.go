package models

// RatingBand is one of the seven ordered ESG rating labels.
type RatingBand string

const (
	RatingAPlus RatingBand = "A+"
	RatingA     RatingBand = "A"
	RatingBPlus RatingBand = "B+"
	RatingB     RatingBand = "B"
	RatingCPlus RatingBand = "C+"
	RatingC     RatingBand = "C"
	RatingD     RatingBand = "D"
)

// RatingBands lists every band, best first.
var RatingBands = []RatingBand{RatingAPlus, RatingA, RatingBPlus, RatingB, RatingCPlus, RatingC, RatingD}

var ratingCategories = map[RatingBand]string{
	RatingAPlus: "Leadership",
	RatingA:     "Advanced",
	RatingBPlus: "Good",
	RatingB:     "Progressing",
	RatingCPlus: "Average",
	RatingC:     "Basic",
	RatingD:     "Nascent",
}

// Valid reports whether r is a known band.
func (r RatingBand) Valid() bool {
	_, ok := ratingCategories[r]
	return ok
}

// Category returns the descriptive category shown next to a band,
// or "" for unknown bands.
func (r RatingBand) Category() string {
	return ratingCategories[r]
}

func (r RatingBand) String() string {
	return string(r)
}
