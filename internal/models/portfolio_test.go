package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolding_AllocationTreatsUnsetAsZero(t *testing.T) {
	assert.Equal(t, 0.0, Holding{}.Allocation())
	assert.Equal(t, 12.5, Holding{AUMValue: Float(12.5)}.Allocation())
}

func TestPortfolio_CloneIsDeep(t *testing.T) {
	band := RatingA
	p := &Portfolio{
		ID:   "7",
		Name: "Portfolio 1",
		Holdings: []Holding{
			{ID: "1", CompanyName: "Reliance", ISIN: "INE002A01018", AUMValue: Float(40), ESGComposite: Float(71), ESGRating: &band},
		},
	}

	c := p.Clone()
	*c.Holdings[0].AUMValue = 99
	*c.Holdings[0].ESGRating = RatingD
	c.Holdings[0].CompanyName = "changed"

	assert.Equal(t, 40.0, *p.Holdings[0].AUMValue)
	assert.Equal(t, RatingA, *p.Holdings[0].ESGRating)
	assert.Equal(t, "Reliance", p.Holdings[0].CompanyName)
}

func TestPortfolio_FindAndIsEmpty(t *testing.T) {
	var nilPortfolio *Portfolio
	assert.True(t, nilPortfolio.IsEmpty())
	assert.Nil(t, nilPortfolio.Find("1"))

	p := &Portfolio{Name: "P", Holdings: []Holding{{ID: "1"}, {ID: "2"}}}
	assert.False(t, p.IsEmpty())
	require.NotNil(t, p.Find("2"))
	assert.Nil(t, p.Find("3"))
}

func TestRatingBand_Category(t *testing.T) {
	tests := []struct {
		band RatingBand
		want string
	}{
		{RatingAPlus, "Leadership"},
		{RatingA, "Advanced"},
		{RatingBPlus, "Good"},
		{RatingB, "Progressing"},
		{RatingCPlus, "Average"},
		{RatingC, "Basic"},
		{RatingD, "Nascent"},
		{RatingBand("Z"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.band.Category(), "band %s", tt.band)
	}
	assert.Len(t, RatingBands, 7)
	assert.False(t, RatingBand("E").Valid())
}

func TestErrors_MatchableThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("save: %w", &PersistError{Op: "update holdings", Failed: []string{"3", "9"}, Err: cause})

	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"3", "9"}, pe.Failed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed holdings: 3, 9")

	var fe *FetchError
	assert.False(t, errors.As(err, &fe))
}

func TestAllocationExceededError_Message(t *testing.T) {
	err := &AllocationExceededError{Current: 98, Attempted: 2.01}
	assert.Equal(t, "total allocation would exceed 100%: current 98.00%, attempted 2.01%", err.Error())
}
