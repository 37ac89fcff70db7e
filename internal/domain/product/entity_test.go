package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndValues(t *testing.T) {
	p := New("p1", CreateInput{
		Title:        "  Dress ",
		Quantity:     4,
		BuyPrice:     decimal.NewFromInt(60),
		ShippingCost: decimal.NewFromInt(20),
		SellPrice:    decimal.NewFromInt(100),
	}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "Dress", p.Title)
	assert.Equal(t, StatusActive, p.Status)
	assert.True(t, p.Sellable())
	assert.True(t, p.UnitCost().Equal(decimal.NewFromInt(80)))
	assert.True(t, p.StockValue().Equal(decimal.NewFromInt(320)))
}

func TestApplyDelta(t *testing.T) {
	p := Product{Quantity: 3}
	tests := []struct {
		delta int
		want  int
		err   error
	}{
		{-3, 0, nil},
		{2, 5, nil},
		{-4, 3, ErrInsufficientStock},
	}
	for _, tt := range tests {
		got, err := p.ApplyDelta(tt.delta)
		assert.ErrorIs(t, err, tt.err)
		assert.Equal(t, tt.want, got)
	}
}

func TestApply(t *testing.T) {
	p := New("p1", CreateInput{Title: "Dress", Quantity: 1}, time.Now())

	neg := -1
	assert.ErrorIs(t, p.Apply(Patch{Quantity: &neg}, time.Now()), ErrInvalidQuantity)
	bad := Status("archived")
	assert.ErrorIs(t, p.Apply(Patch{Status: &bad}, time.Now()), ErrInvalidStatus)

	title := " Red Dress "
	rejected := StatusRejected
	later := time.Now().Add(time.Hour)
	require.NoError(t, p.Apply(Patch{Title: &title, Status: &rejected}, later))
	assert.Equal(t, "Red Dress", p.Title)
	assert.False(t, p.Sellable())
	assert.Equal(t, later.UTC(), p.UpdatedAt)
	assert.True(t, Patch{}.IsEmpty())
}

func TestSortByTitle(t *testing.T) {
	ps := []Product{{ID: "2", Title: "b"}, {ID: "1", Title: "B"}, {ID: "3", Title: "a"}}
	SortByTitle(ps)
	assert.Equal(t, []string{"3", "1", "2"}, []string{ps[0].ID, ps[1].ID, ps[2].ID})
}
