package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validOrder() *Order {
	return &Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items: []OrderItem{
			{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("9.95")},
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("0.10")},
		},
		Status: StatusCreated,
	}
}

func TestOrder_CalculateTotal(t *testing.T) {
	o := validOrder()

	o.CalculateTotal()

	assert.True(t, o.Total.Equal(decimal.RequireFromString("20.00")), "total: %s", o.Total)
}

func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Order)
		valid  bool
	}{
		{"valido", func(*Order) {}, true},
		{"sin usuario", func(o *Order) { o.UserID = uuid.Nil }, false},
		{"sin lineas", func(o *Order) { o.Items = nil }, false},
		{"cantidad cero", func(o *Order) { o.Items[0].Quantity = 0 }, false},
		{"precio negativo", func(o *Order) { o.Items[1].UnitPrice = decimal.NewFromInt(-1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(o)
			if tt.valid {
				assert.NoError(t, o.Validate())
			} else {
				assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
			}
		})
	}
}

func TestOrder_CancelTwice(t *testing.T) {
	o := validOrder()
	now := time.Now().UTC()

	assert.NoError(t, o.Cancel("cliente", now))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.ErrorIs(t, o.Cancel("otra vez", now), ErrOrderAlreadyCancelled)
}
