package domain

import "github.com/shopspring/decimal"

// MaxQuantity é o teto de quantidade por linha do carrinho.
const MaxQuantity = 99

// Item é uma linha do carrinho: uma experiência reservada para uma data.
type Item struct {
	ID           string          `json:"id" validate:"required"`
	ExperienceID string          `json:"experienceId" validate:"required"`
	Title        string          `json:"title" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity" validate:"gte=1,lte=99"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	Participants int             `json:"participants" validate:"gte=1"`
}

// Subtotal = price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
