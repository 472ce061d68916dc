package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricePolicy переводит закупочную цену в розничную через делители маржи:
// retail = cost / divisor. Целевой делитель даёт желаемую маржу,
// минимальный — нижнюю допустимую границу цены. Чистая функция.
type PricePolicy struct {
	target decimal.Decimal
	min    decimal.Decimal
}

func NewPricePolicy(targetDivisor, minDivisor float64) (*PricePolicy, error) {
	if targetDivisor <= 0 || targetDivisor > 1 {
		return nil, fmt.Errorf("target divisor %v out of range (0, 1]", targetDivisor)
	}
	if minDivisor <= 0 || minDivisor > 1 {
		return nil, fmt.Errorf("min divisor %v out of range (0, 1]", minDivisor)
	}
	return &PricePolicy{
		target: decimal.NewFromFloat(targetDivisor),
		min:    decimal.NewFromFloat(minDivisor),
	}, nil
}

// RetailPrice считает розничную цену по делителю с округлением до целого
// тенге (валюта без дробной части).
func RetailPrice(baseCost int64, divisor decimal.Decimal) int64 {
	return decimal.NewFromInt(baseCost).Div(divisor).Round(0).IntPart()
}

// Retail возвращает цену по целевому делителю, но не ниже цены
// минимально допустимой маржи.
func (p *PricePolicy) Retail(baseCost int64) int64 {
	price := RetailPrice(baseCost, p.target)
	floor := p.Floor(baseCost)
	if price < floor {
		return floor
	}
	return price
}

// Floor — минимально допустимая розничная цена для закупочной.
func (p *PricePolicy) Floor(baseCost int64) int64 {
	return RetailPrice(baseCost, p.min)
}
