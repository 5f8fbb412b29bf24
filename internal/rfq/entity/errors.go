package entity

import "errors"

var (
	ErrInvalidQuotePrice  = errors.New("报价金额必须大于0")
	ErrQuotePriceTooLarge = errors.New("报价金额超出系统允许的最大值")
)
