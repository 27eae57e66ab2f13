package domain

import (
	"context"
	"errors"
)

var ErrCountryNotFound = errors.New("country_not_found")

type Country struct {
	Code string `json:"code" gorm:"primaryKey;column:code"`
	Name string `json:"name" gorm:"column:name"`
}

func (Country) TableName() string { return "countries" }

type Repository interface {
	ListCountries(ctx context.Context) ([]Country, error)
	FindCountry(ctx context.Context, code string) (*Country, error)
}
