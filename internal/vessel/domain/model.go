package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("vessel_not_found")
	ErrInvalidRegistration = errors.New("invalid_registration_number")
	ErrInvalidVessel       = errors.New("invalid_vessel")
)

type Type string

const (
	TypeSailboat  Type = "yelkenli"
	TypeMotorBoat Type = "motorlu"
	TypeCatamaran Type = "katamaran"
	TypeYacht     Type = "yat"
	TypeOther     Type = "di_er"
)

var typeLabels = map[Type]string{
	TypeSailboat:  "Sailboat",
	TypeMotorBoat: "Motor Boat",
	TypeCatamaran: "Catamaran",
	TypeYacht:     "Yacht",
	TypeOther:     "Other",
}

func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Label returns the display name, falling back to the raw code.
func (t Type) Label() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

type Vessel struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	Name               string       `json:"name"`
	Type               Type         `json:"type"`
	Length             float64      `json:"length"`
	Flag               string       `json:"flag"`
	RegistrationNumber string       `json:"registration_number"`
	ManufacturingYear  *int         `json:"manufacturing_year,omitempty"`
	EnginePower        string       `json:"engine_power,omitempty"`
	HullMaterial       string       `json:"hull_material,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (Vessel) TableName() string { return "vessels" }

type Repository interface {
	// Upsert inserts the vessel unless its registration number already
	// exists, and returns the stored row either way.
	Upsert(ctx context.Context, db *gorm.DB, vessel *Vessel) (*Vessel, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Vessel, error)
}
