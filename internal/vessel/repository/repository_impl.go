package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/vessel/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, vessel *domain.Vessel) (*domain.Vessel, error) {
	if vessel == nil {
		return nil, domain.ErrInvalidVessel
	}
	registration := strings.TrimSpace(vessel.RegistrationNumber)
	if registration == "" {
		return nil, domain.ErrInvalidRegistration
	}

	if err := db.WithContext(ctx).Exec(
		`INSERT INTO vessels (
			id, name, type, length, flag, registration_number,
			manufacturing_year, engine_power, hull_material, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (registration_number) DO NOTHING`,
		vessel.ID,
		vessel.Name,
		vessel.Type,
		vessel.Length,
		vessel.Flag,
		registration,
		vessel.ManufacturingYear,
		vessel.EnginePower,
		vessel.HullMaterial,
		vessel.CreatedAt,
		vessel.UpdatedAt,
	).Error; err != nil {
		return nil, err
	}

	var item domain.Vessel
	if err := db.WithContext(ctx).Raw(
		`SELECT id, name, type, length, flag, registration_number,
			manufacturing_year, engine_power, hull_material, created_at, updated_at
		 FROM vessels
		 WHERE registration_number = ?
		 LIMIT 1`,
		registration,
	).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Vessel, error) {
	var item domain.Vessel
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, type, length, flag, registration_number,
			manufacturing_year, engine_power, hull_material, created_at, updated_at
		 FROM vessels
		 WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
