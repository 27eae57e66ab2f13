package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/testutil"
	"github.com/smallbiznis/translog/internal/vessel/domain"
	"github.com/smallbiznis/translog/internal/vessel/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLite(t)
	repo := repository.Provide()

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := repo.Upsert(ctx, db, &domain.Vessel{
		ID: node.Generate(), Name: "Blue Horizon", Type: domain.TypeSailboat, Length: 12.5,
		Flag: "GR", RegistrationNumber: "GR-1234", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, db, &domain.Vessel{
		ID: node.Generate(), Name: "Renamed", Type: domain.TypeYacht, Length: 30,
		Flag: "MT", RegistrationNumber: " GR-1234 ", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Blue Horizon", second.Name)
	assert.EqualValues(t, 1, testutil.Count(t, db, `SELECT COUNT(1) FROM vessels`))

	loaded, err := repo.FindByID(ctx, db, first.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, domain.TypeSailboat, loaded.Type)
}

func TestUpsertRequiresRegistration(t *testing.T) {
	db := testutil.NewSQLite(t)
	_, err := repository.Provide().Upsert(context.Background(), db, &domain.Vessel{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRegistration)
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "Motor Boat", domain.TypeMotorBoat.Label())
	assert.Equal(t, "Other", domain.TypeOther.Label())
	assert.Equal(t, "houseboat", domain.Type("houseboat").Label())
	assert.False(t, domain.Type("houseboat").Valid())
}
