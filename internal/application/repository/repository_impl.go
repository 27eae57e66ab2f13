package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/application/domain"
	"gorm.io/gorm"
)

const applicationColumns = `applications.id, applications.vessel_id, applications.status, applications.status_event_at,
	applications.captain_name, applications.captain_nationality, applications.captain_passport,
	applications.departure_port, applications.arrival_port, applications.departure_date, applications.arrival_date,
	applications.crew_count, applications.passenger_count, applications.purpose,
	applications.contact_email, applications.contact_phone, applications.company_name, applications.address,
	applications.emergency_contact, applications.special_requests, applications.insurance_information,
	applications.previous_visits, applications.payment_reference, applications.payment_amount,
	applications.payment_currency, applications.created_at, applications.updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO applications (
			id, vessel_id, status, status_event_at, captain_name, captain_nationality, captain_passport,
			departure_port, arrival_port, departure_date, arrival_date, crew_count, passenger_count,
			purpose, contact_email, contact_phone, company_name, address, emergency_contact,
			special_requests, insurance_information, previous_visits, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID,
		app.VesselID,
		app.Status,
		app.StatusEventAt,
		app.CaptainName,
		app.CaptainNationality,
		app.CaptainPassport,
		app.DeparturePort,
		app.ArrivalPort,
		app.DepartureDate,
		app.ArrivalDate,
		app.CrewCount,
		app.PassengerCount,
		app.Purpose,
		app.ContactEmail,
		app.ContactPhone,
		app.CompanyName,
		app.Address,
		app.EmergencyContact,
		app.SpecialRequests,
		app.InsuranceInformation,
		app.PreviousVisits,
		app.CreatedAt,
		app.UpdatedAt,
	).Error
}

func (r *repo) InsertDocuments(ctx context.Context, db *gorm.DB, docs []domain.Document) error {
	for _, doc := range docs {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO application_documents (
				id, application_id, category, original_name, storage_path, url,
				media_type, size_bytes, uploaded_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID,
			doc.ApplicationID,
			doc.Category,
			doc.OriginalName,
			doc.StoragePath,
			doc.URL,
			doc.MediaType,
			doc.SizeBytes,
			doc.UploadedAt,
			doc.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertPassengers(ctx context.Context, db *gorm.DB, passengers []domain.Passenger) error {
	for _, p := range passengers {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO passengers (
				id, application_id, position, first_name, last_name, nationality,
				passport_number, passport_expiry, birth_date, birth_place, gender,
				passport_scan_url, passport_scan_path, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID,
			p.ApplicationID,
			p.Position,
			p.FirstName,
			p.LastName,
			p.Nationality,
			p.PassportNumber,
			p.PassportExpiry,
			p.BirthDate,
			p.BirthPlace,
			p.Gender,
			p.PassportScanURL,
			p.PassportScanPath,
			p.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Application, error) {
	var item domain.Application
	err := db.WithContext(ctx).Raw(
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE applications.id = ?`,
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

func (r *repo) FindStatus(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.Status, bool, error) {
	var row struct {
		ID     snowflake.ID
		Status domain.Status
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, status FROM applications WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return "", false, err
	}
	if row.ID == 0 {
		return "", false, nil
	}
	return row.Status, true, nil
}

func (r *repo) ListDocuments(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]domain.Document, error) {
	var docs []domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT id, application_id, category, original_name, storage_path, url,
			media_type, size_bytes, uploaded_at, created_at
		 FROM application_documents
		 WHERE application_id = ?
		 ORDER BY uploaded_at ASC, id ASC`,
		applicationID,
	).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repo) ListPassengers(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]domain.Passenger, error) {
	var passengers []domain.Passenger
	err := db.WithContext(ctx).Raw(
		`SELECT id, application_id, position, first_name, last_name, nationality,
			passport_number, passport_expiry, birth_date, birth_place, gender,
			passport_scan_url, passport_scan_path, created_at
		 FROM passengers
		 WHERE application_id = ?
		 ORDER BY position ASC`,
		applicationID,
	).Scan(&passengers).Error
	if err != nil {
		return nil, err
	}
	return passengers, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Application, error) {
	var items []*domain.Application
	stmt := db.WithContext(ctx).
		Table("applications").
		Select(applicationColumns).
		Joins("JOIN vessels ON vessels.id = applications.vessel_id")

	if filter.Status != "" {
		stmt = stmt.Where("applications.status = ?", filter.Status)
	}
	if filter.VesselType != "" {
		stmt = stmt.Where("vessels.type = ?", filter.VesselType)
	}
	if filter.VesselName != "" {
		stmt = stmt.Where("LOWER(vessels.name) LIKE ?", contains(filter.VesselName))
	}
	if filter.CaptainNationality != "" {
		stmt = stmt.Where("applications.captain_nationality = ?", filter.CaptainNationality)
	}
	if filter.DeparturePort != "" {
		stmt = stmt.Where("LOWER(applications.departure_port) LIKE ?", contains(filter.DeparturePort))
	}
	if filter.ArrivalPort != "" {
		stmt = stmt.Where("LOWER(applications.arrival_port) LIKE ?", contains(filter.ArrivalPort))
	}
	if filter.PurposeKeyword != "" {
		stmt = stmt.Where("LOWER(applications.purpose) LIKE ?", contains(filter.PurposeKeyword))
	}
	if filter.DepartureDateFrom != nil {
		stmt = stmt.Where("applications.departure_date >= ?", *filter.DepartureDateFrom)
	}
	if filter.DepartureDateTo != nil {
		stmt = stmt.Where("applications.departure_date <= ?", *filter.DepartureDateTo)
	}
	if filter.ArrivalDateFrom != nil {
		stmt = stmt.Where("applications.arrival_date >= ?", *filter.ArrivalDateFrom)
	}
	if filter.ArrivalDateTo != nil {
		stmt = stmt.Where("applications.arrival_date <= ?", *filter.ArrivalDateTo)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("applications.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("applications.created_at <= ?", *filter.CreatedTo)
	}
	if filter.Cursor != nil {
		createdAt, err := filter.Cursor.Time()
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(filter.Cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where(
			"(applications.created_at < ? OR (applications.created_at = ? AND applications.id < ?))",
			createdAt.UTC(), createdAt.UTC(), id,
		)
	}

	err := stmt.
		Order("applications.created_at desc, applications.id desc").
		Limit(filter.Limit + 1).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ConfirmPayment moves a pending application to payment_confirmed. A
// payment_failed status is overwritten only when the confirming event is not
// older than the event that failed it.
func (r *repo) ConfirmPayment(ctx context.Context, db *gorm.DB, req domain.TransitionRequest, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE applications
		 SET status = ?, status_event_at = ?, payment_reference = ?,
			payment_amount = ?, payment_currency = ?, updated_at = ?
		 WHERE id = ?
		   AND (status = ?
			OR (status = ? AND (status_event_at IS NULL OR status_event_at <= ?)))`,
		domain.StatusPaymentConfirmed,
		req.EventAt,
		req.PaymentReference,
		req.PaymentAmount,
		req.PaymentCurrency,
		now,
		req.ApplicationID,
		domain.StatusPending,
		domain.StatusPaymentFailed,
		req.EventAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FailPayment only ever leaves pending.
func (r *repo) FailPayment(ctx context.Context, db *gorm.DB, req domain.TransitionRequest, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE applications
		 SET status = ?, status_event_at = ?, payment_reference = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPaymentFailed,
		req.EventAt,
		req.PaymentReference,
		now,
		req.ApplicationID,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func contains(value string) string {
	return "%" + strings.ToLower(strings.TrimSpace(value)) + "%"
}
