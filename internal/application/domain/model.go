package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/translog/internal/document/domain"
	vesseldomain "github.com/smallbiznis/translog/internal/vessel/domain"
	"github.com/smallbiznis/translog/pkg/db/pagination"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusPaymentFailed    Status = "payment_failed"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaymentConfirmed, StatusPaymentFailed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Application struct {
	ID                   snowflake.ID         `json:"id" gorm:"primaryKey"`
	VesselID             snowflake.ID         `json:"vessel_id"`
	Status               Status               `json:"status"`
	StatusEventAt        *time.Time           `json:"status_event_at,omitempty"`
	CaptainName          string               `json:"captain_name"`
	CaptainNationality   string               `json:"captain_nationality"`
	CaptainPassport      string               `json:"captain_passport,omitempty"`
	DeparturePort        string               `json:"departure_port"`
	ArrivalPort          string               `json:"arrival_port"`
	DepartureDate        time.Time            `json:"departure_date"`
	ArrivalDate          time.Time            `json:"arrival_date"`
	CrewCount            int                  `json:"crew_count"`
	PassengerCount       int                  `json:"passenger_count"`
	Purpose              string               `json:"purpose"`
	ContactEmail         string               `json:"contact_email"`
	ContactPhone         string               `json:"contact_phone,omitempty"`
	CompanyName          string               `json:"company_name,omitempty"`
	Address              string               `json:"address,omitempty"`
	EmergencyContact     string               `json:"emergency_contact,omitempty"`
	SpecialRequests      string               `json:"special_requests,omitempty"`
	InsuranceInformation string               `json:"insurance_information,omitempty"`
	PreviousVisits       bool                 `json:"previous_visits"`
	PaymentReference     string               `json:"payment_reference,omitempty"`
	PaymentAmount        int64                `json:"payment_amount,omitempty"`
	PaymentCurrency      string               `json:"payment_currency,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Vessel               *vesseldomain.Vessel `json:"vessel,omitempty" gorm:"-"`
	Documents            []Document           `json:"documents,omitempty" gorm:"-"`
	Passengers           []Passenger          `json:"passengers,omitempty" gorm:"-"`
}

func (Application) TableName() string { return "applications" }

// Document is a stored document attached to an application.
type Document struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ApplicationID snowflake.ID `json:"application_id"`
	Category      string       `json:"category"`
	OriginalName  string       `json:"original_name"`
	StoragePath   string       `json:"storage_path"`
	URL           string       `json:"url"`
	MediaType     string       `json:"media_type"`
	SizeBytes     int64        `json:"size_bytes"`
	UploadedAt    time.Time    `json:"uploaded_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (Document) TableName() string { return "application_documents" }

type Passenger struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	ApplicationID    snowflake.ID `json:"application_id"`
	Position         int          `json:"position"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Nationality      string       `json:"nationality"`
	PassportNumber   string       `json:"passport_number"`
	PassportExpiry   time.Time    `json:"passport_expiry"`
	BirthDate        time.Time    `json:"birth_date"`
	BirthPlace       string       `json:"birth_place"`
	Gender           string       `json:"gender"`
	PassportScanURL  string       `json:"passport_scan_url,omitempty"`
	PassportScanPath string       `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
}

func (Passenger) TableName() string { return "passengers" }

// Submission is the client input before any of it is persisted. Dates stay
// as YYYY-MM-DD strings until assembly.
type Submission struct {
	VesselName           string
	VesselType           string
	VesselLength         float64
	FlagCountry          string
	RegistrationNumber   string
	ManufacturingYear    *int
	EnginePower          string
	HullMaterial         string
	FirstName            string
	LastName             string
	Email                string
	Nationality          string
	CompanyName          string
	PassportNumber       string
	PhoneNumber          string
	Address              string
	EntryPort            string
	ExitPort             string
	EntryDate            string
	ExitDate             string
	TripPurpose          string
	CrewCount            int
	PassengerCount       int
	EmergencyContact     string
	SpecialRequests      string
	InsuranceInformation string
	PreviousVisits       bool
	Passengers           []PassengerSubmission
}

type PassengerSubmission struct {
	FirstName      string
	LastName       string
	Nationality    string
	PassportNumber string
	PassportExpiry string
	BirthDate      string
	BirthPlace     string
	Gender         string
	PassportScan   *documentdomain.Payload
}

// SubmitRequest carries a submission together with its raw documents.
type SubmitRequest struct {
	Submission Submission
	Documents  []documentdomain.Payload
}

// CreateRequest is the assembler input: a submission plus the documents
// already written to storage. PassportScans is indexed like Submission.Passengers.
type CreateRequest struct {
	Submission    Submission
	Documents     []documentdomain.StoredDocument
	PassportScans []*documentdomain.StoredDocument
}

type ListRequest struct {
	Status             Status
	VesselType         string
	VesselName         string
	CaptainNationality string
	DeparturePort      string
	ArrivalPort        string
	PurposeKeyword     string
	DepartureDateFrom  *time.Time
	DepartureDateTo    *time.Time
	ArrivalDateFrom    *time.Time
	ArrivalDateTo      *time.Time
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
	PageToken          string
	PageSize           int32
}

type ListResponse struct {
	pagination.PageInfo
	Applications []Application `json:"applications"`
}

// TransitionRequest moves an application's payment status. EventAt is the
// provider timestamp of the event, never the arrival time.
type TransitionRequest struct {
	ApplicationID    snowflake.ID
	Target           Status
	EventAt          time.Time
	PaymentReference string
	PaymentAmount    int64
	PaymentCurrency  string
}

type TransitionResult struct {
	Changed        bool
	PreviousStatus Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, app *Application) error
	InsertDocuments(ctx context.Context, db *gorm.DB, docs []Document) error
	InsertPassengers(ctx context.Context, db *gorm.DB, passengers []Passenger) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	FindStatus(ctx context.Context, db *gorm.DB, id snowflake.ID) (Status, bool, error)
	ListDocuments(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]Document, error)
	ListPassengers(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]Passenger, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Application, error)
	ConfirmPayment(ctx context.Context, db *gorm.DB, req TransitionRequest, now time.Time) (bool, error)
	FailPayment(ctx context.Context, db *gorm.DB, req TransitionRequest, now time.Time) (bool, error)
}

// ListFilter is the repository form of ListRequest with the cursor decoded.
type ListFilter struct {
	ListRequest
	Cursor *pagination.Cursor
	Limit  int
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*Application, error)
	Create(ctx context.Context, req CreateRequest) (*Application, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Application, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	TransitionPaymentStatus(ctx context.Context, tx *gorm.DB, req TransitionRequest) (TransitionResult, error)
}
