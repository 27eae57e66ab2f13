package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/translog/internal/application/domain"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	documentdomain "github.com/smallbiznis/translog/internal/document/domain"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	vesseldomain "github.com/smallbiznis/translog/internal/vessel/domain"
	"github.com/smallbiznis/translog/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	VesselRepo vesseldomain.Repository
	Documents  documentdomain.Service
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	vesselRepo vesseldomain.Repository
	documents  documentdomain.Service
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("application.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		vesselRepo: p.VesselRepo,
		documents:  p.Documents,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

// Submit uploads every document of the submission, then assembles the
// application. Nothing is persisted unless all uploads succeed, and blobs
// written for a submission that fails later are discarded.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Application, error) {
	scans := make([]documentdomain.Payload, 0, len(req.Submission.Passengers))
	scanOwner := make([]int, 0, len(req.Submission.Passengers))
	for i, p := range req.Submission.Passengers {
		if p.PassportScan == nil {
			continue
		}
		scans = append(scans, *p.PassportScan)
		scanOwner = append(scanOwner, i)
	}

	// Both categories are validated before either one is uploaded.
	batches, err := s.documents.Prepare(ctx,
		documentdomain.UploadRequest{Category: config.DocumentCategoryTrip, Documents: req.Documents},
		documentdomain.UploadRequest{Category: config.DocumentCategoryPassportScan, Documents: scans},
	)
	if err != nil {
		s.obsMetrics.RecordSubmission(ctx, "upload_failed")
		return nil, err
	}

	var tripDocs, scanDocs []documentdomain.StoredDocument
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.documents.Store(gctx, batches[0])
		tripDocs = docs
		return err
	})
	g.Go(func() error {
		docs, err := s.documents.Store(gctx, batches[1])
		scanDocs = docs
		return err
	})
	if err := g.Wait(); err != nil {
		s.documents.Discard(context.WithoutCancel(ctx), append(tripDocs, scanDocs...))
		s.obsMetrics.RecordSubmission(ctx, "upload_failed")
		return nil, err
	}

	passportScans := make([]*documentdomain.StoredDocument, len(req.Submission.Passengers))
	for i := range scanDocs {
		doc := scanDocs[i]
		passportScans[scanOwner[i]] = &doc
	}

	app, err := s.Create(ctx, domain.CreateRequest{
		Submission:    req.Submission,
		Documents:     tripDocs,
		PassportScans: passportScans,
	})
	if err != nil {
		s.documents.Discard(context.WithoutCancel(ctx), append(tripDocs, scanDocs...))
		s.obsMetrics.RecordSubmission(ctx, "assembly_failed")
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "created")
	return app, nil
}

// Create assembles and persists an application in one transaction: vessel
// upsert, application row, document rows and passenger rows.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Application, error) {
	sub := req.Submission

	departure, err := parseDate(sub.EntryDate)
	if err != nil {
		return nil, domain.InvalidField(domain.ReasonInvalidEntryDate, "entryDate", err)
	}
	arrival, err := parseDate(sub.ExitDate)
	if err != nil {
		return nil, domain.InvalidField(domain.ReasonInvalidExitDate, "exitDate", err)
	}
	if !departure.Before(arrival) {
		return nil, domain.InvalidField(domain.ReasonDepartureNotBeforeArrival, "exitDate", nil)
	}

	vesselType := vesseldomain.Type(strings.TrimSpace(sub.VesselType))
	vesselName := strings.TrimSpace(sub.VesselName)
	if vesselName == "" {
		return nil, domain.InvalidField(domain.ReasonInvalidVessel, "vesselName", vesseldomain.ErrInvalidVessel)
	}
	if !vesselType.Valid() {
		return nil, domain.InvalidField(domain.ReasonInvalidVessel, "vesselType", vesseldomain.ErrInvalidVessel)
	}

	now := s.clock.Now()
	appID := s.genID.Generate()

	passengers := make([]domain.Passenger, 0, len(sub.Passengers))
	for i, p := range sub.Passengers {
		expiry, err := parseDate(p.PassportExpiry)
		if err != nil {
			return nil, domain.InvalidField(domain.ReasonInvalidPassengerDate, passengerField(i, "passportExpiry"), err)
		}
		birth, err := parseDate(p.BirthDate)
		if err != nil {
			return nil, domain.InvalidField(domain.ReasonInvalidPassengerDate, passengerField(i, "birthDate"), err)
		}
		passenger := domain.Passenger{
			ID:             s.genID.Generate(),
			ApplicationID:  appID,
			Position:       i,
			FirstName:      strings.TrimSpace(p.FirstName),
			LastName:       strings.TrimSpace(p.LastName),
			Nationality:    strings.TrimSpace(p.Nationality),
			PassportNumber: strings.TrimSpace(p.PassportNumber),
			PassportExpiry: expiry,
			BirthDate:      birth,
			BirthPlace:     strings.TrimSpace(p.BirthPlace),
			Gender:         strings.TrimSpace(p.Gender),
			CreatedAt:      now,
		}
		if i < len(req.PassportScans) && req.PassportScans[i] != nil {
			passenger.PassportScanURL = req.PassportScans[i].URL
			passenger.PassportScanPath = req.PassportScans[i].StoragePath
		}
		passengers = append(passengers, passenger)
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for _, doc := range req.Documents {
		docs = append(docs, domain.Document{
			ID:            s.genID.Generate(),
			ApplicationID: appID,
			Category:      doc.Category,
			OriginalName:  doc.OriginalName,
			StoragePath:   doc.StoragePath,
			URL:           doc.URL,
			MediaType:     doc.MediaType,
			SizeBytes:     doc.SizeBytes,
			UploadedAt:    doc.UploadedAt,
			CreatedAt:     now,
		})
	}

	registration := strings.TrimSpace(sub.RegistrationNumber)
	if registration == "" {
		registration = slug.Make(vesselName) + "-" + strings.ToLower(ulid.Make().String())
	}

	app := &domain.Application{
		ID:                   appID,
		Status:               domain.StatusPending,
		CaptainName:          captainName(sub.FirstName, sub.LastName),
		CaptainNationality:   strings.TrimSpace(sub.Nationality),
		CaptainPassport:      strings.TrimSpace(sub.PassportNumber),
		DeparturePort:        strings.TrimSpace(sub.EntryPort),
		ArrivalPort:          strings.TrimSpace(sub.ExitPort),
		DepartureDate:        departure,
		ArrivalDate:          arrival,
		CrewCount:            sub.CrewCount,
		PassengerCount:       sub.PassengerCount,
		Purpose:              strings.TrimSpace(sub.TripPurpose),
		ContactEmail:         strings.TrimSpace(sub.Email),
		ContactPhone:         strings.TrimSpace(sub.PhoneNumber),
		CompanyName:          strings.TrimSpace(sub.CompanyName),
		Address:              strings.TrimSpace(sub.Address),
		EmergencyContact:     strings.TrimSpace(sub.EmergencyContact),
		SpecialRequests:      strings.TrimSpace(sub.SpecialRequests),
		InsuranceInformation: strings.TrimSpace(sub.InsuranceInformation),
		PreviousVisits:       sub.PreviousVisits,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vessel, err := s.vesselRepo.Upsert(ctx, tx, &vesseldomain.Vessel{
			ID:                 s.genID.Generate(),
			Name:               vesselName,
			Type:               vesselType,
			Length:             sub.VesselLength,
			Flag:               strings.TrimSpace(sub.FlagCountry),
			RegistrationNumber: registration,
			ManufacturingYear:  sub.ManufacturingYear,
			EnginePower:        strings.TrimSpace(sub.EnginePower),
			HullMaterial:       strings.TrimSpace(sub.HullMaterial),
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return err
		}
		app.VesselID = vessel.ID
		app.Vessel = vessel

		if err := s.repo.Insert(ctx, tx, app); err != nil {
			return err
		}
		if err := s.repo.InsertDocuments(ctx, tx, docs); err != nil {
			return err
		}
		return s.repo.InsertPassengers(ctx, tx, passengers)
	})
	if err != nil {
		s.log.Error("failed to persist application",
			zap.String("application_id", appID.String()),
			zap.String("registration_number", registration),
			zap.Error(err),
		)
		return nil, domain.PersistenceFailed(err)
	}

	app.Documents = docs
	app.Passengers = passengers
	s.log.Info("application created",
		zap.String("application_id", app.ID.String()),
		zap.String("vessel_id", app.VesselID.String()),
		zap.Int("documents", len(docs)),
		zap.Int("passengers", len(passengers)),
	)
	return app, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Application, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	app, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, domain.ErrNotFound
	}

	vessel, err := s.vesselRepo.FindByID(ctx, s.db, app.VesselID)
	if err != nil {
		return nil, err
	}
	app.Vessel = vessel

	if app.Documents, err = s.repo.ListDocuments(ctx, s.db, id); err != nil {
		return nil, err
	}
	if app.Passengers, err = s.repo.ListPassengers(ctx, s.db, id); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	filter := domain.ListFilter{
		ListRequest: req,
		Limit:       page.Size(),
	}
	filter.VesselName = strings.TrimSpace(req.VesselName)
	filter.DeparturePort = strings.TrimSpace(req.DeparturePort)
	filter.ArrivalPort = strings.TrimSpace(req.ArrivalPort)
	filter.PurposeKeyword = strings.TrimSpace(req.PurposeKeyword)

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Cursor = cursor
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(app *domain.Application) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        app.ID.String(),
			CreatedAt: app.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	apps := make([]domain.Application, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		apps = append(apps, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Applications: apps}, nil
}

// TransitionPaymentStatus applies a payment outcome using the caller's
// transaction. A transition that would move the status backwards, or that is
// older than the event which set the current status, leaves the row untouched
// and reports Changed=false.
func (s *Service) TransitionPaymentStatus(ctx context.Context, tx *gorm.DB, req domain.TransitionRequest) (domain.TransitionResult, error) {
	if req.ApplicationID == 0 {
		return domain.TransitionResult{}, domain.ErrInvalidID
	}
	if tx == nil {
		tx = s.db
	}

	current, found, err := s.repo.FindStatus(ctx, tx, req.ApplicationID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if !found {
		return domain.TransitionResult{}, domain.ErrNotFound
	}

	if req.EventAt.IsZero() {
		req.EventAt = s.clock.Now()
	}
	req.EventAt = req.EventAt.UTC()

	var changed bool
	switch req.Target {
	case domain.StatusPaymentConfirmed:
		changed, err = s.repo.ConfirmPayment(ctx, tx, req, s.clock.Now())
	case domain.StatusPaymentFailed:
		changed, err = s.repo.FailPayment(ctx, tx, req, s.clock.Now())
	default:
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.TransitionResult{}, err
	}

	if changed {
		s.log.Info("application payment status changed",
			zap.String("application_id", req.ApplicationID.String()),
			zap.String("from", string(current)),
			zap.String("to", string(req.Target)),
		)
	} else {
		s.log.Info("application payment status unchanged",
			zap.String("application_id", req.ApplicationID.String()),
			zap.String("status", string(current)),
			zap.String("requested", string(req.Target)),
		)
	}
	return domain.TransitionResult{Changed: changed, PreviousStatus: current}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("date is required")
	}
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func captainName(first, last string) string {
	return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
}

func passengerField(index int, field string) string {
	return fmt.Sprintf("passengers[%d].%s", index, field)
}
