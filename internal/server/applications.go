package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	documentdomain "github.com/smallbiznis/translog/internal/document/domain"
)

type createApplicationRequest struct {
	VesselName               string                   `json:"vesselName" binding:"required,min=2"`
	VesselType               string                   `json:"vesselType" binding:"required"`
	VesselLength             float64                  `json:"vesselLength" binding:"required,gt=0"`
	FlagCountry              string                   `json:"flagCountry" binding:"required,len=2"`
	VesselRegistrationNumber string                   `json:"vesselRegistrationNumber"`
	ManufacturingYear        *int                     `json:"manufacturingYear" binding:"omitempty,gte=1900"`
	EnginePower              string                   `json:"enginePower"`
	HullMaterial             string                   `json:"hullMaterial"`
	FirstName                string                   `json:"firstName" binding:"required,min=2,max=50"`
	LastName                 string                   `json:"lastName" binding:"required,min=2,max=50"`
	Email                    string                   `json:"email" binding:"required,email"`
	Nationality              string                   `json:"nationality" binding:"required,len=2"`
	CompanyName              string                   `json:"companyName"`
	PassportNumber           string                   `json:"passportNumber"`
	PhoneNumber              string                   `json:"phoneNumber" binding:"omitempty,e164"`
	Address                  string                   `json:"address"`
	EntryPort                string                   `json:"entryPort" binding:"required"`
	ExitPort                 string                   `json:"exitPort" binding:"required"`
	EntryDate                string                   `json:"entryDate" binding:"required"`
	ExitDate                 string                   `json:"exitDate" binding:"required"`
	TripPurpose              string                   `json:"tripPurpose" binding:"required,min=2"`
	CrewCount                int                      `json:"crewCount" binding:"gte=0"`
	PassengerCount           int                      `json:"passengerCount" binding:"gte=0"`
	EmergencyContact         string                   `json:"emergencyContact"`
	SpecialRequests          string                   `json:"specialRequests"`
	InsuranceInformation     string                   `json:"insuranceInformation"`
	PreviousVisits           bool                     `json:"previousVisits"`
	Passengers               []passengerRequest       `json:"passengers" binding:"omitempty,dive"`
	Documents                []documentdomain.Payload `json:"documents"`
}

type passengerRequest struct {
	FirstName      string                  `json:"firstName" binding:"required,min=2,max=50"`
	LastName       string                  `json:"lastName" binding:"required,min=2,max=50"`
	Nationality    string                  `json:"nationality" binding:"required,len=2"`
	PassportNumber string                  `json:"passportNumber" binding:"required"`
	PassportExpiry string                  `json:"passportExpiry" binding:"required"`
	BirthDate      string                  `json:"birthDate" binding:"required"`
	BirthPlace     string                  `json:"birthPlace" binding:"required,min=2,max=100"`
	Gender         string                  `json:"gender" binding:"required,oneof=male female"`
	PassportScan   *documentdomain.Payload `json:"passportScan"`
}

func (r createApplicationRequest) toDomain() applicationdomain.SubmitRequest {
	passengers := make([]applicationdomain.PassengerSubmission, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		passengers = append(passengers, applicationdomain.PassengerSubmission{
			FirstName:      strings.TrimSpace(p.FirstName),
			LastName:       strings.TrimSpace(p.LastName),
			Nationality:    strings.ToUpper(strings.TrimSpace(p.Nationality)),
			PassportNumber: strings.TrimSpace(p.PassportNumber),
			PassportExpiry: strings.TrimSpace(p.PassportExpiry),
			BirthDate:      strings.TrimSpace(p.BirthDate),
			BirthPlace:     strings.TrimSpace(p.BirthPlace),
			Gender:         p.Gender,
			PassportScan:   p.PassportScan,
		})
	}

	return applicationdomain.SubmitRequest{
		Submission: applicationdomain.Submission{
			VesselName:           strings.TrimSpace(r.VesselName),
			VesselType:           strings.TrimSpace(r.VesselType),
			VesselLength:         r.VesselLength,
			FlagCountry:          strings.ToUpper(strings.TrimSpace(r.FlagCountry)),
			RegistrationNumber:   strings.TrimSpace(r.VesselRegistrationNumber),
			ManufacturingYear:    r.ManufacturingYear,
			EnginePower:          r.EnginePower,
			HullMaterial:         r.HullMaterial,
			FirstName:            strings.TrimSpace(r.FirstName),
			LastName:             strings.TrimSpace(r.LastName),
			Email:                strings.TrimSpace(r.Email),
			Nationality:          strings.ToUpper(strings.TrimSpace(r.Nationality)),
			CompanyName:          r.CompanyName,
			PassportNumber:       strings.TrimSpace(r.PassportNumber),
			PhoneNumber:          r.PhoneNumber,
			Address:              r.Address,
			EntryPort:            strings.TrimSpace(r.EntryPort),
			ExitPort:             strings.TrimSpace(r.ExitPort),
			EntryDate:            strings.TrimSpace(r.EntryDate),
			ExitDate:             strings.TrimSpace(r.ExitDate),
			TripPurpose:          strings.TrimSpace(r.TripPurpose),
			CrewCount:            r.CrewCount,
			PassengerCount:       r.PassengerCount,
			EmergencyContact:     r.EmergencyContact,
			SpecialRequests:      r.SpecialRequests,
			InsuranceInformation: r.InsuranceInformation,
			PreviousVisits:       r.PreviousVisits,
			Passengers:           passengers,
		},
		Documents: r.Documents,
	}
}

func (s *Server) CreateApplication(c *gin.Context) {
	if limit := s.cfg.MaxRequestBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	app, err := s.applications.Submit(c.Request.Context(), req.toDomain())
	if err != nil {
		s.obsMetrics.RecordSubmission(c.Request.Context(), "failed")
		AbortWithError(c, err)
		return
	}

	c.Set("application_id", app.ID.String())
	s.obsMetrics.RecordSubmission(c.Request.Context(), "accepted")
	c.JSON(http.StatusCreated, gin.H{"data": app})
}

func (s *Server) GetApplication(c *gin.Context) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		AbortWithError(c, applicationdomain.ErrInvalidID)
		return
	}

	app, err := s.applications.GetByID(c.Request.Context(), *id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("application_id", app.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": app})
}

func (s *Server) ListApplications(c *gin.Context) {
	req := applicationdomain.ListRequest{
		Status:             applicationdomain.Status(strings.TrimSpace(c.Query("status"))),
		VesselType:         strings.TrimSpace(c.Query("vessel_type")),
		VesselName:         strings.TrimSpace(c.Query("vessel_name")),
		CaptainNationality: strings.TrimSpace(c.Query("captain_nationality")),
		DeparturePort:      strings.TrimSpace(c.Query("departure_port")),
		ArrivalPort:        strings.TrimSpace(c.Query("arrival_port")),
		PurposeKeyword:     strings.TrimSpace(c.Query("purpose_keyword")),
		PageToken:          strings.TrimSpace(c.Query("page_token")),
	}
	if req.Status != "" && !req.Status.Valid() {
		AbortWithError(c, applicationdomain.ErrInvalidStatus)
		return
	}

	pageSize, err := parseOptionalInt64(c.Query("page_size"))
	if err != nil || (pageSize != nil && (*pageSize < 1 || *pageSize > 250)) {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be between 1 and 250"))
		return
	}
	if pageSize != nil {
		req.PageSize = int32(*pageSize)
	}

	ranges := []struct {
		param    string
		endOfDay bool
		dst      **time.Time
	}{
		{"departure_date_from", false, &req.DepartureDateFrom},
		{"departure_date_to", true, &req.DepartureDateTo},
		{"arrival_date_from", false, &req.ArrivalDateFrom},
		{"arrival_date_to", true, &req.ArrivalDateTo},
		{"created_from", false, &req.CreatedFrom},
		{"created_to", true, &req.CreatedTo},
	}
	for _, r := range ranges {
		parsed, err := parseOptionalTime(c.Query(r.param), r.endOfDay)
		if err != nil {
			AbortWithError(c, newValidationError(r.param, "invalid_date", "date must be formatted as YYYY-MM-DD or RFC3339"))
			return
		}
		*r.dst = parsed
	}
	for _, pair := range [][2]*time.Time{
		{req.DepartureDateFrom, req.DepartureDateTo},
		{req.ArrivalDateFrom, req.ArrivalDateTo},
		{req.CreatedFrom, req.CreatedTo},
	} {
		if pair[0] != nil && pair[1] != nil && pair[0].After(*pair[1]) {
			AbortWithError(c, newValidationError("date_range", "invalid_date_range", "range start must not be after its end"))
			return
		}
	}

	resp, err := s.applications.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Applications,
		"page_info": resp.PageInfo,
	})
}

// bindingError converts a JSON bind failure into the client error envelope.
func bindingError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return ErrPayloadTooLarge
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidRequestError()
	}

	out := ValidationErrors{Errors: make([]ValidationError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Code:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return &out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "max", "len":
		return fe.Field() + " must satisfy " + fe.Tag() + "=" + fe.Param()
	case "email":
		return "valid email required"
	case "e164":
		return "invalid phone number format"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return "invalid value"
	}
}
