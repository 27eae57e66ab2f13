package service

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	"github.com/smallbiznis/translog/internal/providers/pdf"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const displayDate = "January 2, 2006"

var funcs = map[string]any{
	"inc": func(i int) int { return i + 1 },
}

var (
	textTemplate = texttemplate.Must(texttemplate.New("confirmation.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/confirmation.txt.tmpl"))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("confirmation.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/confirmation.html.tmpl"))
)

type confirmationView struct {
	ID                 string
	Status             string
	Created            string
	Purpose            string
	Amount             string
	VesselName         string
	VesselType         string
	VesselLength       string
	Flag               string
	RegistrationNumber string
	CaptainName        string
	CaptainNationality string
	CaptainPassport    string
	DeparturePort      string
	ArrivalPort        string
	DepartureDate      string
	ArrivalDate        string
	CrewCount          int
	PassengerCount     int
	ContactEmail       string
	ContactPhone       string
	PaymentReference   string
	Documents          []documentView
	Passengers         []passengerView
}

type documentView struct {
	Name string
	URL  string
}

type passengerView struct {
	Name           string
	Nationality    string
	PassportNumber string
	BirthDate      string
	Gender         string
	ScanURL        string
}

func newConfirmationView(app *applicationdomain.Application) confirmationView {
	view := confirmationView{
		ID:                 app.ID.String(),
		Status:             string(app.Status),
		Created:            formatDate(app.CreatedAt),
		Purpose:            app.Purpose,
		Amount:             formatAmount(app.PaymentAmount, app.PaymentCurrency),
		CaptainName:        app.CaptainName,
		CaptainNationality: app.CaptainNationality,
		CaptainPassport:    app.CaptainPassport,
		DeparturePort:      app.DeparturePort,
		ArrivalPort:        app.ArrivalPort,
		DepartureDate:      formatDate(app.DepartureDate),
		ArrivalDate:        formatDate(app.ArrivalDate),
		CrewCount:          app.CrewCount,
		PassengerCount:     app.PassengerCount,
		ContactEmail:       app.ContactEmail,
		ContactPhone:       orDefault(app.ContactPhone, "Not provided"),
		PaymentReference:   app.PaymentReference,
	}
	if v := app.Vessel; v != nil {
		view.VesselName = v.Name
		view.VesselType = v.Type.Label()
		view.VesselLength = strconv.FormatFloat(v.Length, 'f', -1, 64)
		view.Flag = v.Flag
		view.RegistrationNumber = v.RegistrationNumber
	}
	for _, doc := range app.Documents {
		view.Documents = append(view.Documents, documentView{Name: doc.OriginalName, URL: doc.URL})
	}
	for _, p := range app.Passengers {
		view.Passengers = append(view.Passengers, passengerView{
			Name:           strings.TrimSpace(p.FirstName + " " + p.LastName),
			Nationality:    p.Nationality,
			PassportNumber: p.PassportNumber,
			BirthDate:      orDefault(formatDate(p.BirthDate), "N/A"),
			Gender:         orDefault(p.Gender, "N/A"),
			ScanURL:        p.PassportScanURL,
		})
	}
	return view
}

func renderBodies(view confirmationView) (string, string, error) {
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, view); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return text.String(), html.String(), nil
}

func receiptData(view confirmationView, issuedAt time.Time) pdf.ReceiptData {
	data := pdf.ReceiptData{
		ApplicationID:      view.ID,
		IssuedAt:           formatDate(issuedAt),
		VesselName:         view.VesselName,
		VesselType:         view.VesselType,
		RegistrationNumber: view.RegistrationNumber,
		Flag:               view.Flag,
		CaptainName:        view.CaptainName,
		ContactEmail:       view.ContactEmail,
		EntryPort:          view.DeparturePort,
		ExitPort:           view.ArrivalPort,
		DepartureDate:      view.DepartureDate,
		ArrivalDate:        view.ArrivalDate,
		CrewCount:          view.CrewCount,
		PassengerCount:     view.PassengerCount,
		PaymentReference:   view.PaymentReference,
		AmountPaid:         view.Amount,
	}
	for _, p := range view.Passengers {
		data.Passengers = append(data.Passengers, pdf.ReceiptPassenger{
			Name:           p.Name,
			Nationality:    p.Nationality,
			PassportNumber: p.PassportNumber,
		})
	}
	for _, doc := range view.Documents {
		data.Documents = append(data.Documents, doc.Name)
	}
	return data
}

// formatAmount renders minor units as "150.00 EUR"; empty when no payment
// amount was recorded.
func formatAmount(amount int64, currency string) string {
	if amount <= 0 || currency == "" {
		return ""
	}
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(displayDate)
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
