package pdf

import (
	"context"
	"errors"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingApplication = errors.New("receipt_missing_application")

type ReceiptData struct {
	ApplicationID      string
	IssuedAt           string
	VesselName         string
	VesselType         string
	RegistrationNumber string
	Flag               string
	CaptainName        string
	ContactEmail       string
	EntryPort          string
	ExitPort           string
	DepartureDate      string
	ArrivalDate        string
	CrewCount          int
	PassengerCount     int
	PaymentReference   string
	AmountPaid         string
	Passengers         []ReceiptPassenger
	Documents          []string
}

type ReceiptPassenger struct {
	Name           string
	Nationality    string
	PassportNumber string
}

var (
	labelText = props.Text{Size: 9, Style: fontstyle.Bold}
	valueText = props.Text{Size: 9}
)

func (p *PDFProvider) ClearanceReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.ApplicationID == "" {
		return nil, ErrMissingApplication
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Travel Clearance Receipt", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		col.New(4).Add(
			text.New("Application "+receipt.ApplicationID, props.Text{Size: 9, Align: align.Right}),
			text.New("Issued "+receipt.IssuedAt, props.Text{Size: 9, Align: align.Right, Top: 5}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.AmountPaid+" received, reference "+receipt.PaymentReference, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   4,
		}),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Vessel", labelText),
			text.New(receipt.VesselName+" ("+receipt.VesselType+")", props.Text{Size: 9, Top: 5}),
			text.New("Registration: "+receipt.RegistrationNumber, props.Text{Size: 9, Top: 10}),
			text.New("Flag: "+receipt.Flag, props.Text{Size: 9, Top: 15}),
		),
		col.New(6).Add(
			text.New("Captain", labelText),
			text.New(receipt.CaptainName, props.Text{Size: 9, Top: 5}),
			text.New(receipt.ContactEmail, props.Text{Size: 9, Top: 10}),
		),
	)

	m.AddRow(10,
		text.NewCol(3, "Entry port", labelText),
		text.NewCol(3, receipt.EntryPort, valueText),
		text.NewCol(3, "Exit port", labelText),
		text.NewCol(3, receipt.ExitPort, valueText),
	)
	m.AddRow(10,
		text.NewCol(3, "Entry date", labelText),
		text.NewCol(3, receipt.DepartureDate, valueText),
		text.NewCol(3, "Exit date", labelText),
		text.NewCol(3, receipt.ArrivalDate, valueText),
	)
	m.AddRow(10,
		text.NewCol(3, "Crew", labelText),
		text.NewCol(3, strconv.Itoa(receipt.CrewCount), valueText),
		text.NewCol(3, "Passengers", labelText),
		text.NewCol(3, strconv.Itoa(receipt.PassengerCount), valueText),
	)

	if len(receipt.Passengers) > 0 {
		m.AddRow(12,
			text.NewCol(6, "Passenger", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
			text.NewCol(3, "Nationality", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
			text.NewCol(3, "Passport", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4, Align: align.Right}),
		)
		for _, passenger := range receipt.Passengers {
			m.AddRow(7,
				text.NewCol(6, passenger.Name, valueText),
				text.NewCol(3, passenger.Nationality, valueText),
				text.NewCol(3, passenger.PassportNumber, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	if len(receipt.Documents) > 0 {
		m.AddRow(12, text.NewCol(12, "Documents on file", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}))
		for _, name := range receipt.Documents {
			m.AddRow(7, text.NewCol(12, name, valueText))
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
