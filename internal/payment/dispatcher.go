package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	saleDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/sale"
	"github.com/frahmantamala/pharmacy-management/internal/inventory"
	"github.com/frahmantamala/pharmacy-management/internal/prescription"
)

type SaleRecorder interface {
	CreateSale(ctx context.Context, req inventory.SaleRequest) (*saleDatamodel.Sale, error)
}

type Dispenser interface {
	Dispense(ctx context.Context, req prescription.DispenseRequest) error
}

type QueueAdmitter interface {
	Admit(ctx context.Context, consultationID int64) (*consultation.QueueEntry, error)
	QueueStatus(ctx context.Context, pharmacyID, consultationID int64) (*consultation.QueueEntry, error)
}

// Fulfillment is what a successful dispatch produced.
type Fulfillment struct {
	SaleID     int64
	QueueEntry *consultation.QueueEntry
}

// Dispatcher performs the business effect of a paid intent. Every branch is
// idempotent per reference so a retry after a partial failure is safe.
type Dispatcher struct {
	sales     SaleRecorder
	dispenser Dispenser
	queue     QueueAdmitter
	logger    *slog.Logger
}

func NewDispatcher(sales SaleRecorder, dispenser Dispenser, queue QueueAdmitter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sales:     sales,
		dispenser: dispenser,
		queue:     queue,
		logger:    logger,
	}
}

func (d *Dispatcher) Fulfill(ctx context.Context, intent *paymentDatamodel.PaymentIntent) (*Fulfillment, error) {
	payload, err := DecodePayload(intent.Purpose, intent.Payload)
	if err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case SalePayload:
		return d.fulfillSale(ctx, intent, p)
	case PrescriptionPayload:
		return d.fulfillPrescription(ctx, intent, p)
	case ServicePayload:
		return d.fulfillService(ctx, intent, p)
	case ConsultationPayload:
		entry, err := d.queue.Admit(ctx, p.ConsultationID)
		if err != nil {
			return nil, fmt.Errorf("admit consultation %d: %w", p.ConsultationID, err)
		}
		return &Fulfillment{QueueEntry: entry}, nil
	default:
		return nil, fmt.Errorf("no fulfillment for purpose %s", intent.Purpose)
	}
}

func (d *Dispatcher) fulfillSale(ctx context.Context, intent *paymentDatamodel.PaymentIntent, p SalePayload) (*Fulfillment, error) {
	lines := make([]inventory.SaleLine, 0, len(p.Items)+len(p.ServiceItems))
	for _, item := range p.Items {
		id := item.InventoryItemID
		lines = append(lines, inventory.SaleLine{
			InventoryItemID: &id,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
		})
	}
	for _, item := range p.ServiceItems {
		id := item.ServiceID
		lines = append(lines, inventory.SaleLine{
			ServiceID: &id,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return d.recordSale(ctx, intent, p.PharmacyID, lines)
}

func (d *Dispatcher) fulfillService(ctx context.Context, intent *paymentDatamodel.PaymentIntent, p ServicePayload) (*Fulfillment, error) {
	id := p.ServiceID
	return d.recordSale(ctx, intent, p.PharmacyID, []inventory.SaleLine{{
		ServiceID: &id,
		Quantity:  1,
		UnitPrice: p.Price,
	}})
}

func (d *Dispatcher) recordSale(ctx context.Context, intent *paymentDatamodel.PaymentIntent, pharmacyID int64, lines []inventory.SaleLine) (*Fulfillment, error) {
	sale, err := d.sales.CreateSale(ctx, inventory.SaleRequest{
		PharmacyID:       pharmacyID,
		PaymentReference: intent.Reference,
		Currency:         intent.Currency,
		CustomerEmail:    intent.CustomerEmail,
		Lines:            lines,
	})
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	return &Fulfillment{SaleID: sale.ID}, nil
}

func (d *Dispatcher) fulfillPrescription(ctx context.Context, intent *paymentDatamodel.PaymentIntent, p PrescriptionPayload) (*Fulfillment, error) {
	meds := make([]prescription.DispensedMedication, 0, len(p.Medications))
	for _, m := range p.Medications {
		meds = append(meds, prescription.DispensedMedication{
			MedicationID:    m.MedicationID,
			InventoryItemID: m.InventoryItemID,
		})
	}
	err := d.dispenser.Dispense(ctx, prescription.DispenseRequest{
		PrescriptionID:   p.PrescriptionID,
		PharmacyID:       p.PharmacyID,
		PaymentReference: intent.Reference,
		Medications:      meds,
	})
	if err != nil {
		return nil, fmt.Errorf("dispense prescription %d: %w", p.PrescriptionID, err)
	}
	d.logger.Debug("prescription fulfilled", "reference", intent.Reference, "medications", p.DispensedMedicationIDs())
	return &Fulfillment{}, nil
}

// QueueEntry reports the current queue placement of a paid consultation.
func (d *Dispatcher) QueueEntry(ctx context.Context, intent *paymentDatamodel.PaymentIntent) (*consultation.QueueEntry, error) {
	payload, err := DecodePayload(intent.Purpose, intent.Payload)
	if err != nil {
		return nil, err
	}
	p, ok := payload.(ConsultationPayload)
	if !ok {
		return nil, fmt.Errorf("intent %s is not a consultation payment", intent.Reference)
	}
	return d.queue.QueueStatus(ctx, 0, p.ConsultationID)
}
