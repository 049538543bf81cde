package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
)

type InventoryReader interface {
	GetItem(ctx context.Context, pharmacyID, id int64) (*inventoryDatamodel.Item, error)
	MatchByName(ctx context.Context, pharmacyID int64, name string) (*inventoryDatamodel.Item, error)
}

type ServiceCatalog interface {
	GetService(ctx context.Context, pharmacyID, id int64) (*catalog.ClinicService, error)
}

type PrescriptionReader interface {
	GetPrescription(ctx context.Context, pharmacyID, id int64) (*prescriptionDatamodel.Prescription, error)
}

type ConsultationReader interface {
	GetConsultation(ctx context.Context, pharmacyID, id int64) (*consultationDatamodel.Consultation, error)
}

// Resolution is the amount to charge and the payload fulfillment will replay.
type Resolution struct {
	Amount  decimal.Decimal
	Payload Payload
}

// Resolver prices an initiation request from server-side records. It never
// writes.
type Resolver struct {
	inventory     InventoryReader
	services      ServiceCatalog
	prescriptions PrescriptionReader
	consultations ConsultationReader
	fallbackPrice decimal.Decimal
}

func NewResolver(inventory InventoryReader, services ServiceCatalog, prescriptions PrescriptionReader, consultations ConsultationReader, fallbackPrice decimal.Decimal) *Resolver {
	return &Resolver{
		inventory:     inventory,
		services:      services,
		prescriptions: prescriptions,
		consultations: consultations,
		fallbackPrice: fallbackPrice,
	}
}

func (r *Resolver) Resolve(ctx context.Context, pharmacyID int64, req InitiateRequest) (*Resolution, error) {
	var (
		res *Resolution
		err error
	)
	switch paymentDatamodel.Purpose(req.Purpose) {
	case paymentDatamodel.PurposeSale:
		res, err = r.resolveSale(ctx, pharmacyID, req)
	case paymentDatamodel.PurposePrescription:
		res, err = r.resolvePrescription(ctx, pharmacyID, *req.PrescriptionID)
	case paymentDatamodel.PurposeService:
		res, err = r.resolveService(ctx, pharmacyID, *req.ServiceID)
	case paymentDatamodel.PurposeConsultation:
		res, err = r.resolveConsultation(ctx, pharmacyID, *req.ConsultationID)
	default:
		return nil, internal.NewValidationFieldError("purpose", fmt.Sprintf("unknown purpose %q", req.Purpose), internal.ErrCodeInvalidPurpose)
	}
	if err != nil {
		return nil, err
	}
	if !res.Amount.IsPositive() {
		return nil, internal.ErrInvalidAmount
	}
	return res, nil
}

func (r *Resolver) resolveSale(ctx context.Context, pharmacyID int64, req InitiateRequest) (*Resolution, error) {
	payload := SalePayload{PharmacyID: pharmacyID}
	total := decimal.Zero
	// lines for the same item draw on one stock count
	requested := make(map[int64]int, len(req.Items))

	for _, line := range req.Items {
		item, err := r.inventory.GetItem(ctx, pharmacyID, line.InventoryItemID)
		if err != nil {
			return nil, err
		}
		requested[item.ID] += line.Quantity
		if requested[item.ID] > item.Quantity {
			return nil, internal.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d of %s in stock", item.Quantity, item.Name))
		}
		price := item.SellingPrice
		if line.UnitPrice != nil {
			price = *line.UnitPrice
		}
		if !price.IsPositive() {
			return nil, internal.ErrPriceNotSet.WithMessage(fmt.Sprintf("%s has no selling price", item.Name))
		}
		payload.Items = append(payload.Items, SaleItem{
			InventoryItemID: item.ID,
			Quantity:        line.Quantity,
			UnitPrice:       price,
		})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	for _, line := range req.ServiceItems {
		svc, err := r.services.GetService(ctx, pharmacyID, line.ServiceID)
		if err != nil {
			return nil, err
		}
		if !svc.IsActive {
			return nil, internal.ErrServiceNotFound
		}
		var price decimal.Decimal
		switch {
		case line.UnitPrice != nil:
			price = *line.UnitPrice
		case svc.Price != nil:
			price = *svc.Price
		}
		if !price.IsPositive() {
			return nil, internal.ErrPriceNotSet.WithMessage(fmt.Sprintf("service %s has no price", svc.Name))
		}
		payload.ServiceItems = append(payload.ServiceItems, ServiceItem{
			ServiceID: svc.ID,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return &Resolution{Amount: total, Payload: payload}, nil
}

func (r *Resolver) resolvePrescription(ctx context.Context, pharmacyID, prescriptionID int64) (*Resolution, error) {
	p, err := r.prescriptions.GetPrescription(ctx, pharmacyID, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.Status != prescriptionDatamodel.StatusPending {
		return nil, internal.ErrInvalidStatus.WithMessage(fmt.Sprintf("prescription %d is %s", p.ID, p.Status))
	}

	payload := PrescriptionPayload{PrescriptionID: p.ID, PharmacyID: p.PharmacyID}
	total := decimal.Zero
	// each matched medication dispenses one unit
	dispensed := make(map[int64]int, len(p.Medications))
	for _, med := range p.Medications {
		line := PrescribedMedication{
			MedicationID: med.ID,
			Name:         med.Name,
			UnitPrice:    r.fallbackPrice,
		}
		item, err := r.inventory.MatchByName(ctx, p.PharmacyID, med.Name)
		if err != nil {
			return nil, err
		}
		if item != nil {
			dispensed[item.ID]++
			if dispensed[item.ID] > item.Quantity {
				return nil, internal.ErrInsufficientStock.WithMessage(
					fmt.Sprintf("%s for %s is out of stock", item.Name, med.Name))
			}
			id := item.ID
			line.InventoryItemID = &id
			if item.SellingPrice.IsPositive() {
				line.UnitPrice = item.SellingPrice
			}
		}
		payload.Medications = append(payload.Medications, line)
		total = total.Add(line.UnitPrice)
	}

	return &Resolution{Amount: total, Payload: payload}, nil
}

func (r *Resolver) resolveService(ctx context.Context, pharmacyID, serviceID int64) (*Resolution, error) {
	svc, err := r.services.GetService(ctx, pharmacyID, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, internal.ErrServiceNotFound
	}
	if !svc.Billable() {
		return nil, internal.ErrPriceNotSet.WithMessage(fmt.Sprintf("service %s has no price", svc.Name))
	}
	return &Resolution{
		Amount:  *svc.Price,
		Payload: ServicePayload{ServiceID: svc.ID, PharmacyID: svc.PharmacyID, Price: *svc.Price},
	}, nil
}

func (r *Resolver) resolveConsultation(ctx context.Context, pharmacyID, consultationID int64) (*Resolution, error) {
	c, err := r.consultations.GetConsultation(ctx, pharmacyID, consultationID)
	if err != nil {
		return nil, err
	}
	if c.Status != consultationDatamodel.StatusRequested || c.PaymentStatus == consultationDatamodel.PaymentPaid {
		return nil, internal.ErrInvalidStatus.WithMessage(fmt.Sprintf("consultation %d is %s", c.ID, c.Status))
	}
	if !c.Fee.Valid || !c.Fee.Decimal.IsPositive() {
		return nil, internal.ErrPriceNotSet.WithMessage(fmt.Sprintf("consultation %d has no fee", c.ID))
	}
	return &Resolution{
		Amount:  c.Fee.Decimal,
		Payload: ConsultationPayload{ConsultationID: c.ID, PharmacyID: c.PharmacyID, DoctorID: c.DoctorID},
	}, nil
}
