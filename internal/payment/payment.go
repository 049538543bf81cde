package payment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
)

// Payload is the purpose-specific part of an intent, resolved at initiation
// and replayed by fulfillment. Exactly one implementation exists per purpose.
type Payload interface {
	Purpose() paymentDatamodel.Purpose
}

type SaleItem struct {
	InventoryItemID int64           `json:"inventoryItemId"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
}

type ServiceItem struct {
	ServiceID int64           `json:"serviceId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type SalePayload struct {
	PharmacyID   int64         `json:"pharmacyId"`
	Items        []SaleItem    `json:"items"`
	ServiceItems []ServiceItem `json:"serviceItems,omitempty"`
}

func (SalePayload) Purpose() paymentDatamodel.Purpose { return paymentDatamodel.PurposeSale }

// PrescribedMedication is one billed medication. InventoryItemID is nil when
// no inventory record matched its name.
type PrescribedMedication struct {
	MedicationID    int64           `json:"medicationId"`
	Name            string          `json:"name"`
	InventoryItemID *int64          `json:"inventoryItemId,omitempty"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
}

type PrescriptionPayload struct {
	PrescriptionID int64                  `json:"prescriptionId"`
	PharmacyID     int64                  `json:"pharmacyId"`
	Medications    []PrescribedMedication `json:"medications"`
}

func (PrescriptionPayload) Purpose() paymentDatamodel.Purpose {
	return paymentDatamodel.PurposePrescription
}

// DispensedMedicationIDs lists every billed medication in billing order.
func (p PrescriptionPayload) DispensedMedicationIDs() []int64 {
	ids := make([]int64, 0, len(p.Medications))
	for _, m := range p.Medications {
		ids = append(ids, m.MedicationID)
	}
	return ids
}

type ServicePayload struct {
	ServiceID  int64           `json:"serviceId"`
	PharmacyID int64           `json:"pharmacyId"`
	Price      decimal.Decimal `json:"price"`
}

func (ServicePayload) Purpose() paymentDatamodel.Purpose { return paymentDatamodel.PurposeService }

type ConsultationPayload struct {
	ConsultationID int64 `json:"consultationId"`
	PharmacyID     int64 `json:"pharmacyId"`
	DoctorID       int64 `json:"doctorId"`
}

func (ConsultationPayload) Purpose() paymentDatamodel.Purpose {
	return paymentDatamodel.PurposeConsultation
}

// EncodePayload serializes p for the intent's payload column.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("encode payload: nil payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Purpose(), err)
	}
	return raw, nil
}

// DecodePayload restores the variant stored for purpose.
func DecodePayload(purpose paymentDatamodel.Purpose, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode %s payload: empty", purpose)
	}

	var (
		p   Payload
		err error
	)
	switch purpose {
	case paymentDatamodel.PurposeSale:
		var v SalePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case paymentDatamodel.PurposePrescription:
		var v PrescriptionPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case paymentDatamodel.PurposeService:
		var v ServicePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case paymentDatamodel.PurposeConsultation:
		var v ConsultationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown purpose %q", purpose)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", purpose, err)
	}
	return p, nil
}

// ToMinorUnits converts a major-unit amount to the gateway's integer minor
// units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}
