package prescription

// DispenseRequest fulfils a paid prescription. Medications lists the lines
// that were billed; those carrying an InventoryItemID lose one unit of stock.
type DispenseRequest struct {
	PrescriptionID   int64
	PharmacyID       int64
	PaymentReference string
	Medications      []DispensedMedication
}

type DispensedMedication struct {
	MedicationID    int64
	InventoryItemID *int64
}
