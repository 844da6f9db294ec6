package entity

import (
	"encoding/json"
	"time"
)

// DocumentRecord is the structured result of extracting one document.
// The committed table holds at most one row per Filename; re-committing
// the same filename overwrites the existing row.
type DocumentRecord struct {
	Filename string `json:"filename"`

	// Invoice/Order fields
	InvoiceNumber string `json:"invoice_number,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	OrderDate     string `json:"order_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`

	// Financial fields
	TotalAmount *float64 `json:"total_amount,omitempty"`
	TaxAmount   *float64 `json:"tax_amount,omitempty"`
	Currency    string   `json:"currency,omitempty"`

	// Product/Service fields
	ItemsDescription string   `json:"items_description,omitempty"`
	Quantity         *int     `json:"quantity,omitempty"`
	UnitPrice        *float64 `json:"unit_price,omitempty"`

	// Address fields
	BillingAddress  string `json:"billing_address,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`

	// Additional metadata
	VendorName   string `json:"vendor_name,omitempty"`
	PaymentTerms string `json:"payment_terms,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// System fields
	ContentPreview string    `json:"content_preview"`
	FullText       string    `json:"full_text,omitempty"`
	DateExtracted  time.Time `json:"date_extracted"`
}

// Snapshot serializes the record for storage in a pending order row.
func (r DocumentRecord) Snapshot() (json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// RecordFromSnapshot decodes a pending order snapshot back into a record.
func RecordFromSnapshot(snapshot json.RawMessage) (DocumentRecord, error) {
	var r DocumentRecord
	if err := json.Unmarshal(snapshot, &r); err != nil {
		return DocumentRecord{}, err
	}
	return r, nil
}
