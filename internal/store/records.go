package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/pdf-orders/internal/common"
	"github.com/joseph-ayodele/pdf-orders/internal/entity"
)

const upsertDocumentSQL = `
INSERT INTO documents
    (filename, invoice_number, customer_name, customer_email, order_date, due_date,
     total_amount, tax_amount, currency, items_description, quantity, unit_price,
     billing_address, shipping_address, vendor_name, payment_terms, notes,
     content_preview, full_text, date_extracted, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (filename) DO UPDATE SET
    invoice_number    = excluded.invoice_number,
    customer_name     = excluded.customer_name,
    customer_email    = excluded.customer_email,
    order_date        = excluded.order_date,
    due_date          = excluded.due_date,
    total_amount      = excluded.total_amount,
    tax_amount        = excluded.tax_amount,
    currency          = excluded.currency,
    items_description = excluded.items_description,
    quantity          = excluded.quantity,
    unit_price        = excluded.unit_price,
    billing_address   = excluded.billing_address,
    shipping_address  = excluded.shipping_address,
    vendor_name       = excluded.vendor_name,
    payment_terms     = excluded.payment_terms,
    notes             = excluded.notes,
    content_preview   = excluded.content_preview,
    full_text         = excluded.full_text,
    date_extracted    = excluded.date_extracted`

const selectDocumentSQL = `
SELECT filename, invoice_number, customer_name, customer_email, order_date, due_date,
       total_amount, tax_amount, currency, items_description, quantity, unit_price,
       billing_address, shipping_address, vendor_name, payment_terms, notes,
       content_preview, full_text, date_extracted
FROM documents`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDocument(ctx context.Context, ex execer, rec entity.DocumentRecord) error {
	if rec.DateExtracted.IsZero() {
		rec.DateExtracted = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx, upsertDocumentSQL,
		rec.Filename,
		nullStr(rec.InvoiceNumber), nullStr(rec.CustomerName), nullStr(rec.CustomerEmail),
		nullStr(rec.OrderDate), nullStr(rec.DueDate),
		nullFloat(rec.TotalAmount), nullFloat(rec.TaxAmount), nullStr(rec.Currency),
		nullStr(rec.ItemsDescription), nullInt(rec.Quantity), nullFloat(rec.UnitPrice),
		nullStr(rec.BillingAddress), nullStr(rec.ShippingAddress),
		nullStr(rec.VendorName), nullStr(rec.PaymentTerms), nullStr(rec.Notes),
		rec.ContentPreview, rec.FullText, formatTime(rec.DateExtracted),
		formatTime(time.Now()),
	)
	return err
}

// UpsertRecord inserts or overwrites the committed row for rec.Filename.
// Idempotent: committing identical data twice leaves exactly one row.
func (s *Store) UpsertRecord(ctx context.Context, rec entity.DocumentRecord) error {
	if rec.Filename == "" {
		return common.ValidationError("filename is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := upsertDocument(ctx, s.db, rec); err != nil {
		s.log.Error("document upsert failed", "filename", rec.Filename, "error", err)
		return fmt.Errorf("upsert document: %w", err)
	}
	s.log.Info("document upserted", "filename", rec.Filename)
	return nil
}

// GetRecord returns the committed row for filename, or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, filename string) (*entity.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, selectDocumentSQL+" WHERE filename = ?", filename)
	rec, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundErrorf("document %q", filename)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return rec, nil
}

// ListRecords returns all committed rows, newest extraction first. The
// result is snapshot-consistent at call time.
func (s *Store) ListRecords(ctx context.Context) ([]*entity.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, selectDocumentSQL+" ORDER BY created_at DESC, filename")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*entity.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*entity.DocumentRecord, error) {
	var (
		rec           entity.DocumentRecord
		invoiceNumber sql.NullString
		customerName  sql.NullString
		customerEmail sql.NullString
		orderDate     sql.NullString
		dueDate       sql.NullString
		totalAmount   sql.NullFloat64
		taxAmount     sql.NullFloat64
		currency      sql.NullString
		itemsDesc     sql.NullString
		quantity      sql.NullInt64
		unitPrice     sql.NullFloat64
		billingAddr   sql.NullString
		shippingAddr  sql.NullString
		vendorName    sql.NullString
		paymentTerms  sql.NullString
		notes         sql.NullString
		dateExtracted string
	)
	if err := sc.Scan(
		&rec.Filename, &invoiceNumber, &customerName, &customerEmail, &orderDate, &dueDate,
		&totalAmount, &taxAmount, &currency, &itemsDesc, &quantity, &unitPrice,
		&billingAddr, &shippingAddr, &vendorName, &paymentTerms, &notes,
		&rec.ContentPreview, &rec.FullText, &dateExtracted,
	); err != nil {
		return nil, err
	}
	rec.InvoiceNumber = invoiceNumber.String
	rec.CustomerName = customerName.String
	rec.CustomerEmail = customerEmail.String
	rec.OrderDate = orderDate.String
	rec.DueDate = dueDate.String
	if totalAmount.Valid {
		v := totalAmount.Float64
		rec.TotalAmount = &v
	}
	if taxAmount.Valid {
		v := taxAmount.Float64
		rec.TaxAmount = &v
	}
	rec.Currency = currency.String
	rec.ItemsDescription = itemsDesc.String
	if quantity.Valid {
		v := int(quantity.Int64)
		rec.Quantity = &v
	}
	if unitPrice.Valid {
		v := unitPrice.Float64
		rec.UnitPrice = &v
	}
	rec.BillingAddress = billingAddr.String
	rec.ShippingAddress = shippingAddr.String
	rec.VendorName = vendorName.String
	rec.PaymentTerms = paymentTerms.String
	rec.Notes = notes.String
	rec.DateExtracted = parseTime(dateExtracted)
	return &rec, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
