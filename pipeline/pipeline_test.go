package pipeline

import (
	"errors"
	"testing"

	"github.com/LielaXea/ecommerce-scraper/models"
)

type mockWriter struct {
	written   []*models.Product
	errs      []models.PageError
	writeErr  error
	errsCalls int
}

func (mw *mockWriter) Write(products []*models.Product) error {
	if mw.writeErr != nil {
		return mw.writeErr
	}
	mw.written = append(mw.written, products...)
	return nil
}

func (mw *mockWriter) WriteErrors(errs []models.PageError) error {
	mw.errsCalls++
	mw.errs = append(mw.errs, errs...)
	return nil
}

func (mw *mockWriter) Close() error { return nil }

func (mw *mockWriter) Validate() error { return nil }

func TestExportWritesRecordsAndErrors(t *testing.T) {
	summary := &models.RunSummary{
		Records: sampleProducts(),
		Errors:  samplePageErrors(),
	}
	writer := &mockWriter{}

	if err := Export(summary, writer); err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(writer.written) != 2 {
		t.Fatalf("written = %d, want 2", len(writer.written))
	}
	if len(writer.errs) != 2 {
		t.Fatalf("errors = %d, want 2", len(writer.errs))
	}
}

func TestExportSkipsEmptyErrorList(t *testing.T) {
	summary := &models.RunSummary{Records: sampleProducts()}
	writer := &mockWriter{}

	if err := Export(summary, writer); err != nil {
		t.Fatalf("export: %v", err)
	}
	if writer.errsCalls != 0 {
		t.Fatalf("WriteErrors called %d times, want 0", writer.errsCalls)
	}
}

func TestExportPropagatesWriteFailure(t *testing.T) {
	summary := &models.RunSummary{Records: sampleProducts()}
	writer := &mockWriter{writeErr: errors.New("disk full")}

	if err := Export(summary, writer); err == nil {
		t.Fatalf("expected write failure to propagate")
	}
}
