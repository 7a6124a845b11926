package pipeline

import (
	"fmt"
	"sync"

	"github.com/LielaXea/ecommerce-scraper/models"
)

// DualWriter outputs to CSV and XLSX simultaneously.
type DualWriter struct {
	csvWriter  *CSVWriter
	xlsxWriter *XLSXWriter
	mu         sync.Mutex
}

// NewDualWriter creates writers for both formats.
func NewDualWriter(csvFilename, xlsxFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	xlsxWriter, err := NewXLSXWriter(xlsxFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create xlsx writer: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		xlsxWriter: xlsxWriter,
	}, nil
}

// Write writes products to both outputs.
func (dw *DualWriter) Write(products []*models.Product) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(products); err != nil {
		return fmt.Errorf("csv write failed: %w", err)
	}
	if err := dw.xlsxWriter.Write(products); err != nil {
		return fmt.Errorf("xlsx write failed: %w", err)
	}
	return nil
}

// WriteErrors writes the page error list to both outputs.
func (dw *DualWriter) WriteErrors(errs []models.PageError) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.WriteErrors(errs); err != nil {
		return fmt.Errorf("csv errors write failed: %w", err)
	}
	if err := dw.xlsxWriter.WriteErrors(errs); err != nil {
		return fmt.Errorf("xlsx errors write failed: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv close failed: %w", err))
	}
	if err := dw.xlsxWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("xlsx close failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}
	return nil
}

// Validate validates both outputs.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("csv validation failed: %w", err))
	}
	if err := dw.xlsxWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("xlsx validation failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
