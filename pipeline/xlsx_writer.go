package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LielaXea/ecommerce-scraper/models"
)

const (
	productSheet = "Products"
	errorSheet   = "Errors"
	maxColWidth  = 50
)

// XLSXWriter writes records to an Excel workbook: a Products sheet with
// auto-sized columns and an Errors sheet for the page error list. The file
// is materialized on Close.
type XLSXWriter struct {
	path    string
	book    *excelize.File
	mu      sync.Mutex
	rows    int
	errRows int
	widths  []float64
}

// NewXLSXWriter initialises the workbook and the Products header row.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", productSheet); err != nil {
		return nil, fmt.Errorf("name products sheet: %w", err)
	}

	xw := &XLSXWriter{
		path:   filename,
		book:   book,
		widths: make([]float64, len(productHeader)),
	}
	header := make([]interface{}, len(productHeader))
	for i, name := range productHeader {
		header[i] = name
		xw.observeWidth(i, name)
	}
	if err := book.SetSheetRow(productSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write products header: %w", err)
	}
	return xw, nil
}

// Write appends products to the Products sheet.
func (xw *XLSXWriter) Write(products []*models.Product) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, product := range products {
		row := []interface{}{
			product.Name,
			product.Price,
			product.Currency,
			product.Rating,
			string(product.Availability),
			product.InStock,
			product.URL,
			product.ImageURL,
			product.Page,
			product.ScrapedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, xw.rows+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := xw.book.SetSheetRow(productSheet, cell, &row); err != nil {
			return fmt.Errorf("write product row: %w", err)
		}
		for i, value := range row {
			xw.observeWidth(i, fmt.Sprint(value))
		}
		xw.rows++
	}
	return nil
}

// WriteErrors appends the page error list to the Errors sheet, creating it
// on first use.
func (xw *XLSXWriter) WriteErrors(errs []models.PageError) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if len(errs) == 0 {
		return nil
	}

	if xw.errRows == 0 {
		if _, err := xw.book.NewSheet(errorSheet); err != nil {
			return fmt.Errorf("create errors sheet: %w", err)
		}
		header := make([]interface{}, len(errorHeader))
		for i, name := range errorHeader {
			header[i] = name
		}
		if err := xw.book.SetSheetRow(errorSheet, "A1", &header); err != nil {
			return fmt.Errorf("write errors header: %w", err)
		}
	}

	for _, pageErr := range errs {
		cell, err := excelize.CoordinatesToCellName(1, xw.errRows+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		row := []interface{}{pageErr.Page, pageErr.Reason}
		if err := xw.book.SetSheetRow(errorSheet, cell, &row); err != nil {
			return fmt.Errorf("write error row: %w", err)
		}
		xw.errRows++
	}
	return nil
}

// Close sizes the columns and saves the workbook to disk.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for i, width := range xw.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := xw.book.SetColWidth(productSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := xw.book.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return xw.book.Close()
}

// Validate ensures the workbook has data rows besides the header.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.rows == 0 {
		return fmt.Errorf("xlsx output has no records")
	}
	return nil
}

func (xw *XLSXWriter) observeWidth(col int, value string) {
	width := float64(len(value)) + 2
	if width > maxColWidth {
		width = maxColWidth
	}
	if width > xw.widths[col] {
		xw.widths[col] = width
	}
}
