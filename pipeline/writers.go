package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LielaXea/ecommerce-scraper/models"
)

var productHeader = []string{
	"name", "price", "currency", "rating", "availability",
	"in_stock", "url", "image_url", "page", "scraped_at",
}

var errorHeader = []string{"page", "reason"}

func productRow(p *models.Product) []string {
	return []string{
		p.Name,
		strconv.FormatFloat(p.Price, 'f', 2, 64),
		p.Currency,
		strconv.Itoa(p.Rating),
		string(p.Availability),
		strconv.FormatBool(p.InStock),
		p.URL,
		p.ImageURL,
		strconv.Itoa(p.Page),
		p.ScrapedAt.Format(time.RFC3339),
	}
}

// CSVWriter writes records to CSV. Page errors go to a sidecar
// "<name>.errors.csv" file created on first use.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	errPath string
	mu      sync.Mutex
	rows    int
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(productHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:    f,
		writer:  writer,
		errPath: sidecarPath(filename),
	}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, product := range products {
		if err := cw.writer.Write(productRow(product)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// WriteErrors writes the page error list to the sidecar file.
func (cw *CSVWriter) WriteErrors(errs []models.PageError) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if len(errs) == 0 {
		return nil
	}

	f, err := os.Create(cw.errPath)
	if err != nil {
		return fmt.Errorf("create errors file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(errorHeader); err != nil {
		return fmt.Errorf("write errors header: %w", err)
	}
	for _, pageErr := range errs {
		record := []string{strconv.Itoa(pageErr.Page), pageErr.Reason}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write error record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush errors file: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the output has content besides the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.rows == 0 {
		return fmt.Errorf("csv output has no records")
	}
	return nil
}

func sidecarPath(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ".errors.csv"
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
