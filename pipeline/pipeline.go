// Package pipeline writes finished runs out to tabular files.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/LielaXea/ecommerce-scraper/models"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(products []*models.Product) error
	WriteErrors(errs []models.PageError) error
	Close() error
	Validate() error
}

// Export hands a finished run to the writer: the ordered record rows first,
// then the itemized page errors.
func Export(summary *models.RunSummary, writer OutputWriter) error {
	if err := writer.Write(summary.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if len(summary.Errors) > 0 {
		if err := writer.WriteErrors(summary.Errors); err != nil {
			return fmt.Errorf("write errors: %w", err)
		}
	}
	slog.Info("export complete",
		slog.Int("records", len(summary.Records)),
		slog.Int("errors", len(summary.Errors)),
	)
	return nil
}
