package reporter

import (
	"encoding/json"
	"io"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

// GenerateJSON writes the report document as indented JSON.
func GenerateJSON(report *models.Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return errors.Wrap(err, "error encoding JSON")
	}
	return nil
}
