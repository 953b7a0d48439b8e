package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/ifd/internal/analysis"
)

type ExportData struct {
	Run     RunMetadata       `json:"run"`
	Results []analysis.Result `json:"results"`
	Review  *analysis.Review  `json:"review,omitempty"`
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return EncodeJSON(file, data)
}

func EncodeJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Export gathers a stored run for ExportJSON.
func (s *Store) Export(runID string) (ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return ExportData{}, err
	}
	results, err := s.LoadResults(runID)
	if err != nil {
		return ExportData{}, err
	}
	return ExportData{Run: *meta, Results: results}, nil
}
