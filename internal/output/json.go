package output

import (
	"encoding/json"

	"github.com/tendergate/tendergate/internal/store"
)

// JSONFormatter renders violation records as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatViolations renders violation records as a JSON array.
func (f *JSONFormatter) FormatViolations(records []store.ViolationRecord) (string, error) {
	if records == nil {
		records = []store.ViolationRecord{}
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
