package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fs1diag/internal"
)

// ReadInput reads a bulk export from disk. An empty inputType is inferred
// from the file extension.
func ReadInput(inputType, path string) (internal.RecordOrigin, []internal.RawRecord, error) {
	if inputType == "" {
		inputType = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch inputType {
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		records, err := ReadCSV(f, internal.OriginCSV)
		return internal.OriginCSV, records, err
	case "xlsx":
		blob, err := os.ReadFile(path)
		if err != nil {
			return "", nil, err
		}
		records, err := ReadXLSX(blob)
		return internal.OriginXLSX, records, err
	case "eml":
		blob, err := os.ReadFile(path)
		if err != nil {
			return "", nil, err
		}
		n, err := ParseNotification(blob, "")
		if err != nil {
			return "", nil, err
		}
		if !n.Detect.IsNotification {
			return "", nil, fmt.Errorf("%s is not a form notification (%s)", path, n.Detect.Reason)
		}
		return internal.OriginZohoMail, []internal.RawRecord{n.Record}, nil
	default:
		return "", nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
