package hostaway

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadExport reads a Hostaway review export file: either a bare JSON
// array or the API envelope {"status": "...", "result": [...]}.
func LoadExport(path string) ([]map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hostaway export: %w", err)
	}
	return ParseExport(b)
}

func ParseExport(b []byte) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(b, &direct); err == nil {
		return direct, nil
	}
	var envelope struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, fmt.Errorf("parse hostaway export: %w", err)
	}
	return envelope.Result, nil
}
