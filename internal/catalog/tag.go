package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TagClient returns raw with its top-level successful_client key set to
// client. Other keys are preserved byte-for-byte.
func TagClient(raw []byte, client string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode probe document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode probe document: not an object")
	}
	value, err := json.Marshal(strings.TrimSpace(client))
	if err != nil {
		return nil, err
	}
	doc[ClientKey] = value
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode probe document: %w", err)
	}
	return out, nil
}

// TaggedClient reads the successful_client key without building a catalog.
func TaggedClient(raw []byte) string {
	var doc struct {
		Client string `json:"successful_client"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Client)
}
