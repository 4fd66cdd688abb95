// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"os"
)

func LoadCatalog(path string) (*WardrobeCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat WardrobeCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}
