// internal/stages/extract-product-info/models.go
package extractproductinfo

// rawProduct is the JSON shape the model is asked for. Price tolerates both
// string and number answers.
type rawProduct struct {
	Name        string      `json:"name"`
	Color       string      `json:"color"`
	Brand       string      `json:"brand"`
	Price       interface{} `json:"price"`
	Category    string      `json:"category"`
	Material    string      `json:"material"`
	Description string      `json:"description"`
}

func productSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name", "category"},
		"properties": map[string]interface{}{
			"name":        map[string]interface{}{"type": "string", "minLength": 1},
			"color":       map[string]interface{}{"type": "string"},
			"brand":       map[string]interface{}{"type": "string"},
			"price":       map[string]interface{}{"type": []interface{}{"string", "number"}},
			"category":    map[string]interface{}{"type": "string", "minLength": 1},
			"material":    map[string]interface{}{"type": "string"},
			"description": map[string]interface{}{"type": "string"},
		},
	}
}
