// internal/models/product.go
package models

import "strings"

// Category classifies a garment. Closed set: switches over it must be
// exhaustive and unknown raw values are normalized before use.
type Category string

const (
	CategoryTop       Category = "top"
	CategoryBottom    Category = "bottom"
	CategoryShoes     Category = "shoes"
	CategoryAccessory Category = "accessory"
	CategoryOuterwear Category = "outerwear"
	CategoryDress     Category = "dress"
)

// WardrobeCategories are the categories wardrobe items belong to and the
// unit of the one-selection-per-category rule.
func WardrobeCategories() []Category {
	return []Category{CategoryTop, CategoryBottom, CategoryShoes, CategoryAccessory}
}

// ParseCategory normalizes a free-form product type ("Denim Jacket",
// "running sneakers") into a Category.
func ParseCategory(raw string) Category {
	v := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case containsAny(v, "jacket", "coat", "blazer", "parka", "outerwear"):
		return CategoryOuterwear
	case containsAny(v, "dress", "gown", "jumpsuit"):
		return CategoryDress
	case containsAny(v, "jean", "trouser", "pant", "skirt", "short", "legging", "bottom"):
		return CategoryBottom
	case containsAny(v, "sneaker", "boot", "shoe", "heel", "loafer", "sandal", "footwear"):
		return CategoryShoes
	case containsAny(v, "bag", "hat", "cap", "belt", "scarf", "jewel", "watch", "sunglass", "accessor"):
		return CategoryAccessory
	default:
		return CategoryTop
	}
}

func containsAny(v string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(v, kw) {
			return true
		}
	}
	return false
}

// VisibleCategories lists the wardrobe categories worth pairing with a
// product of the given category. A dress leaves no room for separate tops
// and bottoms; everything else pairs with the remaining three.
func VisibleCategories(product Category) []Category {
	switch product {
	case CategoryOuterwear, CategoryTop:
		return []Category{CategoryBottom, CategoryShoes, CategoryAccessory}
	case CategoryBottom:
		return []Category{CategoryTop, CategoryShoes, CategoryAccessory}
	case CategoryShoes:
		return []Category{CategoryTop, CategoryBottom, CategoryAccessory}
	case CategoryAccessory:
		return []Category{CategoryTop, CategoryBottom, CategoryShoes}
	case CategoryDress:
		return []Category{CategoryShoes, CategoryAccessory}
	default:
		return WardrobeCategories()
	}
}

// ProductInfo holds the facts extracted from a captured product page.
type ProductInfo struct {
	Name        string   `json:"name"`
	Color       string   `json:"color,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Price       string   `json:"price,omitempty"`
	Category    Category `json:"category"`
	Material    string   `json:"material,omitempty"`
	Description string   `json:"description,omitempty"`
}
