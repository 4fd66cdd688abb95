// cmd/tools/catalog-validator/main.go
//
// Validates a wardrobe catalog file before it is deployed. Reports
// malformed entries and suspicious-but-legal ones, and exits non-zero
// when the catalog would break lookups at runtime.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"stylist-pipeline/internal/common/validation"
	"stylist-pipeline/pkg/catalog"
)

func main() {
	path := flag.String("path", "configs/wardrobe_catalog.json", "Path to the wardrobe catalog file")
	flag.Parse()

	cat, err := catalog.LoadCatalog(*path)
	if err != nil {
		fmt.Printf("Error loading catalog %s: %v\n", *path, err)
		os.Exit(1)
	}

	var errors []string
	var warnings []string

	if cat.Version == "" {
		warnings = append(warnings, "catalog has no version field")
	}

	seenUsers := map[string]bool{}
	totalItems := 0

	for i, user := range cat.Users {
		label := fmt.Sprintf("users[%d]", i)
		if user.UserID != "" {
			label = user.UserID
		}

		if user.UserID == "" {
			errors = append(errors, fmt.Sprintf("%s: missing userId", label))
		} else if seenUsers[user.UserID] {
			errors = append(errors, fmt.Sprintf("%s: duplicate userId", label))
		}
		seenUsers[user.UserID] = true

		if user.PhotoRef == "" {
			warnings = append(warnings, fmt.Sprintf("%s: no photoRef, try-on generation will fail for this user", label))
		}
		if user.Email != "" && !validation.ValidateEmail(user.Email) {
			errors = append(errors, fmt.Sprintf("%s: invalid email %q", label, user.Email))
		}
		if user.Phone != "" && !validation.ValidatePhone(user.Phone) {
			errors = append(errors, fmt.Sprintf("%s: invalid phone %q", label, user.Phone))
		}
		if len(user.Wardrobe) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: empty wardrobe, analysis will use the neutral score", label))
		}

		seenItems := map[string]bool{}
		for j, item := range user.Wardrobe {
			itemLabel := fmt.Sprintf("%s/wardrobe[%d]", label, j)
			if item.ID != "" {
				itemLabel = fmt.Sprintf("%s/%s", label, item.ID)
			}

			if item.ID == "" {
				errors = append(errors, fmt.Sprintf("%s: missing item id", itemLabel))
			} else if seenItems[item.ID] {
				errors = append(errors, fmt.Sprintf("%s: duplicate item id", itemLabel))
			}
			seenItems[item.ID] = true

			if item.Name == "" {
				errors = append(errors, fmt.Sprintf("%s: missing item name", itemLabel))
			}
			if item.Category == "" {
				warnings = append(warnings, fmt.Sprintf("%s: no category, will be treated as a top", itemLabel))
			}
			if item.ColorHex != "" && !validation.ValidateHexColor(item.ColorHex) {
				errors = append(errors, fmt.Sprintf("%s: invalid colorHex %q", itemLabel, item.ColorHex))
			}
			if item.ImageRef == "" {
				warnings = append(warnings, fmt.Sprintf("%s: no imageRef, item cannot ride along as a try-on reference", itemLabel))
			}
			totalItems++
		}
	}

	fmt.Printf("Catalog: %s (version %s)\n", *path, cat.Version)
	fmt.Printf("Users: %d, items: %d\n", len(cat.Users), totalItems)

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(warnings))
		fmt.Println("  " + strings.Join(warnings, "\n  "))
	}
	if len(errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(errors))
		fmt.Println("  " + strings.Join(errors, "\n  "))
		os.Exit(1)
	}

	fmt.Println("\nCatalog is valid.")
}
