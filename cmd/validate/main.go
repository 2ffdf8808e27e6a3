// Command validate lints campaign and achievement catalog content files
// before they ship.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dmkeith/dungeonmaster/pkg/achievements"
	"github.com/dmkeith/dungeonmaster/pkg/campaign"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <campaign|catalog> <file.json>\n", os.Args[0])
		os.Exit(1)
	}

	kind, filename := os.Args[1], os.Args[2]
	v := &contentValidator{}

	var err error
	switch kind {
	case "campaign":
		err = v.validateCampaignFile(filename)
	case "catalog":
		err = v.validateCatalogFile(filename)
	default:
		fmt.Fprintf(os.Stderr, "Unknown content kind %q (campaign|catalog)\n", kind)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s file is valid!\n", kind)
}

type contentValidator struct {
	errors []string
}

func (v *contentValidator) validateCampaignFile(filename string) error {
	data, err := v.readContent(filename)
	if err != nil {
		return err
	}

	c, err := campaign.Load(data)
	if err != nil {
		return err
	}

	v.errors = nil
	for _, scene := range c.Scenes {
		v.validateIDFormat("scene id", scene.ID)
		for _, choice := range scene.Choices {
			v.validateIDFormat("choice id", choice.ID)
			for key := range choice.Requires {
				v.validateIDFormat("flag", key)
			}
		}
	}
	return v.result(filename)
}

func (v *contentValidator) validateCatalogFile(filename string) error {
	data, err := v.readContent(filename)
	if err != nil {
		return err
	}

	catalog, err := achievements.LoadCatalog(data)
	if err != nil {
		return err
	}

	v.errors = nil
	for _, a := range catalog.All() {
		v.validateIDFormat("achievement id", a.ID)
		if a.Title == "" {
			v.addError(fmt.Sprintf("achievement %q has no title", a.ID))
		}
		if !a.OncePerUser && a.CooldownSec == 0 {
			v.addError(fmt.Sprintf("achievement %q is repeatable with no cooldown", a.ID))
		}
	}
	return v.result(filename)
}

func (v *contentValidator) readContent(filename string) ([]byte, error) {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return nil, fmt.Errorf("content file must have .json extension: %s", baseName)
	}
	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidID(nameWithoutExt) {
		return nil, fmt.Errorf("content filename '%s' must be lowercase snake_case", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("file %s contains invalid JSON", filename)
	}
	return data, nil
}

func (v *contentValidator) result(filename string) error {
	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *contentValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *contentValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
