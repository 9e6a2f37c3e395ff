package matcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"microplastic-id/utils"
)

var ErrEmptyCatalog = errors.New("reference catalog is empty")

// Catalog is an immutable list of reference materials. Order is significant:
// it breaks ties between equally scored candidates.
type Catalog struct {
	materials []ReferenceMaterial
}

// NewCatalog copies materials into a catalog.
func NewCatalog(materials []ReferenceMaterial) Catalog {
	return Catalog{materials: cloneMaterials(materials)}
}

// Materials returns a copy of the catalog entries.
func (c Catalog) Materials() []ReferenceMaterial {
	return cloneMaterials(c.materials)
}

func (c Catalog) Len() int {
	return len(c.materials)
}

func (c Catalog) at(i int) ReferenceMaterial {
	return c.materials[i]
}

func cloneMaterials(in []ReferenceMaterial) []ReferenceMaterial {
	out := make([]ReferenceMaterial, len(in))
	for i, m := range in {
		m.PeakWavelengths = append([]float64(nil), m.PeakWavelengths...)
		m.Characteristics = append([]string(nil), m.Characteristics...)
		out[i] = m
	}
	return out
}

// DefaultCatalog holds the built-in reference materials.
func DefaultCatalog() Catalog {
	return NewCatalog([]ReferenceMaterial{
		{
			Type:            "PET Bottle Fragment",
			Color:           "Clear Blue",
			Polymer:         "Polyethylene Terephthalate",
			Colorant:        "Cobalt Blue",
			PeakWavelengths: []float64{500, 740},
			Characteristics: []string{"high_crystallinity", "bottle_origin"},
		},
		{
			Type:            "PE Film Fragment",
			Color:           "Translucent White",
			Polymer:         "Polyethylene",
			Colorant:        "Titanium Dioxide",
			PeakWavelengths: []float64{460, 680},
			Characteristics: []string{"flexible", "film_origin"},
		},
		{
			Type:            "PP Container Piece",
			Color:           "Red",
			Polymer:         "Polypropylene",
			Colorant:        "Iron Oxide Red",
			PeakWavelengths: []float64{650, 720},
			Characteristics: []string{"rigid", "container_origin"},
		},
		{
			Type:            "PS Foam Fragment",
			Color:           "White",
			Polymer:         "Polystyrene",
			Colorant:        "Titanium Dioxide",
			PeakWavelengths: []float64{480, 760},
			Characteristics: []string{"foam_structure", "lightweight"},
		},
		{
			Type:            "PVC Pipe Fragment",
			Color:           "Gray",
			Polymer:         "Polyvinyl Chloride",
			Colorant:        "Carbon Black",
			PeakWavelengths: []float64{520, 780},
			Characteristics: []string{"rigid", "pipe_origin"},
		},
		{
			Type:            "Nylon Fiber",
			Color:           "Blue",
			Polymer:         "Polyamide",
			Colorant:        "Methylene Blue",
			PeakWavelengths: []float64{495, 660},
			Characteristics: []string{"fiber_structure", "textile_origin"},
		},
	})
}

// LoadCatalogFile reads a JSON array of reference materials. When path is
// missing, the sibling "<name>.example<ext>" file is tried instead; the
// returned flag reports whether that fallback was used.
func LoadCatalogFile(path string) (Catalog, bool, error) {
	resolvedPath := filepath.Clean(path)
	usingExample := false

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		ext := filepath.Ext(resolvedPath)
		fallbackPath := strings.TrimSuffix(resolvedPath, ext) + ".example" + ext
		data, err = os.ReadFile(fallbackPath)
		if err != nil {
			return Catalog{}, false, fmt.Errorf("failed to load catalog (%s): %w", resolvedPath, err)
		}
		utils.GetLogger().Warn("falling back to example catalog", "path", fallbackPath)
		resolvedPath = fallbackPath
		usingExample = true
	}

	var materials []ReferenceMaterial
	if err := json.Unmarshal(data, &materials); err != nil {
		return Catalog{}, false, fmt.Errorf("unable to parse catalog: %w", err)
	}
	if len(materials) == 0 {
		return Catalog{}, false, fmt.Errorf("%s: %w", resolvedPath, ErrEmptyCatalog)
	}

	for _, m := range materials {
		if strings.TrimSpace(m.Type) == "" {
			return Catalog{}, false, fmt.Errorf("catalog %s has a material without a type", resolvedPath)
		}
		if len(m.PeakWavelengths) == 0 {
			utils.GetLogger().Warn("reference material has no peaks and will never match", "type", m.Type)
		}
	}

	return NewCatalog(materials), usingExample, nil
}

// SaveCatalogFile writes the catalog as indented JSON, replacing path atomically.
func SaveCatalogFile(path string, catalog Catalog) error {
	if err := utils.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(catalog.materials, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
