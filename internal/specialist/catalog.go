package specialist

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/soloagency/pkg/models"
)

//go:embed specialists.yaml
var builtinCatalog []byte

// catalogFile is the on-disk shape of a specialist catalogue.
type catalogFile struct {
	Specialists []models.SpecialistDef `yaml:"specialists"`
}

// Builtin returns a sealed registry holding the built-in specialists.
func Builtin() (*Registry, error) {
	return Parse(builtinCatalog)
}

// Load returns a sealed registry read from path, or the built-in catalogue
// when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Builtin()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specialist catalogue: %w", err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a YAML catalogue into a sealed registry.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal catalogue: %w", err)
	}
	if len(file.Specialists) == 0 {
		return nil, fmt.Errorf("catalogue defines no specialists")
	}

	reg := NewRegistry()
	for _, def := range file.Specialists {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}
