package route

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed iqaluit.yml
var defaultRoute []byte

// File is the on-disk route description.
type File struct {
	Name  string `yaml:"name" validate:"required"`
	Stops []Stop `yaml:"stops" validate:"required,min=1,unique=ID,dive"`
}

var validate = validator.New()

// Default returns the built-in Iqaluit loop.
func Default() *Topology {
	t, err := LoadYAML(bytes.NewReader(defaultRoute))
	if err != nil {
		panic(fmt.Sprintf("embedded route is invalid: %v", err))
	}
	return t
}

// LoadYAML decodes and validates a route description.
func LoadYAML(r io.Reader) (*Topology, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate route: %w", err)
	}
	return New(f.Name, f.Stops)
}

// LoadFile reads a route description from path.
func LoadFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open route file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
