// Package loader reads contract definitions from disk and registers them.
// Definition files are authored as YAML or as JSON extended with comments
// and trailing commas (JSONC); both decode into the same File structure.
//
// The typical flow:
//
//  1. Load or LoadDir: file bytes into a structurally checked File
//  2. Apply: build each schema through the dsl package and register it,
//     first versions via Register, later ones via RegisterNewVersion
//  3. Holder (optional): watch a directory and swap in a freshly built
//     registry whenever the files change, keeping the old one on error
//
// Schemas built here go through the same dsl constructors as schemas built
// in code, so a definition file and its hand-written equivalent produce the
// same fingerprint.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/dsl"
)

// File is one contract definition document: a group and its contracts.
type File struct {
	// Path is where the file was read from, for error reporting. Load sets
	// it; hand-built Files may leave it empty.
	Path string `json:"-" yaml:"-"`

	Group     string         `json:"group" yaml:"group"`
	Contracts []*ContractDef `json:"contracts" yaml:"contracts"`
}

// ContractDef declares one named contract. Exactly one of Schema (a single
// version) or Versions (the full chain, ascending) must be set.
type ContractDef struct {
	Name     string       `json:"name" yaml:"name"`
	Schema   *SchemaDef   `json:"schema,omitempty" yaml:"schema,omitempty"`
	Versions []*SchemaDef `json:"versions,omitempty" yaml:"versions,omitempty"`
}

// SchemaDef is the declarative form of one schema node. Type selects the
// kind; the remaining knobs apply only to the kinds listed on them.
type SchemaDef struct {
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	// Coerce widens accepted inputs: numeric strings for number, epoch
	// seconds for time.
	Coerce bool `json:"coerce,omitempty" yaml:"coerce,omitempty"`

	// string
	MinLen  *int     `json:"minLen,omitempty" yaml:"minLen,omitempty"`
	MaxLen  *int     `json:"maxLen,omitempty" yaml:"maxLen,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum    []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// number
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Int bool     `json:"int,omitempty" yaml:"int,omitempty"`

	// object
	Fields   map[string]*SchemaDef `json:"fields,omitempty" yaml:"fields,omitempty"`
	Required []string              `json:"required,omitempty" yaml:"required,omitempty"`
	Defaults map[string]any        `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Unknown  string                `json:"unknown,omitempty" yaml:"unknown,omitempty"`

	// array
	Items    *SchemaDef `json:"items,omitempty" yaml:"items,omitempty"`
	MinItems *int       `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems *int       `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
}

// Load reads and parses one contract definition file. The extension selects
// the syntax: .yaml and .yml are YAML, .json and .jsonc are JSONC.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse decodes one contract definition document and checks it
// structurally. Unknown keys are rejected in both syntaxes.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("empty contract file")
			}
			return nil, fmt.Errorf("parsing contract file: %w", err)
		}
	case ".json", ".jsonc":
		dec := gojson.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing contract file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported contract file extension %q", ext)
	}
	if err := f.checkShape(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadDir loads every contract file in dir, in file name order. Entries with
// other extensions, dotfiles, and subdirectories are skipped.
func LoadDir(dir string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading contract dir: %w", err)
	}
	var files []*File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsContractFile(e.Name()) {
			continue
		}
		f, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// IsContractFile reports whether name has a contract file extension.
func IsContractFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", ".jsonc":
		return true
	}
	return false
}

// Apply builds every schema in files and registers it into reg. The first
// version of each contract goes through Register, later versions through
// RegisterNewVersion, so re-applying unchanged files onto a populated
// registry is a no-op.
func Apply(reg *treaty.Registry, files ...*File) error {
	for _, f := range files {
		if err := applyFile(reg, f); err != nil {
			if f.Path != "" {
				return fmt.Errorf("%s: %w", f.Path, err)
			}
			return err
		}
	}
	return nil
}

func applyFile(reg *treaty.Registry, f *File) error {
	if err := f.checkShape(); err != nil {
		return err
	}
	for _, c := range f.Contracts {
		for i, def := range c.versionDefs() {
			at := fmt.Sprintf("%s/%s@v%d", f.Group, c.Name, i+1)
			s, err := buildVersion(def, at)
			if err != nil {
				return err
			}
			if i == 0 {
				_, err = reg.Register(f.Group, c.Name, s)
			} else {
				_, err = reg.RegisterNewVersion(f.Group, c.Name, s)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", at, err)
			}
		}
	}
	return nil
}

// Check validates the file structurally and builds every schema definition,
// reporting the first fault. It registers nothing.
func (f *File) Check() error {
	if err := f.checkShape(); err != nil {
		return err
	}
	for _, c := range f.Contracts {
		for i, def := range c.versionDefs() {
			at := fmt.Sprintf("%s/%s@v%d", f.Group, c.Name, i+1)
			if _, err := buildVersion(def, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *File) checkShape() error {
	if f.Group == "" {
		return errors.New("missing group")
	}
	if len(f.Contracts) == 0 {
		return fmt.Errorf("group %s: no contracts", f.Group)
	}
	seen := make(map[string]bool, len(f.Contracts))
	for i, c := range f.Contracts {
		if c == nil || c.Name == "" {
			return fmt.Errorf("group %s: contracts[%d]: missing name", f.Group, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("group %s: duplicate contract %s", f.Group, c.Name)
		}
		seen[c.Name] = true
		if c.Schema != nil && len(c.Versions) > 0 {
			return fmt.Errorf("group %s: contract %s: schema and versions are mutually exclusive", f.Group, c.Name)
		}
		if c.Schema == nil && len(c.Versions) == 0 {
			return fmt.Errorf("group %s: contract %s: missing schema", f.Group, c.Name)
		}
	}
	return nil
}

func (c *ContractDef) versionDefs() []*SchemaDef {
	if c.Schema != nil {
		return []*SchemaDef{c.Schema}
	}
	return c.Versions
}

// BuildSchema builds one schema definition into its executable form without
// touching a registry.
func BuildSchema(def *SchemaDef) (treaty.AnySchema, error) {
	return buildVersion(def, "schema")
}

func buildVersion(def *SchemaDef, at string) (treaty.AnySchema, error) {
	ad, err := buildAdapter(def, at)
	if err != nil {
		return nil, err
	}
	s := dsl.Erased(ad)
	if d, ok := s.(interface{ DefError() *treaty.DefinitionError }); ok {
		if de := d.DefError(); de != nil {
			return nil, fmt.Errorf("%s: %w", at, de)
		}
	}
	return s, nil
}

func buildAdapter(def *SchemaDef, at string) (dsl.AnyAdapter, error) {
	if def == nil {
		return nil, fmt.Errorf("%s: missing schema definition", at)
	}
	if def.Type == "" {
		return nil, fmt.Errorf("%s: missing type", at)
	}
	if err := checkKnobs(def, at); err != nil {
		return nil, err
	}

	var ad dsl.AnyAdapter
	switch def.Type {
	case "string":
		s := dsl.String()
		if def.MinLen != nil {
			s = s.MinLen(*def.MinLen)
		}
		if def.MaxLen != nil {
			s = s.MaxLen(*def.MaxLen)
		}
		if def.Pattern != "" {
			s = s.Pattern(def.Pattern)
		}
		if len(def.Enum) > 0 {
			s = s.Enum(def.Enum...)
		}
		ad = s
	case "number":
		n := dsl.Number()
		if def.Min != nil {
			n = n.Min(*def.Min)
		}
		if def.Max != nil {
			n = n.Max(*def.Max)
		}
		if def.Int {
			n = n.Int()
		}
		if def.Coerce {
			n = n.Coerce()
		}
		ad = n
	case "bool":
		ad = dsl.Bool()
	case "time":
		ts := dsl.Time()
		if def.Coerce {
			ts = ts.Coerce()
		}
		ad = ts
	case "object":
		obj, err := buildObject(def, at)
		if err != nil {
			return nil, err
		}
		ad = obj
	case "array":
		if def.Items == nil {
			return nil, fmt.Errorf("%s: array schema needs items", at)
		}
		elem, err := buildAdapter(def.Items, at+".items")
		if err != nil {
			return nil, err
		}
		arr := dsl.ArrayOf(elem)
		if def.MinItems != nil {
			arr = arr.MinItems(*def.MinItems)
		}
		if def.MaxItems != nil {
			arr = arr.MaxItems(*def.MaxItems)
		}
		ad = arr
	default:
		return nil, fmt.Errorf("%s: unknown type %q", at, def.Type)
	}

	if def.Nullable {
		ad = dsl.NullableOf(ad)
	}
	return ad, nil
}

func buildObject(def *SchemaDef, at string) (*dsl.ObjectSchema, error) {
	b := dsl.Object()
	for _, name := range sortedFieldNames(def.Fields) {
		fieldAd, err := buildAdapter(def.Fields[name], at+".fields."+name)
		if err != nil {
			return nil, err
		}
		b = b.Field(name, fieldAd)
	}
	if len(def.Required) > 0 {
		b = b.Require(def.Required...)
	}
	for _, name := range sortedDefaultNames(def.Defaults) {
		b = b.Default(name, def.Defaults[name])
	}
	switch def.Unknown {
	case "", "strict":
		b = b.UnknownStrict()
	case "strip":
		b = b.UnknownStrip()
	case "passthrough":
		b = b.UnknownPassthrough()
	default:
		return nil, fmt.Errorf("%s: unknown policy %q (want strict, strip, or passthrough)", at, def.Unknown)
	}
	obj, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", at, err)
	}
	return obj, nil
}

func sortedFieldNames(fields map[string]*SchemaDef) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedDefaultNames(defaults map[string]any) []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// knobsByType is which SchemaDef knobs each type accepts. nullable is not
// listed; it wraps any type.
var knobsByType = map[string]map[string]bool{
	"string": {"minLen": true, "maxLen": true, "pattern": true, "enum": true},
	"number": {"min": true, "max": true, "int": true, "coerce": true},
	"bool":   {},
	"time":   {"coerce": true},
	"object": {"fields": true, "required": true, "defaults": true, "unknown": true},
	"array":  {"items": true, "minItems": true, "maxItems": true},
}

func checkKnobs(def *SchemaDef, at string) error {
	allowed, ok := knobsByType[def.Type]
	if !ok {
		return nil
	}
	set := map[string]bool{
		"minLen":   def.MinLen != nil,
		"maxLen":   def.MaxLen != nil,
		"pattern":  def.Pattern != "",
		"enum":     len(def.Enum) > 0,
		"min":      def.Min != nil,
		"max":      def.Max != nil,
		"int":      def.Int,
		"coerce":   def.Coerce,
		"fields":   len(def.Fields) > 0,
		"required": len(def.Required) > 0,
		"defaults": len(def.Defaults) > 0,
		"unknown":  def.Unknown != "",
		"items":    def.Items != nil,
		"minItems": def.MinItems != nil,
		"maxItems": def.MaxItems != nil,
	}
	var stray []string
	for name, isSet := range set {
		if isSet && !allowed[name] {
			stray = append(stray, name)
		}
	}
	if len(stray) == 0 {
		return nil
	}
	sort.Strings(stray)
	return fmt.Errorf("%s: %s schema does not accept %s", at, def.Type, strings.Join(stray, ", "))
}
