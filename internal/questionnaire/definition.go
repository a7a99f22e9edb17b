// Package questionnaire drives a multi-page questionnaire: it asks each
// page's fields, validates the answers, hands the page to the form
// synchronizer and watches the page for inactivity.
package questionnaire

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formsync/internal/fuzzy"
	"github.com/roach88/formsync/internal/store"
)

// FieldKind selects how a field is asked and what Value it produces.
type FieldKind string

const (
	KindText   FieldKind = "text"   // form.String
	KindInt    FieldKind = "int"    // form.Int
	KindBool   FieldKind = "bool"   // form.Bool
	KindChoice FieldKind = "choice" // form.String, one of Options
	KindEntity FieldKind = "entity" // catalog id in Name, label or raw text in NameField
)

// Field is one question.
type Field struct {
	Name     string    `yaml:"name"`
	Label    string    `yaml:"label"`
	Help     string    `yaml:"help,omitempty"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required,omitempty"`

	// Options lists the allowed answers of a choice field.
	Options []string `yaml:"options,omitempty"`

	// Catalog names the entity list searched by an entity field.
	Catalog string `yaml:"catalog,omitempty"`

	// NameField receives the matched label (or the raw text when nothing
	// matched) of an entity field.
	NameField string `yaml:"name_field,omitempty"`

	// When names a bool field of the same page; the field is only asked
	// when that answer is true.
	When string `yaml:"when,omitempty"`
}

// Page is one screen of the questionnaire and one field group in the
// local store.
type Page struct {
	Group  string  `yaml:"group"`
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields"`
}

// Definition is a whole questionnaire.
type Definition struct {
	Title string `yaml:"title"`

	// Catalogs maps catalog names to YAML files, relative to the
	// definition file.
	Catalogs map[string]string `yaml:"catalogs,omitempty"`

	Pages []Page `yaml:"pages"`

	// loaded catalogs, keyed by name
	catalogs map[string]*fuzzy.Catalog
}

// LoadDefinition reads a definition and the catalogs it references.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("questionnaire %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for name, rel := range def.Catalogs {
		catPath := rel
		if !filepath.IsAbs(catPath) {
			catPath = filepath.Join(base, rel)
		}
		cat, err := fuzzy.LoadCatalog(catPath)
		if err != nil {
			return nil, fmt.Errorf("questionnaire %s: catalog %q: %w", path, name, err)
		}
		def.SetCatalog(name, cat)
	}
	return def, nil
}

// ParseDefinition decodes and validates a definition. Catalogs are not
// loaded; attach them with SetCatalog.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse questionnaire: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// SetCatalog attaches a loaded catalog under name.
func (d *Definition) SetCatalog(name string, cat *fuzzy.Catalog) {
	if d.catalogs == nil {
		d.catalogs = make(map[string]*fuzzy.Catalog)
	}
	d.catalogs[name] = cat
}

// Catalog returns the catalog attached under name.
func (d *Definition) Catalog(name string) (*fuzzy.Catalog, bool) {
	cat, ok := d.catalogs[name]
	return cat, ok
}

func (d *Definition) validate() error {
	if len(d.Pages) == 0 {
		return fmt.Errorf("questionnaire has no pages")
	}

	groups := make(map[string]bool, len(d.Pages))
	fields := make(map[string]string)
	for i, p := range d.Pages {
		if p.Group == "" {
			return fmt.Errorf("page %d: missing group", i+1)
		}
		if groups[p.Group] {
			return fmt.Errorf("page %d: duplicate group %q", i+1, p.Group)
		}
		groups[p.Group] = true

		bools := make(map[string]bool)
		for j, f := range p.Fields {
			where := fmt.Sprintf("page %q field %d", p.Group, j+1)
			if f.Name == "" {
				return fmt.Errorf("%s: missing name", where)
			}
			if f.Name == store.KeyFormIdentifier || f.Name == store.KeySessionKey {
				return fmt.Errorf("%s: %q is reserved", where, f.Name)
			}
			names := []string{f.Name}
			if f.Kind == KindEntity {
				names = append(names, f.NameField)
			}
			for _, n := range names {
				if owner, dup := fields[n]; dup {
					return fmt.Errorf("%s: field %q already defined on page %q", where, n, owner)
				}
				fields[n] = p.Group
			}

			switch f.Kind {
			case KindText, KindInt:
			case KindBool:
				bools[f.Name] = true
			case KindChoice:
				if len(f.Options) == 0 {
					return fmt.Errorf("%s: choice field %q has no options", where, f.Name)
				}
			case KindEntity:
				if f.Catalog == "" || f.NameField == "" {
					return fmt.Errorf("%s: entity field %q needs catalog and name_field", where, f.Name)
				}
				if _, ok := d.Catalogs[f.Catalog]; !ok && d.Catalogs != nil {
					return fmt.Errorf("%s: unknown catalog %q", where, f.Catalog)
				}
			default:
				return fmt.Errorf("%s: unknown kind %q", where, f.Kind)
			}

			if f.When != "" && !bools[f.When] {
				return fmt.Errorf("%s: when %q must name an earlier bool field of the page", where, f.When)
			}
		}
	}
	return nil
}

// Groups returns the page groups in order.
func (d *Definition) Groups() []string {
	out := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		out = append(out, p.Group)
	}
	return out
}

// Page returns the page for group.
func (d *Definition) Page(group string) (Page, bool) {
	i := slices.IndexFunc(d.Pages, func(p Page) bool { return p.Group == group })
	if i < 0 {
		return Page{}, false
	}
	return d.Pages[i], true
}
