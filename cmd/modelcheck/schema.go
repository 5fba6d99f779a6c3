package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"modelcore/pkg/model"
)

// schemaFile is the YAML shape of a schema declaration. Each type lists
// its document tag, optional inheritance parent and a field table keyed by
// field name.
type schemaFile struct {
	Types []typeDecl `yaml:"types"`
}

type typeDecl struct {
	Name          string               `yaml:"name"`
	Tag           string               `yaml:"tag"`
	Discriminator string               `yaml:"discriminator"`
	Abstract      bool                 `yaml:"abstract"`
	Parent        string               `yaml:"parent"`
	Required      []string             `yaml:"required"`
	Fields        map[string]fieldDecl `yaml:"fields"`
	FieldOrder    []string             `yaml:"fieldOrder"`
}

type fieldDecl struct {
	Kind string `yaml:"kind"`

	// containment
	RoleTag string   `yaml:"roleTag"`
	Rooted  []string `yaml:"rooted"`

	// association, allocation, backref, alternate
	Class string `yaml:"class"`
	Attr  string `yaml:"attr"`

	// allocation
	Tag       string `yaml:"tag"`
	AllocType string `yaml:"allocType"`
	BackAttr  string `yaml:"backAttr"`
	Unique    bool   `yaml:"unique"`

	// backref
	Attrs []string `yaml:"attrs"`

	// index
	Wrapped  string `yaml:"wrapped"`
	Position int    `yaml:"position"`

	// shared list options
	MapKey      string `yaml:"mapKey"`
	FixedLength int    `yaml:"fixedLength"`
}

// loadSchema reads a YAML schema declaration and registers every declared
// type. Field declarations map one-to-one onto the framework's
// relationship kinds.
func loadSchema(path string) (*model.Schema, error) {
	raw, err := os.ReadFile(path) // #nosec G304: operator-supplied schema path
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("schema %s declares no types", path)
	}
	schema := model.NewSchema()
	for _, decl := range file.Types {
		typ := model.NewType(decl.Name, decl.Tag)
		if decl.Discriminator != "" {
			typ.Discriminator = decl.Discriminator
		}
		typ.Abstract = decl.Abstract
		typ.Parent = decl.Parent
		typ.Required = decl.Required
		for _, field := range fieldNames(decl) {
			rel, err := buildRelationship(decl.Fields[field])
			if err != nil {
				return nil, fmt.Errorf("type %s, field %s: %w", decl.Name, field, err)
			}
			typ.Define(field, rel)
		}
		if err := schema.Register(typ); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// fieldNames returns the declaration order when given, falling back to a
// sorted-by-YAML-map order otherwise. YAML maps carry no order, so schemas
// that care list fieldOrder explicitly.
func fieldNames(decl typeDecl) []string {
	if len(decl.FieldOrder) > 0 {
		return decl.FieldOrder
	}
	out := make([]string, 0, len(decl.Fields))
	for name := range decl.Fields {
		out = append(out, name)
	}
	return out
}

func buildRelationship(f fieldDecl) (model.Relationship, error) {
	opts := model.Options{MapKey: f.MapKey, FixedLength: f.FixedLength}
	switch f.Kind {
	case "containment":
		if f.RoleTag == "" {
			return nil, fmt.Errorf("containment needs a roleTag")
		}
		return &model.Containment{Options: opts, RoleTag: f.RoleTag, Class: f.Class, Rooted: f.Rooted}, nil
	case "association":
		if f.Attr == "" {
			return nil, fmt.Errorf("association needs an attr")
		}
		return &model.Association{Options: opts, Attr: f.Attr, Class: f.Class}, nil
	case "allocation":
		if f.Tag == "" || f.AllocType == "" || f.Attr == "" {
			return nil, fmt.Errorf("allocation needs tag, allocType and attr")
		}
		return &model.Allocation{
			Options:   opts,
			Tag:       f.Tag,
			AllocType: f.AllocType,
			Class:     f.Class,
			Attr:      f.Attr,
			BackAttr:  f.BackAttr,
			Unique:    f.Unique,
		}, nil
	case "backref":
		if len(f.Attrs) == 0 {
			return nil, fmt.Errorf("backref needs attrs")
		}
		return &model.Backref{Options: opts, Class: f.Class, Attrs: f.Attrs}, nil
	case "parent":
		return &model.Parent{Options: opts}, nil
	case "index":
		if f.Wrapped == "" {
			return nil, fmt.Errorf("index needs a wrapped field")
		}
		return &model.Index{Options: opts, Wrapped: f.Wrapped, Position: f.Position}, nil
	case "typecast":
		if f.Wrapped == "" || f.Class == "" {
			return nil, fmt.Errorf("typecast needs a wrapped field and a class")
		}
		return &model.Typecast{Options: opts, Wrapped: f.Wrapped, Class: f.Class}, nil
	case "alias":
		if f.Attr == "" {
			return nil, fmt.Errorf("alias needs an attr naming the target field")
		}
		return &model.Alias{Options: opts, Target: f.Attr}, nil
	case "alternate":
		if f.Class == "" {
			return nil, fmt.Errorf("alternate needs a class")
		}
		return &model.Alternate{Options: opts, Class: f.Class}, nil
	case "":
		return nil, fmt.Errorf("missing kind")
	default:
		return nil, fmt.Errorf("unknown kind %q", f.Kind)
	}
}
