package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"docuquery/pkg/domain"
	"docuquery/services/docuquery/internal/server"
)

const defaultDocPath = "services/docuquery/api/openapi.yaml"

type openAPIDoc struct {
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// models maps schema names to the Go types the server encodes.
var models = map[string]reflect.Type{
	"Identity":  reflect.TypeFor[domain.Identity](),
	"User":      reflect.TypeFor[domain.User](),
	"Document":  reflect.TypeFor[domain.Document](),
	"Ingestion": reflect.TypeFor[domain.Ingestion](),
	"Answer":    reflect.TypeFor[domain.Answer](),
	"Source":    reflect.TypeFor[domain.Source](),
	"Message":   reflect.TypeFor[domain.Message](),
	"Summary":   reflect.TypeFor[domain.Summary](),
}

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [openapi.yaml]\n", os.Args[0])
		os.Exit(2)
	}
	path := defaultDocPath
	if len(os.Args) == 2 {
		path = os.Args[1]
	}

	doc, err := loadDoc(path)
	if err != nil {
		exitErr(err)
	}
	if err := check(doc, server.APIPaths()); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

// check compares the document with the served routes and the encoded models.
func check(doc openAPIDoc, served []string) error {
	var errs []error
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		errs = append(errs, err)
	} else if err := validateErrorResponse(errResp); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, checkPaths(doc, served)...)

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := ensureSameFields(name, s, models[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

// validateErrorResponse matches the {"error": "..."} body every handler writes.
func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !makeSet(s.Required)["error"] {
		return errors.New(`ErrorResponse.required must include "error"`)
	}
	errorProp, ok := s.Properties["error"]
	if !ok || errorProp.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	return nil
}

func checkPaths(doc openAPIDoc, served []string) []error {
	var errs []error
	servedSet := makeSet(served)
	for _, p := range served {
		if _, ok := doc.Paths[p]; !ok {
			errs = append(errs, fmt.Errorf("path %s is served but not documented", p))
		}
	}
	documented := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		documented = append(documented, p)
	}
	sort.Strings(documented)
	for _, p := range documented {
		if !servedSet[p] {
			errs = append(errs, fmt.Errorf("path %s is documented but not served", p))
		}
	}
	return errs
}

func ensureSameFields(name string, s schema, typ reflect.Type) error {
	want := jsonFields(typ)
	got := make([]string, 0, len(s.Properties))
	for prop := range s.Properties {
		got = append(got, prop)
	}
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("%s properties mismatch: schema %v vs model %v", name, got, want)
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return fmt.Errorf("%s requires unknown property %q", name, req)
		}
	}
	return nil
}

// jsonFields returns the sorted JSON names of the exported fields of typ.
func jsonFields(typ reflect.Type) []string {
	out := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch tag {
		case "-":
			continue
		case "":
			tag = f.Name
		}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
