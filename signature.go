package genie

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

//go:embed signatures/genie_agent.yaml
var genieAgentSignatureYAML []byte

// ReasoningField is the output field prepended by chain of thought.
const ReasoningField = "reasoning"

var fieldTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// Field is one named input or output of a Signature.
type Field struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Desc     string `yaml:"desc"`
	Optional bool   `yaml:"optional"`
}

// Signature declares the typed inputs and outputs of a reasoning step. The
// field descriptions are hints rendered into the prompt.
type Signature struct {
	Name         string  `yaml:"name"`
	Instructions string  `yaml:"instructions"`
	Inputs       []Field `yaml:"inputs"`
	Outputs      []Field `yaml:"outputs"`

	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// ParseSignature decodes and validates a YAML signature.
func ParseSignature(data []byte) (*Signature, error) {
	var s Signature
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("genie: decode signature: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// GenieAgentSignature returns the signature used by Agent: the question and
// the normalized Genie response in, the answer out.
func GenieAgentSignature() *Signature {
	s, err := ParseSignature(genieAgentSignatureYAML)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Signature) validate() error {
	if s.Name == "" {
		return errors.New("genie: signature name is required")
	}
	if len(s.Outputs) == 0 {
		return fmt.Errorf("genie: signature %s has no outputs", s.Name)
	}
	seen := map[string]bool{}
	for _, f := range append(append([]Field{}, s.Inputs...), s.Outputs...) {
		if f.Name == "" {
			return fmt.Errorf("genie: signature %s has an unnamed field", s.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("genie: signature %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type != "" && !fieldTypes[f.Type] {
			return fmt.Errorf("genie: signature %s: field %q has unknown type %q", s.Name, f.Name, f.Type)
		}
	}
	return nil
}

// WithReasoning returns a copy whose outputs start with a reasoning field.
func (s *Signature) WithReasoning() *Signature {
	for _, f := range s.Outputs {
		if f.Name == ReasoningField {
			return s
		}
	}
	outputs := make([]Field, 0, len(s.Outputs)+1)
	outputs = append(outputs, Field{
		Name: ReasoningField,
		Type: "string",
		Desc: "Think step by step about how to produce the other outputs.",
	})
	outputs = append(outputs, s.Outputs...)
	return &Signature{
		Name:         s.Name,
		Instructions: s.Instructions,
		Inputs:       s.Inputs,
		Outputs:      outputs,
	}
}

// SystemPrompt renders the field list and the response contract.
func (s *Signature) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("Your input fields are:\n")
	writeFields(&sb, s.Inputs)
	sb.WriteString("Your output fields are:\n")
	writeFields(&sb, s.Outputs)

	keys := make([]string, len(s.Outputs))
	for i, f := range s.Outputs {
		keys[i] = fmt.Sprintf("%q", f.Name)
	}
	sb.WriteString("\nEach input is given under a [[ ## name ## ]] header. ")
	sb.WriteString("Respond with a single JSON object with the keys ")
	sb.WriteString(strings.Join(keys, ", "))
	sb.WriteString(" and nothing else.\n\n")

	sb.WriteString("In adhering to this structure, your objective is: ")
	if s.Instructions != "" {
		sb.WriteString(s.Instructions)
	} else {
		sb.WriteString(fmt.Sprintf("Given the fields %s, produce the fields %s.", fieldNames(s.Inputs), fieldNames(s.Outputs)))
	}
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []Field) {
	for i, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "string"
		}
		if f.Optional {
			typ += ", optional"
		}
		fmt.Fprintf(sb, "%d. `%s` (%s)", i+1, f.Name, typ)
		if f.Desc != "" {
			sb.WriteString(": " + f.Desc)
		}
		sb.WriteString("\n")
	}
}

func fieldNames(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = "`" + f.Name + "`"
	}
	return strings.Join(names, ", ")
}

// RenderInputs formats the input values as the user turn of the step.
// Absent optional values render as null.
func (s *Signature) RenderInputs(inputs map[string]any) (string, error) {
	var sb strings.Builder
	for i, f := range s.Inputs {
		v, ok := inputs[f.Name]
		if !ok && !f.Optional {
			return "", fmt.Errorf("genie: signature %s: missing input %q", s.Name, f.Name)
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[[ ## %s ## ]]\n", f.Name)
		text, err := renderValue(v, f.Optional)
		if err != nil {
			return "", fmt.Errorf("genie: signature %s: input %q: %w", s.Name, f.Name, err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func renderValue(v any, optional bool) (string, error) {
	if isNil(v) || (optional && v == "") {
		return "null", nil
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// OutputSchema is the JSON Schema a model response must satisfy.
func (s *Signature) OutputSchema() map[string]any {
	props := map[string]any{}
	required := []any{}
	for _, f := range s.Outputs {
		typ := f.Type
		if typ == "" {
			typ = "string"
		}
		prop := map[string]any{"type": typ}
		if f.Desc != "" {
			prop["description"] = f.Desc
		}
		props[f.Name] = prop
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (s *Signature) compiled() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		b, err := json.Marshal(s.OutputSchema())
		if err != nil {
			s.err = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
		if err != nil {
			s.err = err
			return
		}
		url := s.Name + ".output.json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			s.err = err
			return
		}
		s.schema, s.err = c.Compile(url)
	})
	return s.schema, s.err
}

// ParseOutputs extracts the output fields from a model response. The response
// must contain one JSON object, optionally wrapped in a code fence or prose.
func (s *Signature) ParseOutputs(text string) (map[string]any, error) {
	obj, ok := extractObject(text)
	if !ok {
		return nil, errors.New("no JSON object in response")
	}
	schema, err := s.compiled()
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(obj))
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(inst); err != nil {
		return nil, err
	}
	res := gjson.Parse(obj)
	outputs := make(map[string]any, len(s.Outputs))
	for _, f := range s.Outputs {
		v := res.Get(gjsonEscape(f.Name))
		if !v.Exists() {
			continue
		}
		outputs[f.Name] = v.Value()
	}
	return outputs, nil
}

func extractObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if gjson.Valid(text) && gjson.Parse(text).IsObject() {
		return text, true
	}
	start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	text = text[start : end+1]
	if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
		return "", false
	}
	return text, true
}

func gjsonEscape(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
