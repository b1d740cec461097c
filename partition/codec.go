// Package partition implements the Partition Codec: translating between a
// partition's typed row representation and the ordered string map a
// Snapshot's manifest, and an external catalog, actually persist.
package partition

import (
	"fmt"
	"strconv"

	"github.com/lakestore/tablecore/core"
)

// FieldType names the scalar type of one partition-key column.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt64
	FieldFloat64
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt64:
		return "int64"
	case FieldFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Field names one partition-key column and its type.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered list of partition-key fields. Field order is
// significant: it is the order a Partition's Fields slice preserves.
type Schema []Field

// Names returns the schema's field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Codec encodes and decodes partition values against a fixed Schema.
type Codec struct {
	schema Schema
}

// NewCodec builds a Codec over the given ordered partition schema.
func NewCodec(schema Schema) *Codec {
	out := make(Schema, len(schema))
	copy(out, schema)
	return &Codec{schema: out}
}

// Encode formats a row's partition-key fields into an ordered string map
// per the schema. row must carry every schema field.
func (c *Codec) Encode(row core.Row) (core.Partition, error) {
	fields := make([]string, len(c.schema))
	values := make(map[string]string, len(c.schema))
	for i, f := range c.schema {
		fields[i] = f.Name
		v, ok := row[f.Name]
		if !ok {
			return core.Partition{}, fmt.Errorf("partition: row missing field %q", f.Name)
		}
		s, err := formatValue(v, f.Type)
		if err != nil {
			return core.Partition{}, fmt.Errorf("partition: encoding field %q: %w", f.Name, err)
		}
		values[f.Name] = s
	}
	return core.Partition{Fields: fields, Values: values}, nil
}

// Decode parses a Partition's string map back into a typed Row, per the
// schema's field types.
func (c *Codec) Decode(p core.Partition) (core.Row, error) {
	row := make(core.Row, len(c.schema))
	for _, f := range c.schema {
		raw, ok := p.Values[f.Name]
		if !ok {
			return nil, fmt.Errorf("partition: map missing field %q", f.Name)
		}
		v, err := parseValue(raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("partition: decoding field %q=%q: %w", f.Name, raw, err)
		}
		row[f.Name] = v
	}
	return row, nil
}

func formatValue(v any, t FieldType) (string, error) {
	switch t {
	case FieldString:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case FieldInt64:
		i, ok := v.(int64)
		if !ok {
			return "", fmt.Errorf("expected int64, got %T", v)
		}
		return strconv.FormatInt(i, 10), nil
	case FieldFloat64:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("expected float64, got %T", v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported field type %v", t)
	}
}

func parseValue(s string, t FieldType) (any, error) {
	switch t {
	case FieldString:
		return s, nil
	case FieldInt64:
		return strconv.ParseInt(s, 10, 64)
	case FieldFloat64:
		return strconv.ParseFloat(s, 64)
	default:
		return nil, fmt.Errorf("unsupported field type %v", t)
	}
}
