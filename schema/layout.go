package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"boro-heap/file"
	"boro-heap/records"

	"github.com/xwb1989/sqlparser"
)

var (
	ErrNotCreateTable  = fmt.Errorf("statement is not CREATE TABLE")
	ErrUnsupportedType = fmt.Errorf("unsupported column type")
	ErrUnknownColumn   = fmt.Errorf("unknown column")
	ErrBadFilter       = fmt.Errorf("unsupported filter expression")
	ErrValueCount      = fmt.Errorf("value count does not match the layout")
	ErrBadValue        = fmt.Errorf("value does not fit its column")
)

// Field is one fixed width column of a record
type Field struct {
	Name   string
	Type   file.Datatype
	Offset int
	Length int
}

/*
Layout places the columns of a table back to back in a record.
- INT / INTEGER : 4 byte little endian two's complement
- FLOAT / REAL : 4 byte little endian IEEE 754
- CHAR(n) / VARCHAR(n) : n bytes, zero padded
*/
type Layout struct {
	Table  string
	Fields []Field
	Size   int
}

// ParseLayout reads the columns of a CREATE TABLE statement
func ParseLayout(sql string) (*Layout, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse SQL failed: %w", err)
	}

	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != sqlparser.CreateStr || ddl.TableSpec == nil {
		return nil, ErrNotCreateTable
	}

	// CREATE TABLE carries its table in NewName
	table := ddl.NewName
	if table.IsEmpty() {
		table = ddl.Table
	}

	layout := &Layout{Table: table.Name.String()}
	for _, col := range ddl.TableSpec.Columns {
		field, err := parseField(col)
		if err != nil {
			return nil, fmt.Errorf("parse column %s failed: %w", col.Name.String(), err)
		}
		field.Offset = layout.Size
		layout.Size += field.Length
		layout.Fields = append(layout.Fields, field)
	}
	return layout, nil
}

func ParseLayoutFile(filename string) (*Layout, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read SQL file failed: %w", err)
	}
	return ParseLayout(string(content))
}

func parseField(col *sqlparser.ColumnDefinition) (Field, error) {
	field := Field{Name: col.Name.String()}

	switch strings.ToUpper(col.Type.Type) {
	case "INT", "INTEGER":
		field.Type, field.Length = file.INTEGER, file.IntWidth
	case "FLOAT", "REAL":
		field.Type, field.Length = file.FLOAT, file.FloatWidth
	case "CHAR", "VARCHAR":
		field.Type, field.Length = file.STRING, 1
		if col.Type.Length != nil {
			length, err := strconv.Atoi(string(col.Type.Length.Val))
			if err != nil || length < 1 {
				return field, fmt.Errorf("%w: %s(%s)", ErrUnsupportedType, col.Type.Type, col.Type.Length.Val)
			}
			field.Length = length
		}
	default:
		return field, fmt.Errorf("%w: %s", ErrUnsupportedType, col.Type.Type)
	}
	return field, nil
}

func (l *Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Encode builds a record from one textual value per column
func (l *Layout) Encode(values []string) (records.Record, error) {
	if len(values) != len(l.Fields) {
		return nil, fmt.Errorf("%w: got %d want %d", ErrValueCount, len(values), len(l.Fields))
	}
	rec := make(records.Record, l.Size)
	for i, f := range l.Fields {
		if err := f.encode(strings.TrimSpace(values[i]), rec[f.Offset:f.Offset+f.Length]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (f Field) encode(value string, dst []byte) error {
	switch f.Type {
	case file.INTEGER:
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrBadValue, f.Name, value)
		}
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	case file.FLOAT:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrBadValue, f.Name, value)
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	default:
		if len(value) > f.Length {
			return fmt.Errorf("%w: %s=%q longer than %d", ErrBadValue, f.Name, value, f.Length)
		}
		clear(dst)
		copy(dst, value)
	}
	return nil
}

// Decode renders every column of rec as text
func (l *Layout) Decode(rec records.Record) ([]string, error) {
	if len(rec) < l.Size {
		return nil, fmt.Errorf("%w: record of %d bytes, layout needs %d", ErrBadValue, len(rec), l.Size)
	}
	values := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		raw := rec[f.Offset : f.Offset+f.Length]
		switch f.Type {
		case file.INTEGER:
			values[i] = strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(raw))), 10)
		case file.FLOAT:
			values[i] = strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), 'g', -1, 32)
		default:
			values[i] = string(bytes.TrimRight(raw, "\x00"))
		}
	}
	return values, nil
}
