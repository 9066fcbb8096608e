package schema

import (
	"fmt"
	"strings"

	"boro-heap/file"

	"github.com/xwb1989/sqlparser"
)

// Filter holds the StartScan arguments for a single column comparison
type Filter struct {
	Offset int
	Length int
	Type   file.Datatype
	Value  []byte
	Op     file.Operator
}

func (f *Filter) String() string {
	return fmt.Sprintf("[%d:%d] %s %s %x", f.Offset, f.Offset+f.Length, f.Type, f.Op, f.Value)
}

// Apply installs the filter on a scan, a nil filter scans everything
func (f *Filter) Apply(hs *file.HeapFileScan) error {
	if f == nil {
		return hs.StartScan(0, 0, file.STRING, nil, file.EQ)
	}
	return hs.StartScan(f.Offset, f.Length, f.Type, f.Value, f.Op)
}

var operators = map[string]file.Operator{
	sqlparser.LessThanStr:     file.LT,
	sqlparser.LessEqualStr:    file.LTE,
	sqlparser.EqualStr:        file.EQ,
	sqlparser.GreaterEqualStr: file.GTE,
	sqlparser.GreaterThanStr:  file.GT,
	sqlparser.NotEqualStr:     file.NE,
}

// operator seen from the other side, used when the literal comes first
var mirrored = map[file.Operator]file.Operator{
	file.LT:  file.GT,
	file.LTE: file.GTE,
	file.EQ:  file.EQ,
	file.GTE: file.LTE,
	file.GT:  file.LT,
	file.NE:  file.NE,
}

/*
ParseFilter turns a WHERE expression such as `age >= 21` or `'bob' = name`
into a filter over this layout. Only one comparison between a column and a literal is supported.
*/
func (l *Layout) ParseFilter(where string) (*Filter, error) {
	where = strings.TrimSpace(where)
	if where == "" {
		return nil, nil
	}

	stmt, err := sqlparser.Parse("select 1 from t where " + where)
	if err != nil {
		return nil, fmt.Errorf("parse filter failed: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok || sel.Where == nil {
		return nil, ErrBadFilter
	}
	cmp, ok := sel.Where.Expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadFilter, where)
	}
	op, ok := operators[cmp.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s", ErrBadFilter, cmp.Operator)
	}

	col, colOk := cmp.Left.(*sqlparser.ColName)
	literal := cmp.Right
	if !colOk {
		col, colOk = cmp.Right.(*sqlparser.ColName)
		literal = cmp.Left
		op = mirrored[op]
	}
	if !colOk {
		return nil, fmt.Errorf("%w: no column in %s", ErrBadFilter, where)
	}

	field, ok := l.Field(col.Name.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col.Name.String())
	}

	text, err := literalText(literal)
	if err != nil {
		return nil, err
	}
	value := make([]byte, field.Length)
	if err := field.encode(text, value); err != nil {
		return nil, err
	}

	return &Filter{
		Offset: field.Offset,
		Length: field.Length,
		Type:   field.Type,
		Value:  value,
		Op:     op,
	}, nil
}

func literalText(expr sqlparser.Expr) (string, error) {
	switch v := expr.(type) {
	case *sqlparser.SQLVal:
		switch v.Type {
		case sqlparser.StrVal, sqlparser.IntVal, sqlparser.FloatVal:
			return string(v.Val), nil
		}
	case *sqlparser.UnaryExpr:
		if v.Operator == sqlparser.UMinusStr {
			text, err := literalText(v.Expr)
			if err != nil {
				return "", err
			}
			if strings.HasPrefix(text, "-") {
				return text[1:], nil
			}
			return "-" + text, nil
		}
	case *sqlparser.ParenExpr:
		return literalText(v.Expr)
	}
	return "", fmt.Errorf("%w: %s is not a literal", ErrBadFilter, sqlparser.String(expr))
}
