package space

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// emptyMarkdown is the markdown rendering of a query with no rows.
const emptyMarkdown = "EMPTY"

type column struct {
	Name string
	Type string
}

// table is a statement result as returned by the query-result endpoint.
type table struct {
	Columns []column
	Rows    [][]gjson.Result
}

func parseStatement(stmt gjson.Result) table {
	var t table
	stmt.Get("manifest.schema.columns").ForEach(func(_, col gjson.Result) bool {
		t.Columns = append(t.Columns, column{
			Name: col.Get("name").String(),
			Type: strings.ToUpper(col.Get("type_name").String()),
		})
		return true
	})
	stmt.Get("result.data_array").ForEach(func(_, row gjson.Result) bool {
		t.Rows = append(t.Rows, row.Array())
		return true
	})
	return t
}

func (t table) truncate(maxRows int) table {
	if maxRows > 0 && len(t.Rows) > maxRows {
		t.Rows = t.Rows[:maxRows]
	}
	return t
}

// JSON renders rows as an array of objects keyed by column name, in column
// order, with values typed from the column type.
func (t table) JSON() (string, error) {
	objs := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := "{}"
		for i, col := range t.Columns {
			var cell gjson.Result
			if i < len(row) {
				cell = row[i]
			}
			var err error
			obj, err = sjson.Set(obj, escapePath(col.Name), typedValue(col.Type, cell))
			if err != nil {
				return "", err
			}
		}
		objs = append(objs, obj)
	}
	return "[" + strings.Join(objs, ",") + "]", nil
}

// Markdown renders rows as a markdown table.
func (t table) Markdown() string {
	if len(t.Rows) == 0 {
		return emptyMarkdown
	}
	var sb strings.Builder
	sb.WriteString("|")
	for _, col := range t.Columns {
		sb.WriteString(" " + col.Name + " |")
	}
	sb.WriteString("\n|")
	for range t.Columns {
		sb.WriteString(" --- |")
	}
	for _, row := range t.Rows {
		sb.WriteString("\n|")
		for i := range t.Columns {
			cell := ""
			if i < len(row) && row[i].Type != gjson.Null {
				cell = strings.ReplaceAll(row[i].String(), "|", "\\|")
			}
			sb.WriteString(" " + cell + " |")
		}
	}
	return sb.String()
}

func typedValue(typeName string, cell gjson.Result) any {
	if !cell.Exists() || cell.Type == gjson.Null {
		return nil
	}
	s := cell.String()
	switch typeName {
	case "INT", "LONG", "SHORT", "BYTE", "BIGINT", "SMALLINT", "TINYINT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE", "DECIMAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

func escapePath(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
