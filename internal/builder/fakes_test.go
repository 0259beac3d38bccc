package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// fakeExecutor returns canned rows per source query.
type fakeExecutor struct {
	results map[string][]engine.Record
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

// memTable is one materialized table held by the in-memory engine.
type memTable struct {
	columns []string
	keys    []string
	rows    []map[string]string
}

// memEngine is an in-memory warehouse engine. It evaluates the fixed query
// shapes the builders emit (COUNT, DISTINCT, MAX, single-row lookup, UPDATE)
// against its tables.
type memEngine struct {
	schemas map[string]bool
	tables  map[string]*memTable
	indexes []string
	closed  bool
}

func newMemEngine() *memEngine {
	return &memEngine{
		schemas: make(map[string]bool),
		tables:  make(map[string]*memTable),
	}
}

func (m *memEngine) table(schema, table string) *memTable {
	return m.tables[schema+"."+table]
}

func (m *memEngine) Close() error {
	m.closed = true
	return nil
}

func (m *memEngine) CreateSchema(ctx context.Context, name string) error {
	m.schemas[name] = true
	return nil
}

func (m *memEngine) CreateTable(ctx context.Context, schema, table string, columns []engine.ColumnInfo, primaryKeys []string) error {
	key := schema + "." + table
	if _, exists := m.tables[key]; exists {
		return nil
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	m.tables[key] = &memTable{columns: names, keys: primaryKeys}
	return nil
}

func (m *memEngine) InsertData(ctx context.Context, schema, table string, columns []string, rows [][]string) error {
	t := m.table(schema, table)
	if t == nil {
		return fmt.Errorf("table %s.%s does not exist", schema, table)
	}
	for _, row := range rows {
		entry := make(map[string]string, len(columns))
		for i, col := range columns {
			entry[col] = row[i]
		}
		t.rows = append(t.rows, entry)
	}
	return nil
}

func (m *memEngine) InsertIgnoreDuplicates(ctx context.Context, schema, table string, columns []string, keyColumns []string, rows [][]string) error {
	t := m.table(schema, table)
	if t == nil {
		return fmt.Errorf("table %s.%s does not exist", schema, table)
	}
	for _, row := range rows {
		entry := make(map[string]string, len(columns))
		for i, col := range columns {
			entry[col] = row[i]
		}
		if m.keyExists(t, keyColumns, entry) {
			continue
		}
		t.rows = append(t.rows, entry)
	}
	return nil
}

func (m *memEngine) keyExists(t *memTable, keyColumns []string, entry map[string]string) bool {
	if len(keyColumns) == 0 {
		return false
	}
	for _, existing := range t.rows {
		match := true
		for _, key := range keyColumns {
			if existing[key] != entry[key] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (m *memEngine) TruncateTable(ctx context.Context, schema, table string) error {
	if t := m.table(schema, table); t != nil {
		t.rows = nil
	}
	return nil
}

func (m *memEngine) CreateIndex(ctx context.Context, schema, table string, columns []string, indexName string) error {
	m.indexes = append(m.indexes, indexName)
	return nil
}

func (m *memEngine) ExecuteQuery(ctx context.Context, query string) ([]engine.Record, error) {
	switch {
	case strings.HasPrefix(query, "SELECT COUNT(*)"):
		return m.evalCount(query)
	case strings.HasPrefix(query, "SELECT DISTINCT"):
		return m.evalDistinct(query)
	case strings.HasPrefix(query, "SELECT MAX("):
		return m.evalMax(query)
	case strings.HasSuffix(query, "LIMIT 1"):
		return m.evalLookup(query)
	default:
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
}

func (m *memEngine) ExecuteStatement(ctx context.Context, statement string) error {
	if !strings.HasPrefix(statement, "UPDATE ") {
		return fmt.Errorf("unsupported statement: %s", statement)
	}

	rest := strings.TrimPrefix(statement, "UPDATE ")
	tableRef, rest, _ := strings.Cut(rest, " SET ")
	setClause, whereClause, _ := strings.Cut(rest, " WHERE ")

	t := m.tableByRef(tableRef)
	if t == nil {
		return fmt.Errorf("table %s does not exist", tableRef)
	}

	assignments := map[string]string{}
	for _, pair := range strings.Split(setClause, ", ") {
		col, value, _ := strings.Cut(pair, " = ")
		assignments[unquoteIdent(col)] = unquoteValue(value)
	}

	predicate := parsePredicate(whereClause)
	for _, row := range t.rows {
		if matches(row, predicate) {
			for col, value := range assignments {
				row[col] = value
			}
		}
	}
	return nil
}

func (m *memEngine) evalCount(query string) ([]engine.Record, error) {
	_, rest, _ := strings.Cut(query, " FROM ")
	tableRef, whereClause, _ := strings.Cut(rest, " WHERE ")

	t := m.tableByRef(tableRef)
	if t == nil {
		return []engine.Record{{"current_rows": engine.Int64(0)}}, nil
	}

	predicate := parsePredicate(whereClause)
	var count int64
	for _, row := range t.rows {
		if matches(row, predicate) {
			count++
		}
	}
	return []engine.Record{{"current_rows": engine.Int64(count)}}, nil
}

func (m *memEngine) evalDistinct(query string) ([]engine.Record, error) {
	rest := strings.TrimPrefix(query, "SELECT DISTINCT ")
	column, tableRef, _ := strings.Cut(rest, " FROM ")
	col := unquoteIdent(column)

	t := m.tableByRef(tableRef)
	if t == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var result []engine.Record
	for _, row := range t.rows {
		value := row[col]
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, engine.Record{col: engine.String(value)})
	}
	return result, nil
}

func (m *memEngine) evalMax(query string) ([]engine.Record, error) {
	rest := strings.TrimPrefix(query, "SELECT MAX(")
	column, rest, _ := strings.Cut(rest, ") AS max_load_date FROM ")
	tableRef, whereClause, _ := strings.Cut(rest, " WHERE ")
	col := unquoteIdent(column)

	t := m.tableByRef(tableRef)
	if t == nil {
		return []engine.Record{{"max_load_date": engine.Null()}}, nil
	}

	predicate := parsePredicate(whereClause)
	var max string
	for _, row := range t.rows {
		if matches(row, predicate) && row[col] > max {
			max = row[col]
		}
	}
	if max == "" {
		return []engine.Record{{"max_load_date": engine.Null()}}, nil
	}
	return []engine.Record{{"max_load_date": engine.String(max)}}, nil
}

func (m *memEngine) evalLookup(query string) ([]engine.Record, error) {
	rest := strings.TrimPrefix(query, "SELECT ")
	column, rest, _ := strings.Cut(rest, " FROM ")
	tableRef, whereClause, _ := strings.Cut(rest, " WHERE ")
	whereClause = strings.TrimSuffix(whereClause, " LIMIT 1")
	col := unquoteIdent(column)

	t := m.tableByRef(tableRef)
	if t == nil {
		return nil, nil
	}

	predicate := parsePredicate(whereClause)
	for _, row := range t.rows {
		if matches(row, predicate) {
			return []engine.Record{{col: engine.String(row[col])}}, nil
		}
	}
	return nil, nil
}

func (m *memEngine) tableByRef(ref string) *memTable {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	return m.tables[unquoteIdent(parts[0])+"."+unquoteIdent(parts[1])]
}

func (m *memEngine) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (m *memEngine) QuoteValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (m *memEngine) TestConnection(ctx context.Context) bool {
	return true
}

type condition struct {
	column string
	value  string
}

func parsePredicate(clause string) []condition {
	var conditions []condition
	for _, part := range strings.Split(clause, " AND ") {
		col, value, found := strings.Cut(part, " = ")
		if !found {
			continue
		}
		conditions = append(conditions, condition{column: unquoteIdent(col), value: unquoteValue(value)})
	}
	return conditions
}

func matches(row map[string]string, conditions []condition) bool {
	for _, cond := range conditions {
		if row[cond.column] != cond.value {
			return false
		}
	}
	return true
}

func unquoteIdent(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func unquoteValue(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
