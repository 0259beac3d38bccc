// Package bigquery implements the warehouse engine for Google BigQuery.
// Schemas map to datasets; inserts use the streaming API, so duplicate
// detection is best effort only.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Engine is the BigQuery warehouse engine.
type Engine struct {
	client   *bigquery.Client
	project  string
	location string
}

// NewEngine creates a BigQuery client. The connection string is a semicolon
// separated list of key=value pairs: project_id (required), credentials_file,
// location.
func NewEngine(ctx context.Context, connString string) (*Engine, error) {
	params := parseConnString(connString)

	project := params["project_id"]
	if project == "" {
		return nil, engine.NewConnectionError(engine.TargetBigQuery, errors.New("connection string is missing project_id"))
	}

	var opts []option.ClientOption
	if credFile := params["credentials_file"]; credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, engine.NewConnectionError(engine.TargetBigQuery, err)
	}

	return &Engine{client: client, project: project, location: params["location"]}, nil
}

func parseConnString(connString string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(connString, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found {
			params[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return params
}

// Close releases the client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// CreateSchema creates the dataset if absent.
func (e *Engine) CreateSchema(ctx context.Context, name string) error {
	meta := &bigquery.DatasetMetadata{Location: e.location}
	err := e.client.Dataset(name).Create(ctx, meta)
	if err != nil && !isAlreadyExists(err) {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "create dataset", name, err)
	}
	return nil
}

// CreateTable creates the table if absent. Primary keys are not enforced by
// BigQuery and are ignored.
func (e *Engine) CreateTable(ctx context.Context, schema, table string, columns []engine.ColumnInfo, primaryKeys []string) error {
	fields := make(bigquery.Schema, 0, len(columns))
	for _, col := range columns {
		fields = append(fields, &bigquery.FieldSchema{
			Name:     col.Name,
			Type:     mapFieldType(col.DataType),
			Required: !col.IsNullable,
		})
	}

	err := e.client.Dataset(schema).Table(table).Create(ctx, &bigquery.TableMetadata{Schema: fields})
	if err != nil && !isAlreadyExists(err) {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "create table", table, err)
	}
	return nil
}

func mapFieldType(dataType string) bigquery.FieldType {
	upper := strings.ToUpper(dataType)
	switch {
	case strings.HasPrefix(upper, "TIMESTAMP"):
		return bigquery.TimestampFieldType
	case upper == "BOOLEAN" || upper == "BOOL":
		return bigquery.BooleanFieldType
	default:
		return bigquery.StringFieldType
	}
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 409
}

// row is one streaming insert payload.
type row struct {
	columns []string
	values  []string
}

// Save implements bigquery.ValueSaver. Empty string values become NULL.
func (r row) Save() (map[string]bigquery.Value, string, error) {
	saved := make(map[string]bigquery.Value, len(r.columns))
	for i, col := range r.columns {
		if r.values[i] == "" {
			saved[col] = nil
		} else {
			saved[col] = r.values[i]
		}
	}
	return saved, "", nil
}

// InsertData streams rows into the table in batches.
func (e *Engine) InsertData(ctx context.Context, schema, table string, columns []string, rows [][]string) error {
	inserter := e.client.Dataset(schema).Table(table).Inserter()

	for start := 0; start < len(rows); start += engine.InsertBatchSize {
		end := start + engine.InsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([]row, 0, end-start)
		for _, values := range rows[start:end] {
			batch = append(batch, row{columns: columns, values: values})
		}

		if err := inserter.Put(ctx, batch); err != nil {
			return engine.NewTargetWriteError(engine.TargetBigQuery, "insert", table, err)
		}
	}
	return nil
}

// InsertIgnoreDuplicates appends rows. Streaming inserts cannot detect
// duplicates, so this behaves like InsertData (best effort).
func (e *Engine) InsertIgnoreDuplicates(ctx context.Context, schema, table string, columns []string, keyColumns []string, rows [][]string) error {
	return e.InsertData(ctx, schema, table, columns, rows)
}

// TruncateTable removes all rows from the table.
func (e *Engine) TruncateTable(ctx context.Context, schema, table string) error {
	statement := fmt.Sprintf("TRUNCATE TABLE %s", e.tableRef(schema, table))
	if err := e.ExecuteStatement(ctx, statement); err != nil {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "truncate", table, err)
	}
	return nil
}

// CreateIndex is a no-op: BigQuery has no secondary indexes.
func (e *Engine) CreateIndex(ctx context.Context, schema, table string, columns []string, indexName string) error {
	return nil
}

// ExecuteQuery runs a query and returns the full result set.
func (e *Engine) ExecuteQuery(ctx context.Context, query string) ([]engine.Record, error) {
	q := e.client.Query(query)
	if e.location != "" {
		q.Location = e.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, engine.NewQueryError(engine.TargetBigQuery, query, err)
	}

	var result []engine.Record
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, engine.NewQueryError(engine.TargetBigQuery, query, err)
		}

		record := make(engine.Record, len(it.Schema))
		for i, field := range it.Schema {
			if i < len(values) {
				record[field.Name] = engine.FromNative(values[i])
			}
		}
		result = append(result, record)
	}

	return result, nil
}

// ExecuteStatement runs a statement and waits for the job to finish.
func (e *Engine) ExecuteStatement(ctx context.Context, statement string) error {
	q := e.client.Query(statement)
	if e.location != "" {
		q.Location = e.location
	}

	job, err := q.Run(ctx)
	if err != nil {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "execute", "", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "execute", "", err)
	}
	if err := status.Err(); err != nil {
		return engine.NewTargetWriteError(engine.TargetBigQuery, "execute", "", err)
	}
	return nil
}

func (e *Engine) tableRef(schema, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", e.project, schema, table)
}

// QuoteIdentifier quotes an identifier with backticks.
func (e *Engine) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// QuoteValue quotes a string literal, escaping quotes and backslashes.
func (e *Engine) QuoteValue(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// TestConnection reports whether the project is reachable.
func (e *Engine) TestConnection(ctx context.Context) bool {
	_, err := e.ExecuteQuery(ctx, "SELECT 1")
	return err == nil
}
