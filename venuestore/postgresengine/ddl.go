package postgresengine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

var columnTypes = map[venuestore.ColumnType]string{
	venuestore.TypeID:        "varchar(%d)",
	venuestore.TypeString:    "text",
	venuestore.TypeInt64:     "bigint",
	venuestore.TypeFloat64:   "double precision",
	venuestore.TypeBool:      "boolean",
	venuestore.TypeNumeric:   "numeric",
	venuestore.TypeDate:      "date",
	venuestore.TypeTimestamp: "timestamptz",
	venuestore.TypeBytes:     "bytea",
	venuestore.TypeJSON:      "jsonb",
}

// SchemaDDL renders the CREATE TABLE and CREATE INDEX statements for venuestore.Schema,
// in dependency order. Foreign keys carry no ON DELETE action.
func SchemaDDL() []string {
	var statements []string

	for _, t := range venuestore.Schema() {
		statements = append(statements, createTableStatement(t))

		for _, idx := range t.Indexes {
			statements = append(statements, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				idx.Name, t.Name, strings.Join(idx.Columns, ", "),
			))
		}
	}

	return statements
}

// DropSchemaDDL renders DROP TABLE statements in reverse dependency order.
func DropSchemaDDL() []string {
	tables := venuestore.Schema()
	slices.Reverse(tables)

	statements := make([]string, 0, len(tables))
	for _, t := range tables {
		statements = append(statements, "DROP TABLE IF EXISTS "+t.Name)
	}

	return statements
}

func createTableStatement(t venuestore.TableSchema) string {
	lines := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+len(t.Checks)+1)

	for _, col := range t.Columns {
		lines = append(lines, columnDefinition(col))
	}

	lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))

	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf(
			"CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			fk.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn,
		))
	}

	for _, check := range t.Checks {
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", check.Name, check.Expression))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(lines, ",\n\t"))
}

func columnDefinition(col venuestore.Column) string {
	sqlType := columnTypes[col.Type]

	switch {
	case col.Type == venuestore.TypeID:
		sqlType = fmt.Sprintf(sqlType, col.MaxLength)
	case col.Type == venuestore.TypeString && col.MaxLength > 0:
		sqlType = fmt.Sprintf("varchar(%d)", col.MaxLength)
	}

	def := col.Name + " " + sqlType
	if !col.Nullable {
		def += " NOT NULL"
	}

	return def
}

// ProvisionSchema creates all tables and indexes on the strong connection if they do not exist yet.
func (e *Engine) ProvisionSchema(ctx context.Context) error {
	return e.execDDL(ctx, SchemaDDL())
}

// DropSchema drops all tables. Meant for tests and local development.
func (e *Engine) DropSchema(ctx context.Context) error {
	return e.execDDL(ctx, DropSchemaDDL())
}

func (e *Engine) execDDL(ctx context.Context, statements []string) error {
	for _, statement := range statements {
		if _, err := e.exec(ctx, statement, nil, logActionDDL); err != nil {
			return err
		}
	}

	return nil
}
