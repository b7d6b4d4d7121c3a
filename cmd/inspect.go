package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat     string
	inspectSampleRows int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the chat history database",
	Long: `Inspect the chat history database and the stored session blob.

This command provides detailed information about:
  • Database schema (tables, columns, types)
  • The history blob (size, session count, decode errors)
  • Other keys present in the key/value table

Examples:
  ptsp-chat inspect                              # Inspect the configured database
  ptsp-chat inspect /path/to/history.db          # Inspect a specific database
  ptsp-chat inspect --format json                # Machine readable report`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dbPath string
		if len(args) > 0 {
			dbPath = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath = cfg.DatabasePath
		}

		db, err := internal.OpenDatabase(dbPath)
		if err != nil {
			return &internal.StorageError{Op: "open", Key: dbPath, Err: err}
		}
		defer func() { _ = db.Close() }()

		report, err := buildInspectReport(db, dbPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch inspectFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "text":
			printInspectReport(out, db, report)
			return nil
		default:
			return &internal.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q (use text or json)", inspectFormat)}
		}
	},
}

// InspectReport summarizes a history database
type InspectReport struct {
	Database     string        `json:"database"`
	Tables       []TableReport `json:"tables"`
	HistoryKey   string        `json:"history_key"`
	HistoryBytes int           `json:"history_bytes"`
	SessionCount int           `json:"session_count"`
	DecodeError  string        `json:"decode_error,omitempty"`
	OtherKeys    []string      `json:"other_keys"`
}

// TableReport describes one table
type TableReport struct {
	Name    string       `json:"name"`
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

func buildInspectReport(db *sql.DB, dbPath string) (*InspectReport, error) {
	report := &InspectReport{Database: dbPath, HistoryKey: internal.HistoryKey, OtherKeys: []string{}}

	tables, err := getTables(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	for _, name := range tables {
		table := TableReport{Name: name}
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&table.Rows); err != nil {
			return nil, fmt.Errorf("failed to get row count: %w", err)
		}
		if table.Columns, err = getTableSchema(db, name); err != nil {
			return nil, fmt.Errorf("failed to get schema: %w", err)
		}
		report.Tables = append(report.Tables, table)
	}

	pairs, err := internal.QueryKV(db, "%")
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		if pair.Key != internal.HistoryKey {
			report.OtherKeys = append(report.OtherKeys, pair.Key)
			continue
		}
		report.HistoryBytes = len(pair.Value)
		var sessions []*internal.Session
		if err := json.Unmarshal([]byte(pair.Value), &sessions); err != nil {
			report.DecodeError = err.Error()
			continue
		}
		report.SessionCount = len(sessions)
	}
	return report, nil
}

func printInspectReport(out io.Writer, db *sql.DB, report *InspectReport) {
	_, _ = fmt.Fprintf(out, "📋 Database: %s\n", report.Database)
	_, _ = fmt.Fprintf(out, "📊 Found %d table(s)\n\n", len(report.Tables))

	for _, table := range report.Tables {
		_, _ = fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		_, _ = fmt.Fprintf(out, "📦 Table: %s\n", table.Name)
		_, _ = fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		_, _ = fmt.Fprintf(out, "📊 Rows: %d\n\n", table.Rows)

		_, _ = fmt.Fprintf(out, "📐 Schema:\n")
		for _, col := range table.Columns {
			pk := ""
			if col.PrimaryKey {
				pk = " [PRIMARY KEY]"
			}
			notNull := ""
			if col.NotNull {
				notNull = " NOT NULL"
			}
			_, _ = fmt.Fprintf(out, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
		}
		_, _ = fmt.Fprintln(out)

		if table.Rows > 0 && inspectSampleRows > 0 {
			if err := showSampleData(out, db, table.Name, table.Columns, inspectSampleRows); err != nil {
				_, _ = fmt.Fprintf(out, "⚠️  Error showing sample data: %v\n", err)
			}
			_, _ = fmt.Fprintln(out)
		}
	}

	_, _ = fmt.Fprintln(out, sectionStyle.Render("💬 History"))
	_, _ = fmt.Fprintf(out, "  Key: %s\n", report.HistoryKey)
	_, _ = fmt.Fprintf(out, "  Size: %d bytes\n", report.HistoryBytes)
	if report.DecodeError != "" {
		_, _ = fmt.Fprintln(out, errorStyle.Render("  ❌ Blob does not decode: ")+report.DecodeError)
	} else {
		_, _ = fmt.Fprintf(out, "  Sessions: %d\n", report.SessionCount)
	}
	if len(report.OtherKeys) > 0 {
		_, _ = fmt.Fprintf(out, "  Other keys: %s\n", strings.Join(report.OtherKeys, ", "))
	}
}

func getTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func getTableSchema(db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk == 1
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func showSampleData(out io.Writer, db *sql.DB, tableName string, columns []ColumnInfo, limit int) error {
	if len(columns) == 0 {
		return nil
	}

	colNames := make([]string, len(columns))
	for i, col := range columns {
		colNames[i] = fmt.Sprintf("%q", col.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %q LIMIT %d", strings.Join(colNames, ", "), tableName, limit)
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	_, _ = fmt.Fprintf(out, "📄 Sample Data (first %d rows):\n", limit)
	rowNum := 0
	for rows.Next() {
		rowNum++
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			_, _ = fmt.Fprintf(out, "  ⚠️  Row %d: error scanning: %v\n", rowNum, err)
			continue
		}

		_, _ = fmt.Fprintf(out, "\n  Row %d:\n", rowNum)
		for i, col := range columns {
			valStr := "<NULL>"
			if values[i] != nil {
				valStr = fmt.Sprintf("%v", values[i])
				// Truncate long values
				if len(valStr) > 200 {
					valStr = valStr[:200] + "..."
				}
				if strings.Contains(valStr, "\n") {
					valStr = strings.Split(valStr, "\n")[0] + "..."
				}
			}
			_, _ = fmt.Fprintf(out, "    %s: %s\n", col.Name, valStr)
		}
	}

	return rows.Err()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().IntVar(&inspectSampleRows, "sample", 3, "Number of sample rows to show")
}
