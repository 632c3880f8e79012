package sqlitestream

import (
	"regexp"
	"strings"
	"sync"

	"github.com/xwb1989/sqlparser"
)

// ColumnDef describes one column of a table schema, per spec.md §6's
// six fields.
type ColumnDef struct {
	CID        int
	Name       string
	Type       string
	NotNull    bool
	DfltValue  *string
	PrimaryKey int // 0 if not part of the primary key, else 1-based ordinal
}

// TableSchema is the ordered column descriptor set for one table.
type TableSchema struct {
	Columns []ColumnDef
}

// schemaName is the distinguished name of the always-present schema
// table. sqlite_master is the legacy name for the same table and is
// accepted as an alias nowhere in this core — sqlite_schema is what
// every SQLite version since 3.33 writes into the header's own rows.
const schemaName = "sqlite_schema"

// ddlCache memoizes parsed column descriptors by CREATE TABLE text,
// bounded by Config.ColumnCacheSize (app/config.go's DatabaseOption
// pattern extended with a bounded cache: once full, further misses are
// parsed but not cached rather than evicting, since a single streaming
// pass rarely revisits the same DDL text more than once per table).
type ddlCache struct {
	mu    sync.Mutex
	limit int
	m     map[string]TableSchema
}

func newDDLCache(limit int) *ddlCache {
	return &ddlCache{limit: limit, m: make(map[string]TableSchema)}
}

func (c *ddlCache) parse(sql string) (TableSchema, error) {
	c.mu.Lock()
	if schema, ok := c.m[sql]; ok {
		c.mu.Unlock()
		return schema, nil
	}
	c.mu.Unlock()

	schema, err := parseCreateTable(sql)
	if err != nil {
		return TableSchema{}, err
	}

	c.mu.Lock()
	if c.limit == 0 || len(c.m) < c.limit {
		c.m[sql] = schema
	}
	c.mu.Unlock()
	return schema, nil
}

// parseCreateTable interprets a CREATE TABLE statement into the full
// column descriptor set spec.md §6 asks for. Grounded on the teacher's
// parseTableSchema/normalizeSQLiteToMySQL (app/database.go) for
// name/type/autoincrement via github.com/xwb1989/sqlparser — the one
// embedded DDL parser spec.md §6 names as an external collaborator —
// extended with the per-column-definition text scan arnodel-golite's
// findRowIDColumnIndex (database.go) uses for NOT NULL / DEFAULT / PRIMARY
// KEY, since sqlparser's own constraint-level AST fields aren't reliably
// part of this fork's public surface.
func parseCreateTable(sql string) (TableSchema, error) {
	normalized := normalizeSQLiteDDL(sql)

	stmt, err := sqlparser.Parse(normalized)
	if err != nil {
		return TableSchema{}, wrapErr("parseCreateTable", err, map[string]interface{}{
			"sql": sql, "normalized": normalized,
		})
	}

	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != "create" || ddl.TableSpec == nil {
		return TableSchema{}, wrapErr("parseCreateTable", ErrMalformedRecord, map[string]interface{}{
			"sql": sql,
		})
	}

	defs := splitColumnDefs(sql)

	cols := make([]ColumnDef, len(ddl.TableSpec.Columns))
	for i, c := range ddl.TableSpec.Columns {
		def := ColumnDef{
			CID:  i,
			Name: c.Name.String(),
			Type: strings.ToLower(c.Type.Type),
		}
		// INTEGER PRIMARY KEY [AUTOINCREMENT] is the rowid alias.
		if c.Type.Autoincrement {
			def.PrimaryKey = 1
		}
		if i < len(defs) {
			applyTextualConstraints(&def, defs[i])
		}
		cols[i] = def
	}

	assignPrimaryKeyOrdinals(cols)

	return TableSchema{Columns: cols}, nil
}

// splitColumnDefs splits a CREATE TABLE statement's parenthesized body
// on top-level commas, the same simplified approach arnodel-golite's
// findRowIDColumnIndex takes: fragile against deeply nested expressions,
// but sufficient for the column/constraint definitions this core needs
// to read.
func splitColumnDefs(sql string) []string {
	start := strings.Index(sql, "(")
	end := strings.LastIndex(sql, ")")
	if start == -1 || end <= start {
		return nil
	}
	body := sql[start+1 : end]

	var defs []string
	depth := 0
	last := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				defs = append(defs, body[last:i])
				last = i + 1
			}
		}
	}
	defs = append(defs, body[last:])

	// Table-level constraints (PRIMARY KEY(...), UNIQUE(...), FOREIGN KEY...)
	// aren't column definitions; drop them so positional alignment with
	// ddl.TableSpec.Columns holds.
	out := defs[:0]
	for _, d := range defs {
		trimmed := strings.TrimSpace(d)
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "PRIMARY KEY") || strings.HasPrefix(upper, "UNIQUE") ||
			strings.HasPrefix(upper, "FOREIGN KEY") || strings.HasPrefix(upper, "CHECK") ||
			strings.HasPrefix(upper, "CONSTRAINT") {
			continue
		}
		out = append(out, d)
	}
	return out
}

// applyTextualConstraints sets NotNull, DfltValue and a provisional
// PrimaryKey flag by scanning one column definition's raw text.
func applyTextualConstraints(def *ColumnDef, raw string) {
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "NOT NULL") {
		def.NotNull = true
	}
	if strings.Contains(upper, "PRIMARY KEY") {
		def.PrimaryKey = 1
	}
	if idx := strings.Index(upper, "DEFAULT"); idx != -1 {
		rest := strings.TrimSpace(raw[idx+len("DEFAULT"):])
		for i, r := range rest {
			if r == ',' || (r == ' ' && i > 0 && !strings.HasPrefix(rest, "'")) {
				rest = rest[:i]
				break
			}
		}
		rest = strings.Trim(strings.TrimSpace(rest), "'\"")
		if rest != "" {
			v := rest
			def.DfltValue = &v
		}
	}
}

// assignPrimaryKeyOrdinals turns the provisional PrimaryKey=1 flags set
// by column scanning into 1-based ordinals across the primary key, in
// column declaration order — spec.md §6's "pk (0 or primary-key
// ordinal)".
func assignPrimaryKeyOrdinals(cols []ColumnDef) {
	ordinal := 1
	for i := range cols {
		if cols[i].PrimaryKey != 0 {
			cols[i].PrimaryKey = ordinal
			ordinal++
		}
	}
}

// createTableNameRe locates the table-name token of a CREATE TABLE
// statement, however it's quoted: double-quoted (SQLite's preferred
// form, which may itself contain arbitrary characters including
// apostrophes), bracketed, backtick-quoted, or bare.
var createTableNameRe = regexp.MustCompile(
	`(?is)^(\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?)` +
		"(\"(?:[^\"]|\"\")*\"|`(?:[^`]|``)*`|\\[[^\\]]*\\]|[A-Za-z_][A-Za-z0-9_$]*)")

// sanitizeTableName replaces the CREATE TABLE statement's own table-name
// token with a fixed placeholder identifier. The real table name is
// already known from the owning sqlite_schema row (spec.md §3), so the
// DDL parser only needs the column list; this sidesteps identifiers
// sqlparser's MySQL-flavored grammar can't otherwise tokenize, such as
// SQLite's quoted names containing an embedded apostrophe.
func sanitizeTableName(sql string) string {
	return createTableNameRe.ReplaceAllString(sql, "${1}sanitized_table_name")
}

// normalizeSQLiteDDL rewrites SQLite-specific DDL syntax into the MySQL
// dialect sqlparser accepts, following the teacher's
// normalizeSQLiteToMySQL (app/database.go): strip SQLite's double-quoted
// identifiers and translate "PRIMARY KEY AUTOINCREMENT" word order.
func normalizeSQLiteDDL(sql string) string {
	normalized := sanitizeTableName(sql)
	normalized = strings.ReplaceAll(normalized, `"`, "")
	normalized = strings.ReplaceAll(normalized, "primary key autoincrement", "auto_increment primary key")
	normalized = strings.ReplaceAll(normalized, "PRIMARY KEY AUTOINCREMENT", "AUTO_INCREMENT PRIMARY KEY")
	return strings.TrimSpace(normalized)
}
