package sqlitestream

import "testing"

func findColumn(schema TableSchema, name string) (ColumnDef, bool) {
	for _, c := range schema.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

func TestParseCreateTableBasic(t *testing.T) {
	sql := `CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, age INTEGER DEFAULT 18)`

	schema, err := parseCreateTable(sql)
	if err != nil {
		t.Fatalf("parseCreateTable() error = %v", err)
	}
	if len(schema.Columns) != 3 {
		t.Fatalf("parseCreateTable() returned %d columns, want 3", len(schema.Columns))
	}

	id, ok := findColumn(schema, "id")
	if !ok {
		t.Fatal("missing column id")
	}
	if id.PrimaryKey != 1 {
		t.Errorf("id.PrimaryKey = %v, want 1", id.PrimaryKey)
	}
	if id.Type != "integer" {
		t.Errorf("id.Type = %v, want integer", id.Type)
	}

	name, ok := findColumn(schema, "name")
	if !ok {
		t.Fatal("missing column name")
	}
	if !name.NotNull {
		t.Error("name.NotNull = false, want true")
	}
	if name.PrimaryKey != 0 {
		t.Errorf("name.PrimaryKey = %v, want 0", name.PrimaryKey)
	}

	age, ok := findColumn(schema, "age")
	if !ok {
		t.Fatal("missing column age")
	}
	if age.DfltValue == nil || *age.DfltValue != "18" {
		t.Errorf("age.DfltValue = %v, want 18", age.DfltValue)
	}
}

func TestParseCreateTableColumnOrderAndCID(t *testing.T) {
	sql := `CREATE TABLE t (a TEXT, b TEXT, c TEXT)`
	schema, err := parseCreateTable(sql)
	if err != nil {
		t.Fatalf("parseCreateTable() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, name := range want {
		if schema.Columns[i].Name != name {
			t.Errorf("Columns[%d].Name = %v, want %v", i, schema.Columns[i].Name, name)
		}
		if schema.Columns[i].CID != i {
			t.Errorf("Columns[%d].CID = %v, want %v", i, schema.Columns[i].CID, i)
		}
	}
}

func TestDDLCacheReusesParsedSchema(t *testing.T) {
	cache := newDDLCache(8)
	sql := `CREATE TABLE cached (x INTEGER)`

	first, err := cache.parse(sql)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	second, err := cache.parse(sql)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if len(first.Columns) != len(second.Columns) || first.Columns[0].Name != second.Columns[0].Name {
		t.Errorf("cached parse result differs: %+v vs %+v", first, second)
	}
}

func TestNormalizeSQLiteDDL(t *testing.T) {
	got := normalizeSQLiteDDL(`CREATE TABLE "my table" (id INTEGER PRIMARY KEY AUTOINCREMENT)`)
	if got != `CREATE TABLE sanitized_table_name (id INTEGER AUTO_INCREMENT PRIMARY KEY)` {
		t.Errorf("normalizeSQLiteDDL() = %q", got)
	}
}

// TestParseCreateTableApostropheInTableName covers spec.md §8 scenario 2's
// table name, which embeds an apostrophe inside SQLite's double-quoted
// identifier syntax — a token the MySQL-flavored DDL grammar can't
// tokenize by itself, hence sanitizeTableName's placeholder swap.
func TestParseCreateTableApostropheInTableName(t *testing.T) {
	sql := `CREATE TABLE "my_table_'1"(a text,b text)`
	schema, err := parseCreateTable(sql)
	if err != nil {
		t.Fatalf("parseCreateTable() error = %v", err)
	}
	if len(schema.Columns) != 2 {
		t.Fatalf("parseCreateTable() returned %d columns, want 2", len(schema.Columns))
	}
	if schema.Columns[0].Name != "a" || schema.Columns[1].Name != "b" {
		t.Errorf("columns = %+v", schema.Columns)
	}
}
