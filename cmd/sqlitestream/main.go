// Command sqlitestream dumps a SQLite database file's tables, columns
// and row counts by streaming it forward once, without ever reading
// the whole file into memory.
//
// Usage: sqlitestream sample.db
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hgye/sqlitestream/internal/sqlitestream"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: sqlitestream <database-file>")
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	src := sqlitestream.ReaderSource(f, 64*1024)
	for table, err := range sqlitestream.Stream(src) {
		if err != nil {
			log.Fatal(err)
		}
		rowCount := 0
		for row, err := range table.Rows {
			if err != nil {
				log.Fatal(err)
			}
			rowCount++
			_ = row
		}
		fmt.Printf("%s: %d column(s), %d row(s)\n", table.Name, len(table.Schema.Columns), rowCount)
	}
}
