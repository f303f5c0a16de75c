// Command kizuna is the interactive REPL: read a line, run it as SQL
// (or as a leading-dot introspection command), print the result.
//
// Grounded on DaemonDB's main.go REPL loop (bufio.Scanner over stdin,
// "db> " prompt, EqualFold("exit") to quit), extended with the
// .tables/.schema/.stats introspection commands spec.md's supplemented
// features call for.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"kizuna/internal/catalog"
	"kizuna/internal/engine"
	"kizuna/internal/kconfig"
)

func main() {
	path := kconfig.DefaultDBDir + "kizuna" + kconfig.DBFileExtension
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "kizuna:", err)
		os.Exit(1)
	}

	eng, err := engine.Open(path, kconfig.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, "kizuna:", err)
		os.Exit(1)
	}
	defer eng.Close()

	fmt.Printf("kizuna — connected to %s\n", path)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("kizuna> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}
		if strings.HasPrefix(line, ".") {
			runCommand(eng, line)
			continue
		}

		result, err := eng.Execute(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		printResult(result)
	}
}

func runCommand(eng *engine.Engine, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".tables":
		tables, err := eng.ListTables()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, te := range tables {
			fmt.Println(te.Name)
		}

	case ".schema":
		if len(fields) != 2 {
			fmt.Println("usage: .schema <table>")
			return
		}
		te, cols, err := eng.TableSchema(fields[1])
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println(te.SQL)
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		for _, c := range cols {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", c.Name, c.Type, constraintSummary(c))
		}
		w.Flush()

	case ".stats":
		printStats(eng)

	default:
		fmt.Println("unknown command:", fields[0])
	}
}

func constraintSummary(c *catalog.ColumnEntry) string {
	var parts []string
	if c.Constraint.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Constraint.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Constraint.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.Constraint.HasDefault {
		parts = append(parts, "DEFAULT "+c.Constraint.DefaultLiteral)
	}
	return strings.Join(parts, " ")
}

func printResult(r *engine.Result) {
	if r.Headers != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(r.Headers, "\t"))
		for _, row := range r.Rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		w.Flush()
		fmt.Printf("(%d row(s))\n", r.RowsAffected)
		return
	}
	fmt.Println(r.Message)
}

func printStats(eng *engine.Engine) {
	tables, err := eng.ListTables()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	stats, err := eng.Stats()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("tables:      %s\n", humanize.Comma(int64(len(tables))))
	fmt.Printf("file size:   %s\n", humanize.Bytes(uint64(stats.FileSizeBytes)))
	fmt.Printf("free pages:  %s\n", humanize.Comma(int64(stats.FreePages)))
}
