// Package engine wires the storage stack (file, buffer pool, catalog)
// to the SQL front end and the DDL/DML executors behind one Execute
// entry point, the way DaemonDB's main.go wires its VM, heap file
// manager, and parser together — but as a reusable type instead of
// code inlined into main.
package engine

import (
	"path/filepath"
	"strconv"

	"kizuna/internal/ast"
	"kizuna/internal/catalog"
	"kizuna/internal/engine/ddl"
	"kizuna/internal/engine/dml"
	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/klog"
	"kizuna/internal/sqlfront"
	"kizuna/internal/storage/bufferpool"
	"kizuna/internal/storage/file"
)

// Result is the outcome of one Execute call: either a row set (SELECT)
// or a count/message (everything else).
type Result struct {
	Headers      []string
	Rows         [][]string
	RowsAffected int
	Message      string
}

// Engine owns the whole stack for one open database file.
type Engine struct {
	fm  *file.Manager
	log *klog.FileLogger

	pool *bufferpool.Pool
	cat  *catalog.Manager
	ddl  *ddl.Executor
	dml  *dml.Executor
}

// Open opens (creating if absent) the database file at path and
// brings up the buffer pool and catalog over it.
func Open(path string, opts kconfig.Options) (*Engine, error) {
	fm, err := file.Open(path, true)
	if err != nil {
		return nil, err
	}

	var logger *klog.FileLogger
	if opts.LogPath != "" {
		logger, err = klog.New(opts.LogPath)
		if err != nil {
			fm.Close()
			return nil, kerr.Wrap(err, kerr.IOError, "failed to open log file").With("path", opts.LogPath)
		}
	}

	var log = klog.Logger(klog.Nop{})
	if logger != nil {
		log = logger
	}

	pool, err := bufferpool.Open(fm, opts.BufferPoolCapacity, log)
	if err != nil {
		fm.Close()
		return nil, err
	}

	cat, err := catalog.Open(pool)
	if err != nil {
		fm.Close()
		return nil, err
	}

	dbDir := filepath.Dir(path)
	return &Engine{
		fm:   fm,
		log:  logger,
		pool: pool,
		cat:  cat,
		ddl:  ddl.New(pool, cat, dbDir),
		dml:  dml.New(pool, cat),
	}, nil
}

// Close flushes every dirty page and closes the underlying file and
// log handles.
func (e *Engine) Close() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Close()
	}
	return e.fm.Close()
}

// ListTables exposes the catalog for introspection commands (.tables).
func (e *Engine) ListTables() ([]*catalog.TableEntry, error) {
	return e.cat.ListTables()
}

// Stats reports file size and freelist occupancy for the .stats
// introspection command.
type Stats struct {
	FileSizeBytes int64
	FreePages     uint32
}

// Stats returns the current file size and free-page count.
func (e *Engine) Stats() (Stats, error) {
	size, err := e.fm.SizeBytes()
	if err != nil {
		return Stats{}, err
	}
	return Stats{FileSizeBytes: size, FreePages: e.pool.FreeCount()}, nil
}

// TableSchema exposes one table's columns for introspection commands
// (.schema).
func (e *Engine) TableSchema(name string) (*catalog.TableEntry, []*catalog.ColumnEntry, error) {
	te, err := e.cat.GetTableByName(name)
	if err != nil {
		return nil, nil, err
	}
	cols, err := e.cat.GetColumns(te.TableID)
	if err != nil {
		return nil, nil, err
	}
	return te, cols, nil
}

// Execute parses sql and dispatches it to the DDL or DML executor.
func (e *Engine) Execute(sql string) (*Result, error) {
	stmt, err := sqlfront.Parse(sql)
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case *ast.CreateTableStatement:
		if err := e.ddl.CreateTable(s); err != nil {
			return nil, err
		}
		return &Result{Message: "table created"}, nil

	case *ast.DropTableStatement:
		if err := e.ddl.DropTable(s); err != nil {
			return nil, err
		}
		return &Result{Message: "table dropped"}, nil

	case *ast.InsertStatement:
		n, err := e.dml.Insert(s)
		if err != nil {
			return nil, err
		}
		return &Result{RowsAffected: n, Message: rowsMessage(n, "inserted")}, nil

	case *ast.SelectStatement:
		headers, rows, err := e.dml.Select(s)
		if err != nil {
			return nil, err
		}
		return &Result{Headers: headers, Rows: rows, RowsAffected: len(rows)}, nil

	case *ast.UpdateStatement:
		n, err := e.dml.Update(s)
		if err != nil {
			return nil, err
		}
		return &Result{RowsAffected: n, Message: rowsMessage(n, "updated")}, nil

	case *ast.DeleteStatement:
		n, err := e.dml.Delete(s)
		if err != nil {
			return nil, err
		}
		return &Result{RowsAffected: n, Message: rowsMessage(n, "deleted")}, nil

	case *ast.TruncateStatement:
		if err := e.dml.Truncate(s); err != nil {
			return nil, err
		}
		return &Result{Message: "table truncated"}, nil

	default:
		return nil, kerr.New(kerr.NotImplemented, "unsupported statement type")
	}
}

func rowsMessage(n int, verb string) string {
	if n == 1 {
		return "1 row " + verb
	}
	return strconv.Itoa(n) + " rows " + verb
}
