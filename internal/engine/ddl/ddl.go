// Package ddl executes CREATE TABLE and DROP TABLE: schema validation,
// root page allocation, catalog persistence, and the sidecar file
// touch/removal spec.md §4.J calls for, with rollback of catalog and
// page state on a failed sidecar write.
//
// Grounded on DaemonDB's main.go createTable/dropTable command
// handlers (validate columns, allocate a heap file, register it in
// the catalog, persist) generalized to this engine's page-based
// catalog and heap.
package ddl

import (
	"os"
	"strings"

	"kizuna/internal/ast"
	"kizuna/internal/catalog"
	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/storage/bufferpool"
	"kizuna/internal/storage/heap"
	"kizuna/internal/value"
)

// Executor runs DDL statements against pool and cat, touching sidecar
// files under dbDir.
type Executor struct {
	pool  *bufferpool.Pool
	cat   *catalog.Manager
	dbDir string
}

// New builds an Executor over pool and cat; sidecar files live under dbDir.
func New(pool *bufferpool.Pool, cat *catalog.Manager, dbDir string) *Executor {
	return &Executor{pool: pool, cat: cat, dbDir: dbDir}
}

// CreateTable executes a CreateTableStatement per spec.md §4.J,
// rolling back the catalog entry and root page if the sidecar write
// fails.
func (x *Executor) CreateTable(stmt *ast.CreateTableStatement) error {
	defs, err := buildColumnDefs(stmt.Columns)
	if err != nil {
		return err
	}
	defs, err = catalog.ValidateColumnDefs(stmt.TableName, defs)
	if err != nil {
		return err
	}

	rootPage, err := heap.Create(x.pool)
	if err != nil {
		return err
	}

	te, err := x.cat.CreateTable(stmt.TableName, defs, rootPage, stmt.SQL)
	if err != nil {
		x.pool.FreePage(rootPage)
		return err
	}

	path := kconfig.SidecarPath(x.dbDir, te.TableID)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		x.cat.DropTable(te.Name, false)
		x.pool.FreePage(rootPage)
		return kerr.Wrap(err, kerr.WriteError, "failed to create sidecar file").With("path", path)
	}
	return nil
}

// DropTable executes a DropTableStatement per spec.md §4.J.
func (x *Executor) DropTable(stmt *ast.DropTableStatement) error {
	te, err := x.cat.GetTableByName(stmt.TableName)
	if err != nil {
		if kerr.KindOf(err) == kerr.TableNotFound {
			if stmt.IfExists {
				return nil
			}
		}
		return err
	}

	if _, err := x.cat.DropTable(stmt.TableName, stmt.Cascade); err != nil {
		return err
	}
	if err := x.pool.FreePage(te.RootPage); err != nil {
		return err
	}

	path := kconfig.SidecarPath(x.dbDir, te.TableID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return kerr.Wrap(err, kerr.IOError, "failed to remove sidecar file").With("path", path)
	}
	return nil
}

func buildColumnDefs(cols []ast.ColumnDefAST) ([]catalog.ColumnDef, error) {
	out := make([]catalog.ColumnDef, len(cols))
	for i, c := range cols {
		typ, length, err := resolveType(c.TypeName, c.Length)
		if err != nil {
			return nil, err
		}
		var cc catalog.ColumnConstraint
		for _, con := range c.Constraints {
			switch con.Kind {
			case ast.PrimaryKey:
				cc.PrimaryKey = true
			case ast.NotNull:
				cc.NotNull = true
			case ast.Unique:
				cc.Unique = true
			case ast.Default:
				cc.HasDefault = true
				if con.Literal != nil {
					cc.DefaultLiteral = con.Literal.Text
				}
			}
		}
		out[i] = catalog.ColumnDef{Name: c.Name, Type: typ, Length: length, Constraint: cc}
	}
	return out, nil
}

// resolveType maps a parsed type name to the runtime DataType and
// declared length, per the grammar in spec.md §6.
func resolveType(name string, length int) (value.DataType, uint32, error) {
	switch strings.ToUpper(name) {
	case "INTEGER", "INT":
		return value.Integer, 0, nil
	case "BIGINT":
		return value.BigInt, 0, nil
	case "FLOAT":
		return value.Float, 0, nil
	case "DOUBLE":
		return value.Double, 0, nil
	case "BOOLEAN", "BOOL":
		return value.Boolean, 0, nil
	case "VARCHAR":
		if length <= 0 || length > kconfig.MaxVarcharLength {
			return 0, 0, kerr.New(kerr.InvalidArgument, "VARCHAR length must be between 1 and MAX_VARCHAR_LENGTH").With("length", length)
		}
		return value.Varchar, uint32(length), nil
	case "DATE":
		return value.Date, 0, nil
	default:
		return 0, 0, kerr.New(kerr.UnsupportedType, "unknown column type").With("type", name)
	}
}
