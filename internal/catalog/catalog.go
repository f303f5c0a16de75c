// Package catalog is the self-describing system catalog: table and
// column definitions, stored as two fixed DATA pages referenced from
// the buffer pool's metadata page, with a probabilistic in-memory
// lookup cache in front of them.
//
// Grounded on DaemonDB's storage_engine/catalog (CatalogManager with a
// lazily-populated map[string]TableSchema, "fast path: return from
// memory" then fall through to a full reload) — the persistence
// mechanism here is page-based instead of the teacher's JSON sidecar
// files, but the lazy-cache-with-full-rescan-on-miss behavior is kept.
// The cache itself is github.com/dgraph-io/ristretto/v2's TinyLFU
// admission cache: a miss or an evicted entry always falls through to
// scanTables/scanColumns, a full and authoritative page scan, so
// ristretto's probabilistic eviction can never produce a wrong answer
// — only a slower one.
package catalog

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto/v2"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/storage/bufferpool"
	"kizuna/internal/storage/page"
	"kizuna/internal/value"
)

// Constraint bits, per spec's constraint_mask.
const (
	maskNotNull    uint8 = 0x01
	maskPrimaryKey uint8 = 0x02
	maskUnique     uint8 = 0x04
	maskHasDefault uint8 = 0x08
)

// ColumnConstraint is a column's declared constraints.
type ColumnConstraint struct {
	NotNull        bool
	PrimaryKey     bool
	Unique         bool
	HasDefault     bool
	DefaultLiteral string
}

func (c ColumnConstraint) mask() uint8 {
	var m uint8
	if c.NotNull {
		m |= maskNotNull
	}
	if c.PrimaryKey {
		m |= maskPrimaryKey
	}
	if c.Unique {
		m |= maskUnique
	}
	if c.HasDefault {
		m |= maskHasDefault
	}
	return m
}

// ColumnDef is the input shape for a new column, as produced by DDL
// parsing, before it is assigned a column_id and ordinal.
type ColumnDef struct {
	Name       string
	Type       value.DataType
	Length     uint32
	Constraint ColumnConstraint
}

// TableEntry is one row of the tables catalog page.
type TableEntry struct {
	TableID  uint32
	RootPage uint32
	Name     string
	SQL      string
}

// ColumnEntry is one row of the columns catalog page.
type ColumnEntry struct {
	TableID    uint32
	ColumnID   uint32
	Ordinal    uint32
	Type       value.DataType
	Length     uint32
	Constraint ColumnConstraint
	Name       string
}

// Manager owns the catalog pages and their lookup caches.
type Manager struct {
	pool *bufferpool.Pool

	byName *ristretto.Cache[string, *TableEntry]
	byID   *ristretto.Cache[uint32, *TableEntry]
}

// Open builds a Manager over pool's existing (or freshly bootstrapped)
// catalog roots.
func Open(pool *bufferpool.Pool) (*Manager, error) {
	byName, err := ristretto.NewCache(&ristretto.Config[string, *TableEntry]{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, kerr.Wrap(err, kerr.InternalError, "failed to build table name cache")
	}
	byID, err := ristretto.NewCache(&ristretto.Config[uint32, *TableEntry]{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, kerr.Wrap(err, kerr.InternalError, "failed to build table id cache")
	}
	return &Manager{pool: pool, byName: byName, byID: byID}, nil
}

func (m *Manager) cache(te *TableEntry) {
	m.byName.Set(te.Name, te, 1)
	m.byID.Set(te.TableID, te, 1)
	m.byName.Wait()
	m.byID.Wait()
}

func (m *Manager) uncache(te *TableEntry) {
	m.byName.Del(te.Name)
	m.byID.Del(te.TableID)
}

// ListTables always does a full page scan: the cache only accelerates
// single-table lookups, it has no enumeration primitive of its own.
func (m *Manager) ListTables() ([]*TableEntry, error) {
	return m.scanTables()
}

// GetTableByName returns TABLE_NOT_FOUND if name isn't registered.
func (m *Manager) GetTableByName(name string) (*TableEntry, error) {
	if te, ok := m.byName.Get(name); ok {
		return te, nil
	}
	tables, err := m.scanTables()
	if err != nil {
		return nil, err
	}
	for _, te := range tables {
		m.cache(te)
		if te.Name == name {
			return te, nil
		}
	}
	return nil, kerr.New(kerr.TableNotFound, "table does not exist").With("name", name)
}

// GetTableByID returns TABLE_NOT_FOUND if id isn't registered.
func (m *Manager) GetTableByID(id uint32) (*TableEntry, error) {
	if te, ok := m.byID.Get(id); ok {
		return te, nil
	}
	tables, err := m.scanTables()
	if err != nil {
		return nil, err
	}
	for _, te := range tables {
		m.cache(te)
		if te.TableID == id {
			return te, nil
		}
	}
	return nil, kerr.New(kerr.TableNotFound, "table does not exist").With("table_id", id)
}

// GetColumns scans the columns page fresh every call, filtered to
// tableID and sorted by ordinal position.
func (m *Manager) GetColumns(tableID uint32) ([]*ColumnEntry, error) {
	all, err := m.scanColumns()
	if err != nil {
		return nil, err
	}
	out := make([]*ColumnEntry, 0, len(all))
	for _, ce := range all {
		if ce.TableID == tableID {
			out = append(out, ce)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

// CreateTable registers a new table: assigns a table id, persists one
// TableEntry and one ColumnEntry per column, and warms the cache.
func (m *Manager) CreateTable(name string, cols []ColumnDef, rootPage uint32, createSQL string) (*TableEntry, error) {
	if _, err := m.GetTableByName(name); err == nil {
		return nil, kerr.New(kerr.TableExists, "table already exists").With("name", name)
	} else if kerr.KindOf(err) != kerr.TableNotFound {
		return nil, err
	}

	tableID, err := m.pool.AllocateTableID()
	if err != nil {
		return nil, err
	}

	te := &TableEntry{TableID: tableID, RootPage: rootPage, Name: name, SQL: createSQL}
	if err := m.insertTableEntry(te); err != nil {
		return nil, err
	}

	for i, col := range cols {
		ce := &ColumnEntry{
			TableID:    tableID,
			ColumnID:   uint32(i + 1),
			Ordinal:    uint32(i),
			Type:       col.Type,
			Length:     col.Length,
			Constraint: col.Constraint,
			Name:       col.Name,
		}
		if err := m.insertColumnEntry(ce); err != nil {
			return nil, err
		}
	}

	m.cache(te)
	return te, nil
}

// DropTable removes a table's catalog entries by rewriting both
// catalog pages without it. cascade is accepted for grammar
// compatibility but has no effect: this schema model has no foreign
// keys to cascade through.
func (m *Manager) DropTable(name string, cascade bool) (bool, error) {
	te, err := m.GetTableByName(name)
	if err != nil {
		if kerr.KindOf(err) == kerr.TableNotFound {
			return false, nil
		}
		return false, err
	}

	tables, err := m.scanTables()
	if err != nil {
		return false, err
	}
	kept := tables[:0]
	for _, t := range tables {
		if t.TableID != te.TableID {
			kept = append(kept, t)
		}
	}
	if err := m.rewriteTablesPage(kept); err != nil {
		return false, err
	}

	columns, err := m.scanColumns()
	if err != nil {
		return false, err
	}
	keptCols := columns[:0]
	for _, c := range columns {
		if c.TableID != te.TableID {
			keptCols = append(keptCols, c)
		}
	}
	if err := m.rewriteColumnsPage(keptCols); err != nil {
		return false, err
	}

	m.uncache(te)
	return true, nil
}

func (m *Manager) scanTables() ([]*TableEntry, error) {
	root := m.pool.CatalogTablesRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return nil, err
	}
	defer m.pool.Unpin(root, false)

	var out []*TableEntry
	for slot := uint16(0); slot < pg.SlotCount(); slot++ {
		payload, err := pg.Read(slot)
		if err != nil {
			continue // tombstoned or stale slot
		}
		te, ok := decodeTableEntry(payload)
		if !ok {
			continue
		}
		out = append(out, te)
	}
	return out, nil
}

func (m *Manager) scanColumns() ([]*ColumnEntry, error) {
	root := m.pool.CatalogColumnsRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return nil, err
	}
	defer m.pool.Unpin(root, false)

	var out []*ColumnEntry
	for slot := uint16(0); slot < pg.SlotCount(); slot++ {
		payload, err := pg.Read(slot)
		if err != nil {
			continue
		}
		ce, ok := decodeColumnEntry(payload)
		if !ok {
			continue
		}
		out = append(out, ce)
	}
	return out, nil
}

func (m *Manager) insertTableEntry(te *TableEntry) error {
	payload := encodeTableEntry(te)
	root := m.pool.CatalogTablesRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return err
	}
	if _, err := pg.Insert(payload); err != nil {
		m.pool.Unpin(root, false)
		return err
	}
	if err := m.pool.Unpin(root, true); err != nil {
		return err
	}
	return m.pool.Flush(root)
}

func (m *Manager) insertColumnEntry(ce *ColumnEntry) error {
	payload := encodeColumnEntry(ce)
	root := m.pool.CatalogColumnsRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return err
	}
	if _, err := pg.Insert(payload); err != nil {
		m.pool.Unpin(root, false)
		return err
	}
	if err := m.pool.Unpin(root, true); err != nil {
		return err
	}
	return m.pool.Flush(root)
}

func (m *Manager) rewriteTablesPage(tables []*TableEntry) error {
	root := m.pool.CatalogTablesRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return err
	}
	pg.Init(page.Data, root)
	for _, te := range tables {
		if _, err := pg.Insert(encodeTableEntry(te)); err != nil {
			m.pool.Unpin(root, true)
			return err
		}
	}
	if err := m.pool.Unpin(root, true); err != nil {
		return err
	}
	return m.pool.Flush(root)
}

func (m *Manager) rewriteColumnsPage(columns []*ColumnEntry) error {
	root := m.pool.CatalogColumnsRoot()
	pg, err := m.pool.Fetch(root, true)
	if err != nil {
		return err
	}
	pg.Init(page.Data, root)
	for _, ce := range columns {
		if _, err := pg.Insert(encodeColumnEntry(ce)); err != nil {
			m.pool.Unpin(root, true)
			return err
		}
	}
	if err := m.pool.Unpin(root, true); err != nil {
		return err
	}
	return m.pool.Flush(root)
}

// encodeTableEntry: u32 table_id · u32 root_page · u16 name_len ·
// name · u32 sql_len · sql.
func encodeTableEntry(te *TableEntry) []byte {
	out := make([]byte, 4+4+2+len(te.Name)+4+len(te.SQL))
	binary.LittleEndian.PutUint32(out[0:], te.TableID)
	binary.LittleEndian.PutUint32(out[4:], te.RootPage)
	binary.LittleEndian.PutUint16(out[8:], uint16(len(te.Name)))
	pos := 10
	copy(out[pos:], te.Name)
	pos += len(te.Name)
	binary.LittleEndian.PutUint32(out[pos:], uint32(len(te.SQL)))
	pos += 4
	copy(out[pos:], te.SQL)
	return out
}

func decodeTableEntry(data []byte) (*TableEntry, bool) {
	if len(data) < 10 {
		return nil, false
	}
	te := &TableEntry{}
	te.TableID = binary.LittleEndian.Uint32(data[0:])
	te.RootPage = binary.LittleEndian.Uint32(data[4:])
	nameLen := int(binary.LittleEndian.Uint16(data[8:]))
	pos := 10
	if pos+nameLen+4 > len(data) {
		return nil, false
	}
	te.Name = string(data[pos : pos+nameLen])
	pos += nameLen
	sqlLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if pos+sqlLen != len(data) {
		return nil, false
	}
	te.SQL = string(data[pos : pos+sqlLen])
	return te, true
}

// encodeColumnEntry: u32 table_id · u32 column_id · u32 ordinal · u8
// type · u32 length · u8 constraint_mask · u16 name_len · name · u16
// default_len · default_literal.
func encodeColumnEntry(ce *ColumnEntry) []byte {
	defaultLit := ce.Constraint.DefaultLiteral
	out := make([]byte, 4+4+4+1+4+1+2+len(ce.Name)+2+len(defaultLit))
	binary.LittleEndian.PutUint32(out[0:], ce.TableID)
	binary.LittleEndian.PutUint32(out[4:], ce.ColumnID)
	binary.LittleEndian.PutUint32(out[8:], ce.Ordinal)
	out[12] = byte(ce.Type)
	binary.LittleEndian.PutUint32(out[13:], ce.Length)
	out[17] = ce.Constraint.mask()
	binary.LittleEndian.PutUint16(out[18:], uint16(len(ce.Name)))
	pos := 20
	copy(out[pos:], ce.Name)
	pos += len(ce.Name)
	binary.LittleEndian.PutUint16(out[pos:], uint16(len(defaultLit)))
	pos += 2
	copy(out[pos:], defaultLit)
	return out
}

func decodeColumnEntry(data []byte) (*ColumnEntry, bool) {
	if len(data) < 20 {
		return nil, false
	}
	ce := &ColumnEntry{}
	ce.TableID = binary.LittleEndian.Uint32(data[0:])
	ce.ColumnID = binary.LittleEndian.Uint32(data[4:])
	ce.Ordinal = binary.LittleEndian.Uint32(data[8:])
	ce.Type = value.DataType(data[12])
	ce.Length = binary.LittleEndian.Uint32(data[13:])
	mask := data[17]
	nameLen := int(binary.LittleEndian.Uint16(data[18:]))
	pos := 20
	if pos+nameLen+2 > len(data) {
		return nil, false
	}
	ce.Name = string(data[pos : pos+nameLen])
	pos += nameLen
	defaultLen := int(binary.LittleEndian.Uint16(data[pos:]))
	pos += 2
	if pos+defaultLen != len(data) {
		return nil, false
	}
	defaultLit := string(data[pos : pos+defaultLen])

	ce.Constraint = ColumnConstraint{
		NotNull:        mask&maskNotNull != 0,
		PrimaryKey:     mask&maskPrimaryKey != 0,
		Unique:         mask&maskUnique != 0,
		HasDefault:     mask&maskHasDefault != 0,
		DefaultLiteral: defaultLit,
	}
	return ce, true
}

// ValidateColumnDefs applies the DDL-time checks from spec.md §4.J
// that belong to the catalog's view of a schema: table/column name
// length limits, duplicate column names (case-insensitive), too many
// columns, and at most one PRIMARY KEY (whose NOT NULL/UNIQUE are
// implied and filled in here).
func ValidateColumnDefs(tableName string, cols []ColumnDef) ([]ColumnDef, error) {
	if tableName == "" {
		return nil, kerr.New(kerr.InvalidArgument, "table name must not be empty")
	}
	if len(tableName) > kconfig.MaxTableNameLength {
		return nil, kerr.New(kerr.InvalidArgument, "table name too long").With("name", tableName)
	}
	if len(cols) == 0 {
		return nil, kerr.New(kerr.InvalidArgument, "table must have at least one column")
	}
	if len(cols) > kconfig.MaxColumnsPerTable {
		return nil, kerr.New(kerr.InvalidArgument, "too many columns").With("count", len(cols))
	}

	seen := make(map[string]bool, len(cols))
	pkCount := 0
	out := make([]ColumnDef, len(cols))
	for i, c := range cols {
		if len(c.Name) > kconfig.MaxColumnNameLength {
			return nil, kerr.New(kerr.InvalidArgument, "column name too long").With("name", c.Name)
		}
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return nil, kerr.New(kerr.SchemaMismatch, "duplicate column name").With("name", c.Name)
		}
		seen[lower] = true

		if c.Constraint.PrimaryKey {
			pkCount++
			c.Constraint.NotNull = true
			c.Constraint.Unique = true
		}
		out[i] = c
	}
	if pkCount > 1 {
		return nil, kerr.New(kerr.SchemaMismatch, "at most one PRIMARY KEY column is allowed")
	}
	return out, nil
}
