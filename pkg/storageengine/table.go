package storageengine

// Table namespaces a Database under a fixed key prefix, so several
// logical stores can share one goleveldb file without key collisions
// (headers is the only one in use).
type Table struct {
	prefix []byte
	db     Database
}

// NewTable returns a Table over db using prefix.
func NewTable(db Database, prefix []byte) *Table {
	return &Table{
		prefix: append([]byte(nil), prefix...),
		db:     db,
	}
}

func (t *Table) key(key []byte) []byte {
	out := make([]byte, 0, len(t.prefix)+len(key))
	out = append(out, t.prefix...)
	return append(out, key...)
}

// Has reports whether key exists in the table.
func (t *Table) Has(key []byte) (bool, error) {
	return t.db.Has(t.key(key))
}

// Put stores value under key.
func (t *Table) Put(key, value []byte) error {
	return t.db.Put(t.key(key), value)
}

// Get returns the value stored under key, or ErrNotFound.
func (t *Table) Get(key []byte) ([]byte, error) {
	return t.db.Get(t.key(key))
}

// Delete removes key from the table.
func (t *Table) Delete(key []byte) error {
	return t.db.Delete(t.key(key))
}

// Prefix returns the values of every table entry whose key starts with
// key, in key order.
func (t *Table) Prefix(key []byte) ([][]byte, error) {
	return t.db.Prefix(t.key(key))
}
