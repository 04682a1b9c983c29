// Package journal is the append-only action log backing replay: dispatched
// action.Envelopes are recorded here keyed by their numeric ID (the storage
// worker drops an append when its queue is full), and
// the introspection server's GET /actions replays a range of them through
// the same reducer the live store uses.
//
// bbolt backs this log rather than the goleveldb engine in
// pkg/storageengine because the access pattern is purely sequential
// range-scans over a monotonically increasing uint64 key, which is what
// bbolt's ordered-bucket cursor is built for; an LSM tree buys nothing
// here since there are no random-key updates or deletes.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/driftnode/driftnode/pkg/action"
)

var (
	actionsBucket   = []byte("actions")
	snapshotsBucket = []byte("snapshots")
)

// record is the on-disk, self-describing encoding of one action, keyed by
// its ID: the Kind discriminant stored in the clear next to the content,
// so the log stays readable by anything that can parse JSON. Typed replay
// goes back through action.Decode.
type record struct {
	ID      uint64          `json:"id"`
	Kind    action.Kind     `json:"kind"`
	TimeUTC int64           `json:"time_unix_nano"`
	Content json.RawMessage `json:"content"`
}

// Journal is the append-only action log plus the state-snapshot index,
// both stored in one bbolt file.
type Journal struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt-backed journal at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(actionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init buckets: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying bbolt file.
func (j *Journal) Close() error {
	return j.db.Close()
}

// AppendAction persists env, keyed by its ID. content must already be the
// action's encoded fields (pkg/storageworker encodes them with
// action.Encode); env.Action.Kind() is stored next to them so replay can
// rebuild the concrete type with action.Decode.
func (j *Journal) AppendAction(env action.Envelope, content []byte) error {
	rec := record{
		ID:      uint64(env.ID),
		Kind:    env.Action.Kind(),
		TimeUTC: env.Time.UnixNano(),
		Content: content,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal action %d: %w", env.ID, err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(actionsBucket).Put(idKey(uint64(env.ID)), data)
	})
}

// ActionRecord is what ReadRange returns: enough to drive replay (Kind +
// raw content) plus the bookkeeping fields record carries.
type ActionRecord struct {
	ID      uint64
	Kind    action.Kind
	TimeUTC int64
	Content json.RawMessage
}

// ReadRange returns every action with from <= id <= to, in ID order
// (bbolt buckets are stored key-sorted, so a cursor Seek+Next walk is
// already ordered without an explicit sort).
func (j *Journal) ReadRange(from, to uint64) ([]ActionRecord, error) {
	var out []ActionRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(actionsBucket).Cursor()
		for k, v := c.Seek(idKey(from)); k != nil; k, v = c.Next() {
			id := binary.BigEndian.Uint64(k)
			if id > to {
				break
			}
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("journal: decode action %d: %w", id, err)
			}
			out = append(out, ActionRecord{ID: rec.ID, Kind: rec.Kind, TimeUTC: rec.TimeUTC, Content: rec.Content})
		}
		return nil
	})
	return out, err
}

// PutSnapshot records state (already encoded as JSON by the caller) as the
// snapshot anchored at actionID.
func (j *Journal) PutSnapshot(actionID uint64, state []byte) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(idKey(actionID), state)
	})
}

// NearestSnapshot returns the snapshot with the largest anchoring action
// ID that is <= cursor, or ok=false if none exists (replay then starts
// from the zero state at action 0).
func (j *Journal) NearestSnapshot(cursor uint64) (anchorID uint64, state []byte, ok bool, err error) {
	err = j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(snapshotsBucket).Cursor()
		k, v := c.Seek(idKey(cursor))
		if k == nil || binary.BigEndian.Uint64(k) > cursor {
			k, v = c.Prev()
		}
		if k == nil {
			return nil
		}
		anchorID = binary.BigEndian.Uint64(k)
		state = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return anchorID, state, ok, err
}

func idKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}
