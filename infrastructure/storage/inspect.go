package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

// InspectRow is a human readable view of one stored key.
type InspectRow struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Owner     string `json:"owner"`
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entity_id"`
	Detail    string `json:"detail"`
}

// Inspect lists up to limit keys starting with prefix. A limit <= 0 means no limit.
func Inspect(db *badger.DB, prefix string, limit int) ([]InspectRow, error) {
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			rows = append(rows, DescribeKey(string(item.KeyCopy(nil)), item.ValueSize()))
			if limit > 0 && len(rows) >= limit {
				break
			}
		}
		return nil
	})
	return rows, err
}

// DescribeKey splits keys of the form kind:owner[:ulid].
func DescribeKey(key string, size int64) InspectRow {
	row := InspectRow{
		Key:       key,
		Kind:      "raw",
		Owner:     "-",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.FormatInt(size, 10) + " bytes",
	}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 2 {
		row.Kind = parts[0]
		row.Owner = parts[1]
	}
	if len(parts) == 3 {
		row.EntityID = parts[2]
		if id, err := ulid.ParseStrict(parts[2]); err == nil {
			row.Timestamp = ulid.Time(id.Time()).UTC().Format(time.DateTime)
		}
		if len(row.EntityID) > 10 {
			row.EntityID = row.EntityID[:10]
		}
	}
	return row
}
