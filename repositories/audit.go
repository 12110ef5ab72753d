//go:generate go run go.uber.org/mock/mockgen -source=audit.go -destination=../mocks/mock_audit_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"channel-gateway/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IAuditRepository interface {
	Record(entry domain.AuditEntry) error
	List(limit int) ([]domain.AuditEntry, error)
}

// AuditRepository persists administrative actions in BadgerDB.
type AuditRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAuditRepository(db *badger.DB, log *slog.Logger) AuditRepository {
	return AuditRepository{db: db, log: log}
}

// Record appends one entry. The key is "audit:{timestamp_padded}:{uuid}":
//  1. Chronological sorting via 19-digit zero padding (lexicographical order).
//  2. UUID as a collision disconnector if two entries land on the same
//     nanosecond.
func (r AuditRepository) Record(entry domain.AuditEntry) error {
	key := fmt.Sprintf("audit:%019d:%s", entry.At.UnixNano(), uuid.NewString())
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// List returns the most recent entries, newest first, via a reverse
// prefix scan. limit <= 0 means everything.
func (r AuditRepository) List(limit int) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("audit:")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the last possible audit key, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d audit entries reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var entry domain.AuditEntry
				if err := json.Unmarshal(value, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}
