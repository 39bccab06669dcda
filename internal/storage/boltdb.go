package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/compression"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// itemsBucket holds item metadata, contentBucket the payloads. Listing
	// queries read only itemsBucket.
	itemsBucket   = "items"
	contentBucket = "content"
)

// ErrNotFound is returned when no item has the requested id.
var ErrNotFound = errors.New("item not found")

// Predicate selects items in FetchWhere and Count.
type Predicate func(*types.ClipboardItem) bool

// Store is the history store adapter. Implementations serialize every call;
// the store is the single point of mutual exclusion for history mutations.
type Store interface {
	Insert(item *types.ClipboardItem) error
	Delete(id string) error
	DeleteItems(ids []string) (int, error)
	SetPinned(id string, pinned bool) error
	TogglePin(id string) (bool, error)
	// FetchAll returns items ordered by timestamp, newest first, without
	// their Content. limit <= 0 means all.
	FetchAll(limit int) ([]*types.ClipboardItem, error)
	// FetchByID returns one item including its Content.
	FetchByID(id string) (*types.ClipboardItem, error)
	// FetchWhere returns matching items ordered newest first, without their
	// Content.
	FetchWhere(pred Predicate, limit int) ([]*types.ClipboardItem, error)
	Count(pred Predicate) (int, error)
	Close() error
}

// BoltStorage implements Store on top of BoltDB.
type BoltStorage struct {
	mu     sync.Mutex
	db     *bbolt.DB
	logger *zap.Logger
}

// StorageConfig holds configuration for BoltStorage initialization
type StorageConfig struct {
	DBPath string
	Logger *zap.Logger
}

// record is the on-disk metadata of an item. Its payload is stored under the
// same key in contentBucket.
type record struct {
	types.ClipboardItem
	Compressed bool `json:"compressed,omitempty"`
}

// NewBoltStorage opens (or creates) the database at config.DBPath.
func NewBoltStorage(config StorageConfig) (*BoltStorage, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(config.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{itemsBucket, contentBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Debug("BoltStorage initialized", zap.String("db_path", config.DBPath))

	return &BoltStorage{db: db, logger: logger}, nil
}

// Insert persists a new item.
func (s *BoltStorage) Insert(item *types.ClipboardItem) error {
	if item == nil || item.ID == "" {
		return errors.New("item without id")
	}
	meta, content, err := encode(item)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		if b.Get([]byte(item.ID)) != nil {
			return fmt.Errorf("item %s already exists", item.ID)
		}
		if err := tx.Bucket([]byte(contentBucket)).Put([]byte(item.ID), content); err != nil {
			return err
		}
		return b.Put([]byte(item.ID), meta)
	})
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	s.logger.Debug("Item inserted",
		zap.String("id", item.ID),
		zap.String("type", string(item.ContentType)),
		zap.Int("size", len(item.Content)))
	return nil
}

// Delete removes one item.
func (s *BoltStorage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(itemsBucket)).Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return deleteItem(tx, id)
	})
}

// DeleteItems removes every listed item in one transaction and returns how
// many existed.
func (s *BoltStorage) DeleteItems(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				continue
			}
			if err := deleteItem(tx, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	s.logger.Debug("Items deleted", zap.Int("deleted_items", deleted))
	return deleted, nil
}

// SetPinned sets the pin flag of an item.
func (s *BoltStorage) SetPinned(id string, pinned bool) error {
	_, err := s.updatePin(id, func(bool) bool { return pinned })
	return err
}

// TogglePin flips the pin flag and returns the new value.
func (s *BoltStorage) TogglePin(id string) (bool, error) {
	return s.updatePin(id, func(current bool) bool { return !current })
}

func (s *BoltStorage) updatePin(id string, next func(bool) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pinned bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}

		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal item: %w", err)
		}
		rec.IsPinned = next(rec.IsPinned)
		pinned = rec.IsPinned

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		return b.Put([]byte(id), encoded)
	})
	return pinned, err
}

// FetchAll returns items newest first.
func (s *BoltStorage) FetchAll(limit int) ([]*types.ClipboardItem, error) {
	return s.FetchWhere(nil, limit)
}

// FetchByID returns one item or ErrNotFound.
func (s *BoltStorage) FetchByID(id string) (*types.ClipboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item *types.ClipboardItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(itemsBucket)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		var err error
		item, err = decode(v, tx.Bucket([]byte(contentBucket)).Get([]byte(id)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FetchWhere returns the items accepted by pred, newest first. A nil pred
// accepts everything.
func (s *BoltStorage) FetchWhere(pred Predicate, limit int) ([]*types.ClipboardItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*types.ClipboardItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(itemsBucket)).ForEach(func(k, v []byte) error {
			item, err := decode(v, nil)
			if err != nil {
				s.logger.Warn("Skipping unreadable item", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			if pred == nil || pred(item) {
				items = append(items, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}

	SortNewestFirst(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Count returns how many items pred accepts.
func (s *BoltStorage) Count(pred Predicate) (int, error) {
	if pred == nil {
		s.mu.Lock()
		defer s.mu.Unlock()

		var n int
		err := s.db.View(func(tx *bbolt.Tx) error {
			n = tx.Bucket([]byte(itemsBucket)).Stats().KeyN
			return nil
		})
		return n, err
	}

	items, err := s.FetchWhere(pred, 0)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Close closes the database.
func (s *BoltStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SortNewestFirst orders items by timestamp descending, ties broken by id.
func SortNewestFirst(items []*types.ClipboardItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID > items[j].ID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}

// NotPinned selects unpinned items.
func NotPinned(item *types.ClipboardItem) bool { return !item.IsPinned }

// OfType selects items of the given content type.
func OfType(t types.ContentType) Predicate {
	return func(item *types.ClipboardItem) bool { return item.ContentType == t }
}

func deleteItem(tx *bbolt.Tx, id string) error {
	if err := tx.Bucket([]byte(contentBucket)).Delete([]byte(id)); err != nil {
		return err
	}
	return tx.Bucket([]byte(itemsBucket)).Delete([]byte(id))
}

// encode splits item into its metadata record and its stored payload.
func encode(item *types.ClipboardItem) ([]byte, []byte, error) {
	data, compressed, err := compression.Compress(item.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress content: %w", err)
	}

	rec := record{ClipboardItem: *item, Compressed: compressed}
	rec.Content = nil
	rec.Size = len(item.Content)

	meta, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return meta, data, nil
}

// decode rebuilds an item from its metadata. A nil payload leaves Content
// empty.
func decode(meta, payload []byte) (*types.ClipboardItem, error) {
	var rec record
	if err := json.Unmarshal(meta, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	item := rec.ClipboardItem
	if payload == nil {
		return &item, nil
	}

	// bbolt values are only valid inside the transaction
	content, err := compression.Decompress(bytes.Clone(payload), rec.Compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress item %s: %w", rec.ID, err)
	}
	item.Content = content
	return &item, nil
}
