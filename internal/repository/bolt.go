package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

var (
	recordsBucket = []byte("records")
	hashesBucket  = []byte("record_hashes")
)

// boltRecordRepository keeps msgpack-encoded records in one bucket and a
// content hash to ID index in another.
type boltRecordRepository struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenBolt opens (or creates) a single-file record store at path.
func OpenBolt(path string, logger *slog.Logger) (RecordRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening bolt store", "path", path)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening boltdb: %w", common.ErrDatabase, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(hashesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating buckets: %w", common.ErrDatabase, err)
	}
	return &boltRecordRepository{db: db, logger: logger}, nil
}

func (b *boltRecordRepository) Save(_ context.Context, rec *entity.StoredRecord) error {
	stamp(rec, time.Now())
	err := b.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		hashes := tx.Bucket(hashesBucket)
		key := rec.ID[:]

		if owner := hashes.Get([]byte(rec.ContentHash)); owner != nil && string(owner) != string(key) {
			return fmt.Errorf("content hash %s already stored", rec.ContentHash)
		}
		if prev := records.Get(key); prev != nil {
			var old entity.StoredRecord
			if err := msgpack.Unmarshal(prev, &old); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			rec.CreatedAt = old.CreatedAt
			if old.ContentHash != rec.ContentHash {
				if err := hashes.Delete([]byte(old.ContentHash)); err != nil {
					return err
				}
			}
		}

		data, err := msgpack.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := records.Put(key, data); err != nil {
			return err
		}
		return hashes.Put([]byte(rec.ContentHash), key)
	})
	if err != nil {
		b.logger.Error("failed to save record", "id", rec.ID, "content_hash", rec.ContentHash, "error", err)
		return fmt.Errorf("%w: save record: %w", common.ErrDatabase, err)
	}
	return nil
}

func (b *boltRecordRepository) Get(_ context.Context, id uuid.UUID) (*entity.StoredRecord, error) {
	var rec *entity.StoredRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = decodeAt(tx, id[:])
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: record %s", common.ErrNotFound, id)
	}
	return rec, nil
}

func (b *boltRecordRepository) FindByHash(_ context.Context, hash string) (*entity.StoredRecord, error) {
	var rec *entity.StoredRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(hashesBucket).Get([]byte(hash))
		if key == nil {
			return nil
		}
		var err error
		rec, err = decodeAt(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: record %s", common.ErrNotFound, hash)
	}
	return rec, nil
}

func decodeAt(tx *bbolt.Tx, key []byte) (*entity.StoredRecord, error) {
	data := tx.Bucket(recordsBucket).Get(key)
	if data == nil {
		return nil, nil
	}
	var rec entity.StoredRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling record: %w", common.ErrDatabase, err)
	}
	return &rec, nil
}

func (b *boltRecordRepository) List(_ context.Context, filter ListFilter) ([]*entity.StoredRecord, error) {
	out := make([]*entity.StoredRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, v []byte) error {
			var rec entity.StoredRecord
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			if filter.Status == "" || rec.Status == filter.Status {
				out = append(out, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (b *boltRecordRepository) Ping(context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(recordsBucket) == nil {
			return fmt.Errorf("%w: records bucket missing", common.ErrDatabase)
		}
		return nil
	})
}

func (b *boltRecordRepository) Close() error {
	b.logger.Info("closing bolt store")
	return b.db.Close()
}
