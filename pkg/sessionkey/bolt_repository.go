package sessionkey

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("session_keys")

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sessionkey: CBOR encoder initialization failed: " + err.Error())
	}
}

// boltRecord is the stored form of a session key. Times are Unix nanoseconds.
type boltRecord struct {
	SessionKey []byte `cbor:"1,keyasint"`
	UserID     int64  `cbor:"2,keyasint"`
	DeviceID   int64  `cbor:"3,keyasint"`
	CreatedAt  int64  `cbor:"4,keyasint"`
	ExpiresAt  int64  `cbor:"5,keyasint"`
}

// BoltRepository stores session keys in a bbolt database. Each record carries
// its own expiry and expired records are removed when read.
type BoltRepository struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ Repository = (*BoltRepository)(nil)

// NewBoltRepository returns a Repository backed by db
func NewBoltRepository(db *bbolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating session key bucket: %w", err)
	}
	return &BoltRepository{db: db, now: time.Now}, nil
}

// OpenBoltRepository opens the bbolt database at path
func OpenBoltRepository(path string) (*BoltRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	repo, err := NewBoltRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func recordKey(userID int64) []byte {
	return []byte("session:" + strconv.FormatInt(userID, 10))
}

func (r *BoltRepository) Save(ctx context.Context, key SessionKey, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	data, err := encMode.Marshal(boltRecord{
		SessionKey: key.SessionKey,
		UserID:     key.UserID,
		DeviceID:   key.DeviceID,
		CreatedAt:  key.CreatedAt.UnixNano(),
		ExpiresAt:  r.now().Add(ttl).UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encoding session key: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(recordKey(key.UserID), data)
	})
}

func (r *BoltRepository) FindByUserID(ctx context.Context, userID int64) (SessionKey, error) {
	var rec boltRecord
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get(recordKey(userID))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &rec)
	})
	if err != nil {
		return SessionKey{}, fmt.Errorf("reading session key: %w", err)
	}
	if !found {
		return SessionKey{}, ErrNotFound
	}

	if r.now().UnixNano() >= rec.ExpiresAt {
		if err := r.deleteExpired(userID); err != nil {
			slog.Warn("Failed to evict expired session key", "userID", userID, "err", err)
		}
		return SessionKey{}, ErrNotFound
	}

	return SessionKey{
		SessionKey: rec.SessionKey,
		UserID:     rec.UserID,
		DeviceID:   rec.DeviceID,
		CreatedAt:  time.Unix(0, rec.CreatedAt).UTC(),
	}, nil
}

// deleteExpired removes the record only if it is still expired, so a key
// saved concurrently after the read is kept
func (r *BoltRepository) deleteExpired(userID int64) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get(recordKey(userID))
		if data == nil {
			return nil
		}
		var rec boltRecord
		if err := cbor.Unmarshal(data, &rec); err != nil {
			return err
		}
		if r.now().UnixNano() < rec.ExpiresAt {
			return nil
		}
		return b.Delete(recordKey(userID))
	})
}

func (r *BoltRepository) Delete(ctx context.Context, userID int64) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(recordKey(userID))
	})
}
