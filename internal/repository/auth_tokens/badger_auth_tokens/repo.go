package badger_auth_tokens

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/auth_tokens"
	"github.com/prometheus/client_golang/prometheus"
)

var _ auth_tokens.Repository = &badgerAuthTokens{}

const keyPrefix = "auth_token/"

type badgerAuthTokens struct {
	db      *badger.DB
	metrics *metrics
}

// New stores tokens in db. Entries carry a badger TTL up to the token end
// time, so the store drops them even if nobody evicts.
func New(db *badger.DB) *badgerAuthTokens {
	return &badgerAuthTokens{
		db:      db,
		metrics: newMetrics(db),
	}
}

func (repo *badgerAuthTokens) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *badgerAuthTokens) observe(resErr *error) func(time.Time) {
	return func(ts time.Time) {
		repo.metrics.requestsCnt.Inc()
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch {
		case *resErr == nil:
			repo.metrics.successProcessCnt.Inc()
		case model.CodeOf(*resErr) == model.CodeNotFound:
			repo.metrics.keyMissesCnt.Inc()
			fallthrough
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}
}

func (repo *badgerAuthTokens) Save(tokens ...model.AuthTokenRole) (resErr error) {
	defer repo.observe(&resErr)(time.Now())

	if err := repo.db.Update(func(txn *badger.Txn) error {
		for _, t := range tokens {
			if t.Token == "" {
				return model.NewError(model.CodeParameter, "empty token value")
			}

			buf := bytes.NewBuffer(nil)
			if err := gob.
				NewEncoder(buf).
				Encode(t); err != nil {
				return fmt.Errorf("encoding gob: %w", err)
			}

			e := badger.NewEntry([]byte(keyPrefix+t.Token), buf.Bytes())
			if ttl := time.Until(t.EndTime); ttl > 0 {
				e = e.WithTTL(ttl)
			}
			if err := txn.SetEntry(e); err != nil {
				return fmt.Errorf("setting token to db: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}
	return nil
}

func (repo *badgerAuthTokens) Get(token string) (res model.AuthTokenRole, resErr error) {
	defer repo.observe(&resErr)(time.Now())

	if err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + token))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return model.NewError(model.CodeNotFound, "token not found")
			}
			return fmt.Errorf("getting item: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := gob.
				NewDecoder(bytes.NewBuffer(val)).
				Decode(&res); err != nil {
				return fmt.Errorf("decoding gob: %w", err)
			}
			return nil
		})
	}); err != nil {
		return model.AuthTokenRole{}, fmt.Errorf("reading from db: %w", err)
	}

	return res, nil
}

func (repo *badgerAuthTokens) Remove(tokens ...string) (resErr error) {
	defer repo.observe(&resErr)(time.Now())

	if err := repo.db.Update(func(txn *badger.Txn) error {
		for _, t := range tokens {
			if err := txn.Delete([]byte(keyPrefix + t)); err != nil {
				return fmt.Errorf("deleting token: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing del txn: %w", err)
	}
	return nil
}

func (repo *badgerAuthTokens) GetAll() (res []model.AuthTokenRole, resErr error) {
	defer repo.observe(&resErr)(time.Now())

	res = []model.AuthTokenRole{}
	prefix := []byte(keyPrefix)

	if err := repo.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			t := model.AuthTokenRole{}
			if err := it.Item().Value(func(val []byte) error {
				if err := gob.
					NewDecoder(bytes.NewBuffer(val)).
					Decode(&t); err != nil {
					return fmt.Errorf("decoding gob: %w", err)
				}
				return nil
			}); err != nil {
				return fmt.Errorf("getting value: %w", err)
			}
			res = append(res, t)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("performing view txn: %w", err)
	}

	return res, nil
}
