// Package history persists the append-only trade log in an embedded Badger
// store so order outcomes survive restarts.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/AlainDevs/autoTrade/internal/trading"
)

var keyPrefix = []byte("trade/")

// Store appends trade records under monotonically increasing keys and reads
// them back newest-first. It satisfies trading.Recorder.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	log zerolog.Logger
}

// Open opens (or creates) the store at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte("trade-seq"), 64)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, seq: seq, log: log}, nil
}

// Close releases the sequence lease and the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			s.log.Warn().Err(err).Msg("sequence release failed")
		}
	}
	return s.db.Close()
}

// Append persists one record.
func (s *Store) Append(rec trading.TradeRecord) error {
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], n)

	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Record satisfies trading.Recorder. Persistence failures are logged and
// swallowed so history never blocks an order outcome.
func (s *Store) Record(rec trading.TradeRecord) {
	if err := s.Append(rec); err != nil {
		s.log.Error().Err(err).Str("coin", rec.Coin).Msg("trade record not persisted")
	}
}

// Filter constrains a history query. A zero Limit means no cap; an empty
// Coin matches every record.
type Filter struct {
	Limit int
	Coin  string
}

// Stats aggregates the stored trade log.
type Stats struct {
	Trades    int            `json:"trades"`
	Opens     int            `json:"opens"`
	Closes    int            `json:"closes"`
	Filled    int            `json:"filled"`
	VolumeUSD float64        `json:"volume_usd"`
	ByCoin    map[string]int `json:"by_coin"`
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]trading.TradeRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.Query(Filter{Limit: n})
}

// Query returns matching records, newest first.
func (s *Store) Query(f Filter) ([]trading.TradeRecord, error) {
	var out []trading.TradeRecord
	err := s.scan(func(rec trading.TradeRecord) bool {
		if f.Coin != "" && rec.Coin != f.Coin {
			return true
		}
		out = append(out, rec)
		return f.Limit <= 0 || len(out) < f.Limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats walks the whole log and aggregates it.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByCoin: make(map[string]int)}
	err := s.scan(func(rec trading.TradeRecord) bool {
		stats.Trades++
		stats.ByCoin[rec.Coin]++
		switch rec.Action {
		case "open":
			stats.Opens++
		case "close":
			stats.Closes++
		}
		if rec.Outcome == "filled" {
			stats.Filled++
			stats.VolumeUSD += rec.SizeUSD
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// scan visits records newest-first until fn returns false.
func (s *Store) scan(fn func(trading.TradeRecord) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the highest possible trade key.
		seek := make([]byte, len(keyPrefix)+8)
		copy(seek, keyPrefix)
		for i := len(keyPrefix); i < len(seek); i++ {
			seek[i] = 0xff
		}
		for it.Seek(seek); it.ValidForPrefix(keyPrefix); it.Next() {
			more := true
			err := it.Item().Value(func(val []byte) error {
				var rec trading.TradeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				more = fn(rec)
				return nil
			})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}
