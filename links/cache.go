package links

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// listingCache stores the set of listed symbols per exchange in an in-memory
// buntdb instance. Entries expire on their own, so a stale exchange simply
// looks empty and triggers a refetch.
type listingCache struct {
	db  *buntdb.DB
	ttl time.Duration
}

func newListingCache(ttl time.Duration) (*listingCache, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open listing cache: %w", err)
	}
	return &listingCache{db: db, ttl: ttl}, nil
}

func symbolKey(exchange, symbol string) string {
	return fmt.Sprintf("listing:%s:%s", exchange, symbol)
}

func freshKey(exchange string) string {
	return fmt.Sprintf("fresh:%s", exchange)
}

// Store replaces the listing set for an exchange and marks it fresh. All
// entries share the cache TTL so the marker and the symbols expire together.
func (c *listingCache) Store(exchange string, symbols []string) error {
	opts := &buntdb.SetOptions{Expires: true, TTL: c.ttl}

	return c.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(freshKey(exchange), time.Now().Format(time.RFC3339), opts); err != nil {
			return err
		}
		for _, symbol := range symbols {
			if _, _, err := tx.Set(symbolKey(exchange, symbol), "1", opts); err != nil {
				return err
			}
		}
		return nil
	})
}

// Lookup reports whether symbol is cached as listed on exchange, and whether
// the exchange listing set is still fresh. A stale set means the caller must
// refetch before trusting a negative answer.
func (c *listingCache) Lookup(exchange, symbol string) (listed, fresh bool, err error) {
	err = c.db.View(func(tx *buntdb.Tx) error {
		if _, ferr := tx.Get(freshKey(exchange)); ferr == nil {
			fresh = true
		} else if ferr != buntdb.ErrNotFound {
			return ferr
		}

		if _, serr := tx.Get(symbolKey(exchange, symbol)); serr == nil {
			listed = true
		} else if serr != buntdb.ErrNotFound {
			return serr
		}
		return nil
	})
	return listed, fresh, err
}

func (c *listingCache) Close() error { return c.db.Close() }
