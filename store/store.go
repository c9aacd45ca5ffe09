// Package store persists completed TVDI runs in Postgres and caches
// rendered WPS responses in memcached. Both backends are optional; a
// store built without them turns the calls into no-ops so callers do
// not have to branch.
package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
)

type Run struct {
	GeometryID string
	SceneDate  time.Time
	PairIndex  int
	DryOffset  float64
	DrySlope   float64
	WetLSTMin  float64
	DryPixels  int
	WetPixels  int
	Status     string
	ErrorMsg   string
}

type TVDIStore struct {
	db *sql.DB
	mc *memcache.Client
}

func NewTVDIStore(dsn, mcURI string, pool, limit int) (*TVDIStore, error) {
	s := &TVDIStore{}

	if len(dsn) > 0 {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %v", err)
		}
		db.SetMaxIdleConns(pool)
		db.SetMaxOpenConns(limit)
		s.db = db
	}

	if len(mcURI) > 0 {
		// lazy connection; errors returned in .Get
		s.mc = memcache.New(mcURI)
	}

	return s, nil
}

func (s *TVDIStore) EnsureSchema() error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`create table if not exists tvdi_runs (
		id serial primary key,
		geometry_id text,
		scene_date timestamptz,
		pair_index integer,
		dry_offset double precision,
		dry_slope double precision,
		wet_lst_min double precision,
		dry_pixels integer,
		wet_pixels integer,
		status text,
		error text,
		created_at timestamptz default now()
	)`)
	return err
}

// SaveRun records the outcome of one scene pair. Placeholders keep
// the inputs out of the SQL text.
func (s *TVDIStore) SaveRun(run *Run) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`insert into tvdi_runs (
			geometry_id, scene_date, pair_index,
			dry_offset, dry_slope, wet_lst_min,
			dry_pixels, wet_pixels, status, error
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		run.GeometryID,
		run.SceneDate,
		run.PairIndex,
		run.DryOffset,
		run.DrySlope,
		run.WetLSTMin,
		run.DryPixels,
		run.WetPixels,
		run.Status,
		run.ErrorMsg,
	)
	return err
}

// CacheKey hashes a request URI into a stable memcached key.
func CacheKey(uri string) string {
	buff := md5.Sum([]byte(uri))
	return hex.EncodeToString(buff[:])
}

func (s *TVDIStore) GetCached(key string) ([]byte, bool) {
	if s.mc == nil {
		return nil, false
	}
	cached, err := s.mc.Get(key)
	if err != nil {
		return nil, false
	}
	return cached.Value, true
}

func (s *TVDIStore) PutCached(key string, value []byte) {
	if s.mc == nil {
		return
	}
	// don't care about errors; memcache may not necessarily retain this anyway
	s.mc.Set(&memcache.Item{Key: key, Value: value})
}

func (s *TVDIStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
