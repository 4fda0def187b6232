package datasets

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	_ "modernc.org/sqlite"

	"github.com/Noofbiz/trajviz/geom"
)

// Options controls how SceneDB builds dataset examples.
type Options struct {
	// Split is the prediction split the dataset indexes into ("val", "train", ...).
	Split string

	// HistorySeconds and FutureSeconds bound the target and neighbour
	// histories and the ground-truth future placed in Frame.
	HistorySeconds float64
	FutureSeconds  float64

	// SampleRate is the annotation rate in Hz; histories hold
	// HistorySeconds*SampleRate past points plus the current one.
	SampleRate float64

	MaxVehicles    int
	MaxPedestrians int

	// CacheTTL and CacheMaxEntries configure the lookup cache.
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// DefaultOptions returns the options used by Open when none are given.
func DefaultOptions() Options {
	return Options{
		Split:           "val",
		HistorySeconds:  2,
		FutureSeconds:   6,
		SampleRate:      2,
		MaxVehicles:     8,
		MaxPedestrians:  4,
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 2000,
	}
}

// timestampTolerance is added to past/future windows so that samples
// recorded slightly later than the nominal rate are still included. Sample
// timestamps are in microseconds.
const timestampTolerance = 100_000

// SceneDB is the SQLite-backed scene database.
type SceneDB struct {
	db   *sql.DB
	opts Options

	cache *lookupCache

	lenOnce sync.Once
	length  int
	lenErr  error
}

// Open opens (creating if needed) the scene database at path and applies the
// schema migrations.
func Open(path string, opts Options) (*SceneDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open scene db %s", path)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	def := DefaultOptions()
	if opts.Split == "" {
		opts.Split = def.Split
	}
	if opts.HistorySeconds <= 0 {
		opts.HistorySeconds = def.HistorySeconds
	}
	if opts.FutureSeconds <= 0 {
		opts.FutureSeconds = def.FutureSeconds
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.MaxVehicles <= 0 {
		opts.MaxVehicles = def.MaxVehicles
	}
	if opts.MaxPedestrians <= 0 {
		opts.MaxPedestrians = def.MaxPedestrians
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.CacheMaxEntries <= 0 {
		opts.CacheMaxEntries = def.CacheMaxEntries
	}

	return &SceneDB{
		db:    db,
		opts:  opts,
		cache: newLookupCache(opts.CacheTTL, opts.CacheMaxEntries),
	}, nil
}

// Close closes the underlying database.
func (s *SceneDB) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle (used by Import).
func (s *SceneDB) DB() *sql.DB {
	return s.db
}

// Options returns the effective options.
func (s *SceneDB) Options() Options {
	return s.opts
}

// SetCacheTTL changes how long cached lookups stay valid.
func (s *SceneDB) SetCacheTTL(d time.Duration) {
	s.cache.setTTL(d)
}

// SetCacheMaxEntries changes the lookup cache capacity.
func (s *SceneDB) SetCacheMaxEntries(n int) {
	s.cache.setMaxEntries(n)
}

// invalidate drops every cached value and the cached length. It is called
// after imports.
func (s *SceneDB) invalidate() {
	s.cache.clear()
	s.lenOnce = sync.Once{}
}

// Len returns the number of examples in the configured prediction split.
// It returns 0 if the split cannot be counted.
func (s *SceneDB) Len() int {
	s.lenOnce.Do(func() {
		s.lenErr = s.db.QueryRow(
			`SELECT COUNT(*) FROM prediction_split WHERE split = ?`, s.opts.Split,
		).Scan(&s.length)
		if s.lenErr != nil {
			Logf("warning: count prediction split %q: %v", s.opts.Split, s.lenErr)
		}
	})
	if s.lenErr != nil {
		return 0
	}
	return s.length
}

// SplitEntry returns the instance and sample tokens of dataset index idx.
func (s *SceneDB) SplitEntry(idx int) (instanceToken, sampleToken string, err error) {
	if n := s.Len(); idx < 0 || idx >= n {
		return "", "", errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", idx, n)
	}
	err = s.db.QueryRow(
		`SELECT instance_token, sample_token FROM prediction_split WHERE split = ? AND idx = ?`,
		s.opts.Split, idx,
	).Scan(&instanceToken, &sampleToken)
	if err == sql.ErrNoRows {
		return "", "", errors.Wrapf(ErrIndexOutOfRange, "index %d missing from split %q", idx, s.opts.Split)
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "read split entry %d", idx)
	}
	return instanceToken, sampleToken, nil
}

type sampleRecord struct {
	token      string
	sceneToken string
	timestamp  int64
	ego        geom.Pose
}

func (s *SceneDB) sample(token string) (sampleRecord, error) {
	key := cacheKey{kind: "sample", token: token}
	if v, ok := s.cache.get(key); ok {
		return v.(sampleRecord), nil
	}
	rec := sampleRecord{token: token}
	var q quat.Number
	err := s.db.QueryRow(
		`SELECT scene_token, timestamp, ego_x, ego_y, ego_qw, ego_qx, ego_qy, ego_qz
		   FROM sample WHERE token = ?`, token,
	).Scan(&rec.sceneToken, &rec.timestamp,
		&rec.ego.Translation.X, &rec.ego.Translation.Y,
		&q.Real, &q.Imag, &q.Jmag, &q.Kmag)
	if err == sql.ErrNoRows {
		return sampleRecord{}, errors.Wrapf(ErrNotFound, "sample %s", token)
	}
	if err != nil {
		return sampleRecord{}, errors.Wrapf(err, "read sample %s", token)
	}
	rec.ego.Rotation = q
	s.cache.set(key, rec)
	return rec, nil
}

// EgoPose returns the pose of the ego vehicle at the sample.
func (s *SceneDB) EgoPose(sampleToken string) (geom.Pose, error) {
	rec, err := s.sample(sampleToken)
	if err != nil {
		return geom.Pose{}, err
	}
	return rec.ego, nil
}

// SceneForSample resolves the scene a sample was recorded in.
func (s *SceneDB) SceneForSample(sampleToken string) (Scene, error) {
	rec, err := s.sample(sampleToken)
	if err != nil {
		return Scene{}, err
	}
	sc := Scene{Token: rec.sceneToken}
	err = s.db.QueryRow(`SELECT name, location FROM scene WHERE token = ?`, rec.sceneToken).
		Scan(&sc.Name, &sc.Location)
	if err == sql.ErrNoRows {
		return Scene{}, errors.Wrapf(ErrNotFound, "scene %s of sample %s", rec.sceneToken, sampleToken)
	}
	if err != nil {
		return Scene{}, errors.Wrapf(err, "read scene %s", rec.sceneToken)
	}
	return sc, nil
}

// AnnotationsForSample returns the annotations of a sample in their stored
// order.
func (s *SceneDB) AnnotationsForSample(sampleToken string) ([]Annotation, error) {
	key := cacheKey{kind: "annotations", token: sampleToken}
	if v, ok := s.cache.get(key); ok {
		return append([]Annotation(nil), v.([]Annotation)...), nil
	}
	if _, err := s.sample(sampleToken); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT instance_token, category, ord, x, y, qw, qx, qy, qz
		   FROM sample_annotation WHERE sample_token = ? ORDER BY ord`, sampleToken)
	if err != nil {
		return nil, errors.Wrapf(err, "query annotations of %s", sampleToken)
	}
	defer rows.Close()

	var anns []Annotation
	for rows.Next() {
		a := Annotation{SampleToken: sampleToken}
		if err := rows.Scan(&a.InstanceToken, &a.Category, &a.Order,
			&a.Translation.X, &a.Translation.Y,
			&a.Rotation.Real, &a.Rotation.Imag, &a.Rotation.Jmag, &a.Rotation.Kmag); err != nil {
			return nil, errors.Wrap(err, "scan annotation")
		}
		anns = append(anns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate annotations")
	}
	s.cache.set(key, anns)
	return append([]Annotation(nil), anns...), nil
}

// PastForSample returns, for every instance annotated at the sample, its
// positions during the preceding seconds, most recent first. Instances
// without recorded past map to an empty slice.
func (s *SceneDB) PastForSample(sampleToken string, seconds float64) (map[string][]r2.Vec, error) {
	return s.trajectories(sampleToken, seconds, false)
}

// FutureForSample returns, for every instance annotated at the sample, its
// positions during the following seconds in chronological order.
func (s *SceneDB) FutureForSample(sampleToken string, seconds float64) (map[string][]r2.Vec, error) {
	return s.trajectories(sampleToken, seconds, true)
}

func (s *SceneDB) trajectories(sampleToken string, seconds float64, future bool) (map[string][]r2.Vec, error) {
	kind := "past"
	if future {
		kind = "future"
	}
	key := cacheKey{kind: kind, token: sampleToken, seconds: seconds}
	if v, ok := s.cache.get(key); ok {
		return cloneTrajectories(v.(map[string][]r2.Vec)), nil
	}

	rec, err := s.sample(sampleToken)
	if err != nil {
		return nil, err
	}
	window := int64(seconds*1e6) + timestampTolerance
	var lo, hi int64
	order := "DESC"
	if future {
		lo, hi = rec.timestamp+1, rec.timestamp+window
		order = "ASC"
	} else {
		lo, hi = rec.timestamp-window, rec.timestamp-1
	}

	out := make(map[string][]r2.Vec)
	current, err := s.AnnotationsForSample(sampleToken)
	if err != nil {
		return nil, err
	}
	for _, a := range current {
		out[a.InstanceToken] = []r2.Vec{}
	}

	query := fmt.Sprintf(
		`SELECT a.instance_token, a.x, a.y
		   FROM sample_annotation a
		   JOIN sample s ON s.token = a.sample_token
		  WHERE s.scene_token = ? AND s.timestamp BETWEEN ? AND ?
		    AND a.instance_token IN (SELECT instance_token FROM sample_annotation WHERE sample_token = ?)
		  ORDER BY a.instance_token, s.timestamp %s`, order)
	rows, err := s.db.Query(query, rec.sceneToken, lo, hi, sampleToken)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s of %s", kind, sampleToken)
	}
	defer rows.Close()
	for rows.Next() {
		var tok string
		var p r2.Vec
		if err := rows.Scan(&tok, &p.X, &p.Y); err != nil {
			return nil, errors.Wrapf(err, "scan %s position", kind)
		}
		out[tok] = append(out[tok], p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s positions", kind)
	}
	s.cache.set(key, out)
	return cloneTrajectories(out), nil
}

// MapPolygons returns the polygons of the given layers at a location that
// intersect the patch. Polygons are ordered by layer (in the order asked
// for) and then by id.
func (s *SceneDB) MapPolygons(location string, patch geom.Patch, layers []string) ([]MapPolygon, error) {
	if len(layers) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(layers)), ",")
	args := make([]interface{}, 0, len(layers)+1)
	args = append(args, location)
	for _, l := range layers {
		args = append(args, l)
	}
	rows, err := s.db.Query(
		`SELECT layer, polygon_id, x, y FROM map_polygon
		  WHERE location = ? AND layer IN (`+placeholders+`)
		  ORDER BY layer, polygon_id, seq`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query map polygons of %s", location)
	}
	defer rows.Close()

	byLayer := make(map[string][]MapPolygon)
	var cur *MapPolygon
	for rows.Next() {
		var layer, id string
		var v r2.Vec
		if err := rows.Scan(&layer, &id, &v.X, &v.Y); err != nil {
			return nil, errors.Wrap(err, "scan map polygon vertex")
		}
		if cur == nil || cur.Layer != layer || cur.ID != id {
			byLayer[layer] = append(byLayer[layer], MapPolygon{Layer: layer, ID: id})
			polys := byLayer[layer]
			cur = &polys[len(polys)-1]
		}
		cur.Vertices = append(cur.Vertices, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate map polygons")
	}

	var out []MapPolygon
	for _, l := range layers {
		for _, p := range byLayer[l] {
			if b, ok := geom.Bounds(p.Vertices); ok && b.Intersects(patch) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func cloneTrajectories(m map[string][]r2.Vec) map[string][]r2.Vec {
	out := make(map[string][]r2.Vec, len(m))
	for k, v := range m {
		out[k] = append([]r2.Vec{}, v...)
	}
	return out
}
