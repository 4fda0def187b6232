package datasets

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Annotation CSV layout. One row per (sample, instance). Rows of a sample
// keep their file order as annotation order. A non-empty split column adds
// the row's (instance, sample) pair to that prediction split; split rows are
// indexed in file order.
var annotationColumns = []string{
	"scene", "location", "sample_token", "timestamp", "instance_token", "category",
	"x", "y", "qw", "qx", "qy", "qz",
	"ego_x", "ego_y", "ego_qw", "ego_qx", "ego_qy", "ego_qz",
}

// Map CSV layout. One row per polygon vertex, vertices in file order.
var mapColumns = []string{"location", "layer", "polygon_id", "x", "y"}

// ImportStats reports what Import wrote.
type ImportStats struct {
	Scenes      int
	Samples     int
	Annotations int
	SplitRows   int
	Vertices    int
}

// Import loads every CSV file matching annotationsPattern and, when
// mapPattern is not empty, every file matching mapPattern into the scene
// database. The whole import runs in a single transaction.
func (s *SceneDB) Import(annotationsPattern, mapPattern string) (ImportStats, error) {
	var stats ImportStats
	annPaths, err := globCSV(annotationsPattern)
	if err != nil {
		return stats, err
	}
	var mapPaths []string
	if mapPattern != "" {
		if mapPaths, err = globCSV(mapPattern); err != nil {
			return stats, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	imp, err := newAnnotationImporter(tx)
	if err != nil {
		return stats, err
	}
	defer imp.close()

	for _, path := range annPaths {
		if err := imp.importFile(path, &stats); err != nil {
			return stats, fmt.Errorf("import %s: %w", path, err)
		}
	}
	for _, path := range mapPaths {
		if err := importMapFile(tx, path, &stats); err != nil {
			return stats, fmt.Errorf("import %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}
	s.invalidate()
	Logf("Imported %d scenes, %d samples, %d annotations, %d split rows, %d map vertices",
		stats.Scenes, stats.Samples, stats.Annotations, stats.SplitRows, stats.Vertices)
	return stats, nil
}

type annotationImporter struct {
	tx *sql.Tx

	insScene  *sql.Stmt
	insSample *sql.Stmt
	insAnn    *sql.Stmt
	insSplit  *sql.Stmt

	// sceneTokens maps scene names to their tokens, minting one when the
	// CSV carries no scene_token column.
	sceneTokens map[string]string
	// nextOrd is the next annotation order per sample token.
	nextOrd map[string]int
	// nextIdx is the next split index per split name.
	nextIdx map[string]int
}

func newAnnotationImporter(tx *sql.Tx) (*annotationImporter, error) {
	imp := &annotationImporter{
		tx:          tx,
		sceneTokens: make(map[string]string),
		nextOrd:     make(map[string]int),
		nextIdx:     make(map[string]int),
	}
	var err error
	if imp.insScene, err = tx.Prepare(
		`INSERT OR IGNORE INTO scene (token, name, location) VALUES (?, ?, ?)`); err != nil {
		return nil, fmt.Errorf("prepare scene insert: %w", err)
	}
	if imp.insSample, err = tx.Prepare(
		`INSERT OR IGNORE INTO sample (token, scene_token, timestamp, ego_x, ego_y, ego_qw, ego_qx, ego_qy, ego_qz)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return nil, fmt.Errorf("prepare sample insert: %w", err)
	}
	if imp.insAnn, err = tx.Prepare(
		`INSERT OR REPLACE INTO sample_annotation (sample_token, instance_token, category, ord, x, y, qw, qx, qy, qz)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return nil, fmt.Errorf("prepare annotation insert: %w", err)
	}
	if imp.insSplit, err = tx.Prepare(
		`INSERT OR IGNORE INTO prediction_split (idx, split, instance_token, sample_token) VALUES (?, ?, ?, ?)`); err != nil {
		return nil, fmt.Errorf("prepare split insert: %w", err)
	}

	// Continue numbering after rows already in the database.
	rows, err := tx.Query(`SELECT split, COUNT(*) FROM prediction_split GROUP BY split`)
	if err != nil {
		return nil, fmt.Errorf("count split rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var split string
		var n int
		if err := rows.Scan(&split, &n); err != nil {
			return nil, fmt.Errorf("scan split count: %w", err)
		}
		imp.nextIdx[split] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scenes, err := tx.Query(`SELECT name, token FROM scene`)
	if err != nil {
		return nil, fmt.Errorf("read scenes: %w", err)
	}
	defer scenes.Close()
	for scenes.Next() {
		var name, tok string
		if err := scenes.Scan(&name, &tok); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		imp.sceneTokens[name] = tok
	}
	if err := scenes.Err(); err != nil {
		return nil, err
	}

	ords, err := tx.Query(`SELECT sample_token, MAX(ord) + 1 FROM sample_annotation GROUP BY sample_token`)
	if err != nil {
		return nil, fmt.Errorf("read annotation order: %w", err)
	}
	defer ords.Close()
	for ords.Next() {
		var tok string
		var next int
		if err := ords.Scan(&tok, &next); err != nil {
			return nil, fmt.Errorf("scan annotation order: %w", err)
		}
		imp.nextOrd[tok] = next
	}
	return imp, ords.Err()
}

func (imp *annotationImporter) close() {
	for _, st := range []*sql.Stmt{imp.insScene, imp.insSample, imp.insAnn, imp.insSplit} {
		if st != nil {
			st.Close()
		}
	}
}

func (imp *annotationImporter) importFile(path string, stats *ImportStats) error {
	total, err := countCSVRows(path)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}
	Logf("Importing %d annotation rows from %s", total, path)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	colIndex, err := headerIndex(header, annotationColumns)
	if err != nil {
		return err
	}
	sceneTokCol, hasSceneTok := colIndex["scene_token"]
	splitCol, hasSplit := colIndex["split"]

	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", row, err)
		}
		get := func(col string) string { return strings.TrimSpace(record[colIndex[col]]) }

		sceneName := get("scene")
		sceneTok := ""
		if hasSceneTok {
			sceneTok = strings.TrimSpace(record[sceneTokCol])
		}
		if sceneTok == "" {
			if tok, ok := imp.sceneTokens[sceneName]; ok {
				sceneTok = tok
			} else {
				sceneTok = NewToken()
			}
		}
		if _, ok := imp.sceneTokens[sceneName]; !ok {
			imp.sceneTokens[sceneName] = sceneTok
			res, err := imp.insScene.Exec(sceneTok, sceneName, get("location"))
			if err != nil {
				return fmt.Errorf("row %d: insert scene: %w", row, err)
			}
			stats.Scenes += int(rowsAffected(res))
		}

		ts, err := parseInt64(get("timestamp"))
		if err != nil {
			return fmt.Errorf("row %d: failed to parse timestamp: %w", row, err)
		}
		nums := make(map[string]float64, 12)
		for _, col := range []string{"x", "y", "qw", "qx", "qy", "qz", "ego_x", "ego_y", "ego_qw", "ego_qx", "ego_qy", "ego_qz"} {
			v, err := parseFloat64(get(col))
			if err != nil {
				return fmt.Errorf("row %d: failed to parse %s: %w", row, col, err)
			}
			nums[col] = v
		}

		sampleTok := get("sample_token")
		instTok := get("instance_token")
		if sampleTok == "" || instTok == "" {
			return fmt.Errorf("row %d: sample_token and instance_token are required", row)
		}
		res, err := imp.insSample.Exec(sampleTok, sceneTok, ts,
			nums["ego_x"], nums["ego_y"], nums["ego_qw"], nums["ego_qx"], nums["ego_qy"], nums["ego_qz"])
		if err != nil {
			return fmt.Errorf("row %d: insert sample: %w", row, err)
		}
		stats.Samples += int(rowsAffected(res))

		ord := imp.nextOrd[sampleTok]
		imp.nextOrd[sampleTok] = ord + 1
		if _, err := imp.insAnn.Exec(sampleTok, instTok, get("category"), ord,
			nums["x"], nums["y"], nums["qw"], nums["qx"], nums["qy"], nums["qz"]); err != nil {
			return fmt.Errorf("row %d: insert annotation: %w", row, err)
		}
		stats.Annotations++

		if hasSplit {
			if split := strings.TrimSpace(record[splitCol]); split != "" {
				// Rows already in the split are skipped without using up an index.
				idx := imp.nextIdx[split]
				res, err := imp.insSplit.Exec(idx, split, instTok, sampleTok)
				if err != nil {
					return fmt.Errorf("row %d: insert split row: %w", row, err)
				}
				if rowsAffected(res) == 1 {
					imp.nextIdx[split] = idx + 1
					stats.SplitRows++
				}
			}
		}
	}
	return nil
}

func importMapFile(tx *sql.Tx, path string, stats *ImportStats) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	colIndex, err := headerIndex(header, mapColumns)
	if err != nil {
		return err
	}

	ins, err := tx.Prepare(
		`INSERT OR REPLACE INTO map_polygon (location, layer, polygon_id, seq, x, y) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare map insert: %w", err)
	}
	defer ins.Close()

	seq := make(map[[3]string]int)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", row, err)
		}
		get := func(col string) string { return strings.TrimSpace(record[colIndex[col]]) }
		x, err := parseFloat64(get("x"))
		if err != nil {
			return fmt.Errorf("row %d: failed to parse x: %w", row, err)
		}
		y, err := parseFloat64(get("y"))
		if err != nil {
			return fmt.Errorf("row %d: failed to parse y: %w", row, err)
		}
		key := [3]string{get("location"), get("layer"), get("polygon_id")}
		if _, err := ins.Exec(key[0], key[1], key[2], seq[key], x, y); err != nil {
			return fmt.Errorf("row %d: insert vertex: %w", row, err)
		}
		seq[key]++
		stats.Vertices++
	}
	return nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
