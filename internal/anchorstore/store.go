// Package anchorstore persists committed spatial anchors and per-model preset
// defaults in a local sqlite database. All access flows through a single
// connection, so concurrent callers are serialized by the database handle.
package anchorstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/spatialmath"
	"google.golang.org/protobuf/encoding/protojson"
	_ "modernc.org/sqlite"

	"github.com/russellmiller49/AirwayVision/anchoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAnchorNotFound is returned when no anchor with the requested id exists.
var ErrAnchorNotFound = errors.New("anchor not found")

// timeLayout keeps the fractional seconds fixed width so the textual
// created_at column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoPresetDefault is returned when a model has no saved preset default.
var ErrNoPresetDefault = errors.New("no preset default for model")

// StoredAnchor is a persisted anchor row joined back to its model.
type StoredAnchor struct {
	ModelID string
	Anchor  anchoring.SpatialAnchor
}

// Store is the anchor database handle.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the anchor database at path and brings its
// schema up to date.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open anchor db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	// The migrate instance is not closed: closing it would close the
	// underlying connection.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SaveAnchor inserts the anchor for a model, replacing any prior row with the
// same id. Replacement matches the in-memory value-replacement lifecycle.
func (s *Store) SaveAnchor(modelID string, a anchoring.SpatialAnchor) error {
	pose, err := encodePose(a.Transform.Pose)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO anchors (id, model_id, name, preset, pose, scale, lighting, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, modelID, a.Name, a.Preset.String(), pose, a.Transform.Scale,
		a.Context.Lighting.String(), a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save anchor %s: %w", a.ID, err)
	}
	return nil
}

// GetAnchor loads one anchor by id.
func (s *Store) GetAnchor(id string) (StoredAnchor, error) {
	row := s.db.QueryRow(
		`SELECT id, model_id, name, preset, pose, scale, lighting, created_at
		 FROM anchors WHERE id = ?`, id)
	stored, err := scanAnchor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredAnchor{}, fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	return stored, err
}

// AnchorsForModel lists every anchor saved for a model, oldest first.
func (s *Store) AnchorsForModel(modelID string) ([]StoredAnchor, error) {
	rows, err := s.db.Query(
		`SELECT id, model_id, name, preset, pose, scale, lighting, created_at
		 FROM anchors WHERE model_id = ? ORDER BY created_at ASC`, modelID)
	if err != nil {
		return nil, fmt.Errorf("list anchors for %s: %w", modelID, err)
	}
	defer rows.Close()

	var anchors []StoredAnchor
	for rows.Next() {
		stored, err := scanAnchor(rows)
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return anchors, nil
}

// DeleteAnchor removes one anchor by id.
func (s *Store) DeleteAnchor(id string) error {
	res, err := s.db.Exec(`DELETE FROM anchors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete anchor %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	return nil
}

// SetPresetDefault records the preset a model should anchor with by default.
func (s *Store) SetPresetDefault(modelID string, preset anchoring.PlacementPreset) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO preset_defaults (model_id, preset, updated_at) VALUES (?, ?, ?)`,
		modelID, preset.String(), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save preset default for %s: %w", modelID, err)
	}
	return nil
}

// PresetDefault returns the saved default preset for a model.
func (s *Store) PresetDefault(modelID string) (anchoring.PlacementPreset, error) {
	var name string
	err := s.db.QueryRow(`SELECT preset FROM preset_defaults WHERE model_id = ?`, modelID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return anchoring.PresetFloating, fmt.Errorf("%w: %s", ErrNoPresetDefault, modelID)
	}
	if err != nil {
		return anchoring.PresetFloating, fmt.Errorf("load preset default for %s: %w", modelID, err)
	}
	preset, ok := anchoring.PresetFromString(name)
	if !ok {
		return anchoring.PresetFloating, fmt.Errorf("unknown preset %q for %s", name, modelID)
	}
	return preset, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnchor(row rowScanner) (StoredAnchor, error) {
	var (
		stored     StoredAnchor
		presetName string
		poseJSON   string
		lighting   string
		createdAt  string
	)
	err := row.Scan(
		&stored.Anchor.ID, &stored.ModelID, &stored.Anchor.Name, &presetName,
		&poseJSON, &stored.Anchor.Transform.Scale, &lighting, &createdAt,
	)
	if err != nil {
		return StoredAnchor{}, err
	}

	preset, ok := anchoring.PresetFromString(presetName)
	if !ok {
		return StoredAnchor{}, fmt.Errorf("anchor %s: unknown preset %q", stored.Anchor.ID, presetName)
	}
	stored.Anchor.Preset = preset

	pose, err := decodePose(poseJSON)
	if err != nil {
		return StoredAnchor{}, fmt.Errorf("anchor %s: %w", stored.Anchor.ID, err)
	}
	stored.Anchor.Transform.Pose = pose

	quality, ok := anchoring.LightingFromString(lighting)
	if !ok {
		return StoredAnchor{}, fmt.Errorf("anchor %s: unknown lighting %q", stored.Anchor.ID, lighting)
	}
	stored.Anchor.Context.Lighting = quality

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return StoredAnchor{}, fmt.Errorf("anchor %s: parse created_at: %w", stored.Anchor.ID, err)
	}
	stored.Anchor.CreatedAt = created
	return stored, nil
}

func encodePose(p spatialmath.Pose) (string, error) {
	if p == nil {
		p = spatialmath.NewZeroPose()
	}
	data, err := protojson.Marshal(spatialmath.PoseToProtobuf(p))
	if err != nil {
		return "", fmt.Errorf("marshal pose: %w", err)
	}
	return string(data), nil
}

func decodePose(s string) (spatialmath.Pose, error) {
	var pb commonpb.Pose
	if err := protojson.Unmarshal([]byte(s), &pb); err != nil {
		return nil, fmt.Errorf("parse pose: %w", err)
	}
	return spatialmath.NewPoseFromProtobuf(&pb), nil
}
