// Package store persists extracted geometry and traversal orders in PostgreSQL.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

// ErrNotFound is returned when a video or order is not stored.
var ErrNotFound = errors.New("not found")

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			frame_count INT NOT NULL,
			no_face_count INT NOT NULL,
			extracted_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS frame_geometry (
			video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			has_face BOOLEAN NOT NULL,
			points DOUBLE PRECISION[] NOT NULL,
			PRIMARY KEY (video_id, frame_index)
		);
		CREATE TABLE IF NOT EXISTS oval_orders (
			fingerprint TEXT PRIMARY KEY,
			edges INT[] NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveVideo replaces the stored geometry of a video.
func (s *Store) SaveVideo(ctx context.Context, id, source string, v *geometry.Video) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Re-extraction replaces everything stored for the video
	if _, err := tx.Exec(ctx, "DELETE FROM videos WHERE id = $1", id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO videos (id, source, frame_count, no_face_count)
		VALUES ($1, $2, $3, $4)
	`, id, source, v.Len(), len(v.NoFace)); err != nil {
		return err
	}

	noFace := make(map[int]bool, len(v.NoFace))
	for _, i := range v.NoFace {
		noFace[i] = true
	}

	rows := make([][]any, 0, v.Len())
	for i := range v.Frames {
		rows = append(rows, []any{id, i, !noFace[i], flatten(&v.Frames[i])})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"frame_geometry"},
		[]string{"video_id", "frame_index", "has_face", "points"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy frame geometry: %w", err)
	}
	if int(n) != v.Len() {
		return fmt.Errorf("copied %d of %d frames", n, v.Len())
	}

	return tx.Commit(ctx)
}

// LoadVideo reads a video's geometry back in frame order.
func (s *Store) LoadVideo(ctx context.Context, id string) (*geometry.Video, error) {
	var frameCount int
	err := s.conn.QueryRow(ctx, "SELECT frame_count FROM videos WHERE id = $1", id).Scan(&frameCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, `
		SELECT frame_index, has_face, points FROM frame_geometry
		WHERE video_id = $1 ORDER BY frame_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	v := geometry.NewVideo(frameCount)
	for rows.Next() {
		var (
			index   int
			hasFace bool
			points  []float64
		)
		if err := rows.Scan(&index, &hasFace, &points); err != nil {
			return nil, err
		}
		if index != v.Len() {
			return nil, fmt.Errorf("video %s: frame %d missing", id, v.Len())
		}
		f, err := unflatten(points)
		if err != nil {
			return nil, fmt.Errorf("video %s frame %d: %w", id, index, err)
		}
		v.Append(f, hasFace)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if v.Len() != frameCount {
		return nil, fmt.Errorf("video %s: stored %d of %d frames", id, v.Len(), frameCount)
	}
	return v, nil
}

// SaveOrder stores a traversal order under the fingerprint of its edge set
// and returns the fingerprint.
func (s *Store) SaveOrder(ctx context.Context, order []oval.Edge) (string, error) {
	if err := oval.Validate(order); err != nil {
		return "", err
	}
	fp := oval.Fingerprint(order)

	edges := make([]int32, 0, 2*len(order))
	for _, e := range order {
		edges = append(edges, int32(e.From), int32(e.To))
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO oval_orders (fingerprint, edges) VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET edges = EXCLUDED.edges
	`, fp, edges)
	return fp, err
}

// LoadOrder reads the traversal order stored under fingerprint.
func (s *Store) LoadOrder(ctx context.Context, fingerprint string) ([]oval.Edge, error) {
	var edges []int32
	err := s.conn.QueryRow(ctx, "SELECT edges FROM oval_orders WHERE fingerprint = $1", fingerprint).Scan(&edges)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(edges)%2 != 0 {
		return nil, fmt.Errorf("%w: odd edge array length %d", oval.ErrMalformedTopology, len(edges))
	}

	order := make([]oval.Edge, len(edges)/2)
	for i := range order {
		order[i] = oval.Edge{From: int(edges[2*i]), To: int(edges[2*i+1])}
	}
	if err := oval.Validate(order); err != nil {
		return nil, err
	}
	return order, nil
}

// VideoID derives a stable id from the file path, size and modification time.
func VideoID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

// flatten lays a frame out as x0, y0, x1, y1, ...
func flatten(f *geometry.Frame) []float64 {
	out := make([]float64, 0, 2*geometry.NumPoints)
	for _, p := range f {
		out = append(out, p.X, p.Y)
	}
	return out
}

func unflatten(points []float64) (geometry.Frame, error) {
	var f geometry.Frame
	if len(points) != 2*geometry.NumPoints {
		return f, fmt.Errorf("expected %d values, got %d", 2*geometry.NumPoints, len(points))
	}
	for i := range f {
		f[i] = geometry.Point{X: points[2*i], Y: points[2*i+1]}
	}
	return f, nil
}
