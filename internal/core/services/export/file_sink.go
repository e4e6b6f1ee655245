package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
)

// Encoder renders a snapshot record in one file format.
type Encoder func(w io.Writer, rec domain.SnapshotRecord) error

// defaultEncoders maps a file extension to its encoder. JSON and CSV are built in;
// other formats are registered by callers.
var defaultEncoders = map[string]Encoder{
	"json": WriteJSON,
	"csv":  WriteCSV,
}

// FileSink writes each snapshot to <dir>/<kind>-<timestamp>-<id>.<format>.
// The timestamp carries milliseconds and <id> is the record ID prefix, so
// snapshots of one kind taken within the same second never overwrite each other.
type FileSink struct {
	dir     string
	format  string
	encoder Encoder
}

var _ ports.SnapshotSink = (*FileSink)(nil)

// NewFileSink creates a sink for a built-in format (json or csv).
func NewFileSink(dir, format string) (*FileSink, error) {
	format = strings.ToLower(format)
	enc, ok := defaultEncoders[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return NewFileSinkWithEncoder(dir, format, enc), nil
}

// NewFileSinkWithEncoder creates a sink using a caller-supplied encoder.
func NewFileSinkWithEncoder(dir, ext string, enc Encoder) *FileSink {
	return &FileSink{dir: dir, format: ext, encoder: enc}
}

// Path returns the file a record would be written to.
func (s *FileSink) Path(rec domain.SnapshotRecord) string {
	name := fmt.Sprintf("%s-%s", rec.Kind, rec.CapturedAt.Format("20060102-150405.000"))
	if id := shortID(rec.ID); id != "" {
		name += "-" + id
	}
	return filepath.Join(s.dir, name+"."+s.format)
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// WriteSnapshot writes the record atomically via a temp file and rename.
func (s *FileSink) WriteSnapshot(ctx context.Context, rec domain.SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.encoder(tmp, rec); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s snapshot: %w", s.format, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(rec))
}
