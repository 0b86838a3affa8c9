// Package corpustest builds throwaway sqlite corpora for tests.
package corpustest

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// Row is one training_data row. Key becomes the sqlite rowid.
type Row struct {
	Key      int64
	Left     string
	Right    string
	Type     string
	Openness float64
	Theta1   float64
	Theta2   float64
}

// CreateDB writes a corpus file under t.TempDir containing exactly the given
// rows and returns its path.
func CreateDB(t *testing.T, rows []Row) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	db, err := sqlx.Connect("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE training_data (
		leftEyeFrame TEXT,
		rightEyeFrame TEXT,
		type TEXT,
		openness REAL,
		theta1 REAL,
		theta2 REAL
	)`)
	require.NoError(t, err)

	for _, r := range rows {
		_, err = db.Exec(
			`INSERT INTO training_data (rowid, leftEyeFrame, rightEyeFrame, type, openness, theta1, theta2)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Key, r.Left, r.Right, r.Type, r.Openness, r.Theta1, r.Theta2)
		require.NoError(t, err)
	}
	return path
}

// GrayImageURI returns a data URI for a square PNG filled with a constant
// gray level in [0, 1].
func GrayImageURI(t *testing.T, size int, level float64) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	v := uint8(level*255 + 0.5)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
