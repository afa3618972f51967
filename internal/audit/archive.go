package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"nudgegate/internal/types"
)

// Archiver persists audit reports as zstd-compressed JSON files, one file per
// report, named audit-<timestamp>-<report id>.json.zst.
type Archiver struct {
	dir string
	log types.Logger
}

// NewArchiver creates an Archiver rooted at dir. The directory is created on
// first write.
func NewArchiver(dir string, log types.Logger) *Archiver {
	return &Archiver{dir: dir, log: log}
}

// Archive writes one report and returns the file path.
func (a *Archiver) Archive(rep Report) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", types.NewAppError(types.ErrCodePersistence, "create archive dir", err)
	}

	name := fmt.Sprintf("audit-%s-%s.json.zst", rep.GeneratedAt.UTC().Format("20060102T150405Z"), rep.ID)
	path := filepath.Join(a.dir, name)

	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", types.NewAppError(types.ErrCodePersistence, "encode report", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", types.NewAppError(types.ErrCodePersistence, "create archive file", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return "", types.NewAppError(types.ErrCodePersistence, "init compressor", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return "", types.NewAppError(types.ErrCodePersistence, "write archive", err)
	}
	if err := enc.Close(); err != nil {
		return "", types.NewAppError(types.ErrCodePersistence, "flush archive", err)
	}

	a.log.Info("audit report archived", "path", path, "report_id", rep.ID)
	return path, nil
}

// Load reads one archived report back.
func (a *Archiver) Load(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, types.NewAppError(types.ErrCodePersistence, "open archive", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Report{}, types.NewAppError(types.ErrCodePersistence, "init decompressor", err)
	}
	defer dec.Close()

	var rep Report
	if err := json.NewDecoder(dec).Decode(&rep); err != nil {
		return Report{}, types.NewAppError(types.ErrCodePersistenceCorrupt, "decode archived report", err)
	}
	return rep, nil
}
