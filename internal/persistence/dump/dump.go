// Package dump exports every shop of a store as zstd-compressed JSONL and
// imports such files into another store. The first line is a header.
package dump

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"tradepost.ai/internal/shop"
)

const (
	Format  = "tradepost.shops"
	Version = 1
)

type Header struct {
	Format     string `json:"format"`
	Version    int    `json:"version"`
	ExportedAt string `json:"exported_at"`
	Shops      int    `json:"shops"`
}

type ImportStats struct {
	Imported int
	Skipped  int
}

// Export writes all shops of s to w and returns how many were written.
func Export(w io.Writer, s shop.Store) (int, error) {
	shops, err := s.ListAllShops()
	if err != nil {
		return 0, fmt.Errorf("list shops: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	writeLine := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	}

	hdr := Header{
		Format:     Format,
		Version:    Version,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Shops:      len(shops),
	}
	if err := writeLine(hdr); err != nil {
		_ = enc.Close()
		return 0, err
	}
	for _, sh := range shops {
		if err := writeLine(sh); err != nil {
			_ = enc.Close()
			return 0, fmt.Errorf("shop %s/%s: %w", sh.OwnerID, sh.DisplayName, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(shops), nil
}

// Import reads a dump from r into s. Shops whose (owner, name) already exist
// in s are skipped. Records are validated before they reach the store.
func Import(r io.Reader, s shop.Store) (ImportStats, error) {
	var stats ImportStats
	dec, err := zstd.NewReader(r)
	if err != nil {
		return stats, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return stats, err
		}
		return stats, errors.New("dump: missing header")
	}
	var hdr Header
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return stats, fmt.Errorf("dump: header: %w", err)
	}
	if hdr.Format != Format || hdr.Version != Version {
		return stats, fmt.Errorf("dump: unsupported format %q version %d", hdr.Format, hdr.Version)
	}

	line := 1
	for sc.Scan() {
		line++
		var sh shop.Shop
		if err := json.Unmarshal(sc.Bytes(), &sh); err != nil {
			return stats, fmt.Errorf("dump: line %d: %w", line, err)
		}
		if err := shop.ValidateRecord(sh); err != nil {
			return stats, fmt.Errorf("dump: line %d: %w", line, err)
		}
		ok, err := s.ImportShop(sh)
		if err != nil {
			return stats, fmt.Errorf("dump: line %d: %w", line, err)
		}
		if ok {
			stats.Imported++
		} else {
			stats.Skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return stats, err
	}
	if got := stats.Imported + stats.Skipped; got != hdr.Shops {
		return stats, fmt.Errorf("dump: header announces %d shops, read %d", hdr.Shops, got)
	}
	return stats, nil
}

// ExportFile writes the dump next to path and renames it into place.
func ExportFile(path string, s shop.Store) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := Export(f, s)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func ImportFile(path string, s shop.Store) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, err
	}
	defer f.Close()
	return Import(f, s)
}
