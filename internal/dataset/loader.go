// Package dataset reads batch audit manifests and writes audit reports, both
// as XLSX workbooks.
package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"call-audit-go/internal/types"
)

// Load reads the first sheet of an XLSX manifest. Columns are detected from
// the header row: the audio column (audio, file, path, url, record), the call
// id, and optionally owner and agent. Rows without an audio location are
// skipped.
func Load(path string) ([]types.CallRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.audio == -1 {
		return nil, fmt.Errorf("no audio column in header %v", rows[0])
	}

	var out []types.CallRecord
	for i, r := range rows[1:] {
		rec := types.CallRecord{
			AudioPath: strings.TrimSpace(cell(r, cols.audio)),
			CallID:    strings.TrimSpace(cell(r, cols.id)),
			OwnerID:   strings.TrimSpace(cell(r, cols.owner)),
			Agent:     strings.TrimSpace(cell(r, cols.agent)),
		}
		if rec.AudioPath == "" {
			continue
		}
		if rec.CallID == "" {
			rec.CallID = fmt.Sprintf("row-%d", i+2)
		}
		out = append(out, rec)
	}
	return out, nil
}

type columns struct {
	audio, id, owner, agent int
}

// detectColumns checks owner, agent and id headers before the audio keywords
// so recording_id or file_id is never taken for the audio location.
func detectColumns(header []string) columns {
	c := columns{audio: -1, id: -1, owner: -1, agent: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "owner") || strings.Contains(l, "user"):
			if c.owner == -1 {
				c.owner = i
			}
		case strings.Contains(l, "agent"):
			if c.agent == -1 {
				c.agent = i
			}
		case isIDHeader(strings.TrimSpace(h)):
			if c.id == -1 {
				c.id = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "file") || strings.Contains(l, "path") ||
			strings.Contains(l, "url") || strings.Contains(l, "record"):
			if c.audio == -1 {
				c.audio = i
			}
		}
	}
	if c.audio == -1 && len(header) == 1 {
		c.audio = 0
	}
	return c
}

// isIDHeader matches headers whose last word is "id": "id", "Call ID",
// "recording_id", "fileId".
func isIDHeader(h string) bool {
	words := strings.FieldsFunc(h, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	if strings.EqualFold(last, "id") {
		return true
	}
	return len(last) > 2 && (strings.HasSuffix(last, "Id") || strings.HasSuffix(last, "ID"))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Fetch returns the bytes at loc, an http(s) URL or a local path. Sources
// larger than maxBytes fail; maxBytes <= 0 disables the limit.
func Fetch(ctx context.Context, client *http.Client, loc string, maxBytes int64) ([]byte, error) {
	lower := strings.ToLower(loc)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if maxBytes > 0 {
			fi, err := os.Stat(loc)
			if err != nil {
				return nil, err
			}
			if fi.Size() > maxBytes {
				return nil, fmt.Errorf("%s exceeds %d bytes", loc, maxBytes)
			}
		}
		return os.ReadFile(loc)
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: %d %s", resp.StatusCode, string(b))
	}
	if maxBytes <= 0 {
		return io.ReadAll(resp.Body)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", maxBytes)
	}
	return data, nil
}
