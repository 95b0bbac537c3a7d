package wishlib

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// recordSep separates the fields of a persisted wish record. It is a
// non-printable character that never appears in well-formed field values;
// encodeRecord replaces it (and line breaks) with spaces.
const recordSep = "\x1f"

// nullToken marks an absent optional field.
const nullToken = "null"

// Field positions of a persisted record.
const (
	fieldURI = iota
	fieldMime
	fieldTitle
	fieldReferer
	fieldTimestamp
	fieldHeld
	fieldFileName
	fieldHandler
	fieldCount
)

var fieldSanitizer = strings.NewReplacer(recordSep, " ", "\r", " ", "\n", " ")

// encodeRecord serializes w as a single line (without the trailing newline).
func encodeRecord(w *Wish) string {
	fields := make([]string, fieldCount)
	fields[fieldURI] = fieldSanitizer.Replace(w.URI)
	fields[fieldMime] = fieldSanitizer.Replace(w.Mime)
	fields[fieldTitle] = fieldSanitizer.Replace(w.Title)
	fields[fieldReferer] = fieldSanitizer.Replace(w.Referer)
	if !w.Timestamp.IsZero() {
		fields[fieldTimestamp] = strconv.FormatInt(w.Timestamp.UnixMilli(), 10)
	}
	fields[fieldHeld] = "0"
	if w.Held {
		fields[fieldHeld] = "1"
	}
	fields[fieldFileName] = fieldSanitizer.Replace(w.FileName)
	if !w.Handler.IsZero() {
		fields[fieldHandler] = fieldSanitizer.Replace(w.Handler.String())
	}
	return strings.Join(fields, recordSep)
}

// decodeRecord parses one persisted line. Tokens beyond the known fields
// are ignored; missing optional tokens are treated as absent.
func decodeRecord(line string) (*Wish, error) {
	line = strings.TrimRight(line, "\r")
	tokens := strings.Split(line, recordSep)
	uri := optional(tokens, fieldURI)
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: missing uri", ErrMalformedRecord)
	}
	if IsContentURI(uri) {
		return nil, fmt.Errorf("%w: content uri %q", ErrMalformedRecord, uri)
	}
	w := &Wish{
		URI:      uri,
		Mime:     optional(tokens, fieldMime),
		Title:    optional(tokens, fieldTitle),
		Referer:  optional(tokens, fieldReferer),
		Held:     optional(tokens, fieldHeld) == "1",
		FileName: optional(tokens, fieldFileName),
	}
	if ts := optional(tokens, fieldTimestamp); ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q", ErrMalformedRecord, ts)
		}
		w.Timestamp = time.UnixMilli(ms)
	}
	if hs := optional(tokens, fieldHandler); hs != "" {
		h, err := ParseHandler(hs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		w.Handler = h
	}
	return w, nil
}

func optional(tokens []string, i int) string {
	if i >= len(tokens) {
		return ""
	}
	if tokens[i] == nullToken {
		return ""
	}
	return tokens[i]
}
