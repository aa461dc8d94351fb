package checkin

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/charmbracelet/huh"
	"github.com/h2non/filetype"

	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/blobstore"
)

func matchGlob(pattern, path string) (bool, error) {
	return filepath.Match(pattern, path)
}

// Warning is one of the three §4.4.3(2) content warnings.
type Warning int

const (
	WarnBinary Warning = iota
	WarnLineEndings
	WarnEncoding
)

func (w Warning) String() string {
	switch w {
	case WarnBinary:
		return "binary content"
	case WarnLineEndings:
		return "CR/LF or mixed line endings"
	default:
		return "non-UTF-8 or UTF-16 BOM content"
	}
}

// Resolution is the caller's answer to an interactively-raised warning.
type Resolution int

const (
	Abort Resolution = iota
	Continue
	Convert
)

// WarningGlobs names, per warning kind, the glob patterns that suppress it
// (§4.4.3(2): "each suppressible by glob setting").
type WarningGlobs struct {
	Binary   []string
	CRLF     []string
	Encoding []string
}

// Prompter asks the user how to resolve a raised warning. The interactive
// implementation wraps huh.NewSelect; a non-interactive fallback always
// aborts since there is no terminal to prompt on.
type Prompter interface {
	Resolve(path string, w Warning) (Resolution, error)
}

// InteractivePrompter drives a huh.NewSelect abort/continue/convert prompt,
// the same form-building pattern therealtimex-entire-cli's CLI uses for its
// own yes/no/select confirmations.
type InteractivePrompter struct{}

func (InteractivePrompter) Resolve(path string, w Warning) (Resolution, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(path+": "+w.String()).
				Options(
					huh.NewOption("Abort", "abort"),
					huh.NewOption("Continue anyway", "continue"),
					huh.NewOption("Convert to UTF-8/LF", "convert"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return Abort, err
	}
	switch choice {
	case "continue":
		return Continue, nil
	case "convert":
		return Convert, nil
	default:
		return Abort, nil
	}
}

// NonInteractivePrompter always aborts: §4.4.3 requires a decision, and a
// process with no attached terminal cannot ask the user for one.
type NonInteractivePrompter struct{}

func (NonInteractivePrompter) Resolve(path string, w Warning) (Resolution, error) {
	return Abort, nil
}

func sniffBinary(content []byte) bool {
	head := content
	if len(head) > 261 {
		head = head[:261]
	}
	if filetype.IsImage(head) || filetype.IsVideo(head) || filetype.IsArchive(head) || filetype.IsAudio(head) {
		return true
	}
	if filetype.IsDocument(head) {
		return true
	}
	return bytes.IndexByte(head, 0) >= 0
}

func hasCRLF(content []byte) bool {
	return bytes.Contains(content, []byte("\r\n")) || bytes.ContainsRune(content, '\r')
}

func hasBadEncoding(content []byte) bool {
	if bytes.HasPrefix(content, []byte{0xFE, 0xFF}) || bytes.HasPrefix(content, []byte{0xFF, 0xFE}) {
		return true
	}
	return !utf8.Valid(content)
}

func toUnixLF(content []byte) []byte {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
}

// decodeToUTF8 handles the other half of §4.4.3(2)'s encoding warning: a
// UTF-16 BOM is decoded to UTF-8 outright; invalid UTF-8 with no BOM is
// repaired byte-by-byte with bytes.ToValidUTF8, the same best-effort
// "rewrite as UTF-8" the warning's Convert resolution promises when there
// is no well-defined source encoding to decode from.
func decodeToUTF8(content []byte) []byte {
	switch {
	case bytes.HasPrefix(content, []byte{0xFF, 0xFE}):
		return utf16ToUTF8(content[2:], binary.LittleEndian)
	case bytes.HasPrefix(content, []byte{0xFE, 0xFF}):
		return utf16ToUTF8(content[2:], binary.BigEndian)
	case utf8.Valid(content):
		return content
	default:
		return bytes.ToValidUTF8(content, nil)
	}
}

func utf16ToUTF8(b []byte, order binary.ByteOrder) []byte {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[i*2:])
	}
	return []byte(string(utf16.Decode(units)))
}

// IngestOptions controls §4.4.3 warning behavior for one selected file.
type IngestOptions struct {
	Globs         WarningGlobs
	NoWarnings    bool
	AllowConflict bool
	Prompter      Prompter
}

func globSuppresses(path string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := matchGlob(pat, path); ok {
			return true
		}
	}
	return false
}

// IngestResult is the outcome of ingesting one file's content.
type IngestResult struct {
	Path      string
	Content   []byte
	Converted bool
	OriginalBackupPath string
}

// Ingest runs §4.4.3 for one selected file: read, raise warnings in turn,
// store via store, and return the resolved content plus the rid it now
// lives at. It does not itself run deltification; that is the caller's job
// once the parent's rid is known (blobstore.Store.Deltify).
func Ingest(store *blobstore.Store, workRoot, path string, opts IngestOptions) (IngestResult, int64, error) {
	fullPath := workRoot + "/" + path
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return IngestResult{}, 0, corevcs.Wrap(corevcs.IO, "checkin.Ingest", err)
	}

	if hasConflictMarker(content) && !opts.AllowConflict {
		return IngestResult{}, 0, corevcs.Newf(corevcs.Conflict, "checkin.Ingest",
			"%s contains unresolved merge-conflict markers", path)
	}

	result := IngestResult{Path: path, Content: content}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = NonInteractivePrompter{}
	}

	checks := []struct {
		kind    Warning
		trigger bool
		globs   []string
	}{
		{WarnBinary, sniffBinary(content), opts.Globs.Binary},
		{WarnLineEndings, hasCRLF(content), opts.Globs.CRLF},
		{WarnEncoding, hasBadEncoding(content), opts.Globs.Encoding},
	}
	for _, c := range checks {
		if !c.trigger || opts.NoWarnings || globSuppresses(path, c.globs) {
			continue
		}
		res, err := prompter.Resolve(path, c.kind)
		if err != nil {
			return IngestResult{}, 0, corevcs.Wrap(corevcs.Interrupted, "checkin.Ingest", err)
		}
		switch res {
		case Abort:
			return IngestResult{}, 0, corevcs.Newf(corevcs.Conflict, "checkin.Ingest",
				"%s: %s warning aborted commit", path, c.kind)
		case Convert:
			if c.kind == WarnLineEndings || c.kind == WarnEncoding {
				backup := fullPath + "-original"
				if err := os.WriteFile(backup, content, 0o644); err != nil {
					return IngestResult{}, 0, corevcs.Wrap(corevcs.IO, "checkin.Ingest", err)
				}
				converted := toUnixLF(decodeToUTF8(result.Content))
				mode := os.FileMode(0o644)
				if info, statErr := os.Stat(fullPath); statErr == nil {
					mode = info.Mode()
				}
				if err := os.WriteFile(fullPath, converted, mode); err != nil {
					return IngestResult{}, 0, corevcs.Wrap(corevcs.IO, "checkin.Ingest", err)
				}
				result.Content = converted
				result.Converted = true
				result.OriginalBackupPath = backup
			}
		case Continue:
		}
	}

	rid, err := store.Put(result.Content, false, 0, "")
	if err != nil {
		return IngestResult{}, 0, corevcs.Wrap(corevcs.IO, "checkin.Ingest", err)
	}
	return result, rid, nil
}
