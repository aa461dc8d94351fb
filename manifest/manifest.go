// Package manifest is the L2 layer (§4.2, §6.4): the canonical F-card text
// codec for commit manifests (and, via the same tokenizer, other artifact
// kinds). Encoding and decoding must be exact inverses.
//
// Grounded on the teacher's journal package for texture only — per-card
// encode functions each emitting one record kind, doc comments quoting the
// external record's field layout — not for content: the teacher's grammar
// (P4 journal records) and this one (Fossil-style F-cards) share nothing
// but the "line-oriented record format with a checksum trailer" shape.
package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	corevcs "github.com/rcowham/corevcs"
)

func errManifestf(op, format string, args ...any) error {
	return corevcs.Newf(corevcs.Integrity, "manifest."+op, format, args...)
}

// Perm is a file's F-card permission token (§3.2, §4.2).
type Perm int

const (
	Regular Perm = iota
	Executable
	Symlink
)

func (p Perm) token() string {
	switch p {
	case Executable:
		return "x"
	case Symlink:
		return "l"
	default:
		return ""
	}
}

func parsePerm(tok string) (Perm, error) {
	switch tok {
	case "":
		return Regular, nil
	case "x":
		return Executable, nil
	case "l":
		return Symlink, nil
	default:
		return Regular, errManifestf("Decode", "unknown perm token %q", tok)
	}
}

// FileEntry is one F-card (§3.2, §4.2). Hash == "" means "removed in this
// delta" (only meaningful when the manifest has a Baseline).
type FileEntry struct {
	Path    string
	Hash    string
	Perm    Perm
	OldPath string
}

// TagOp is a T-card's operation (§3.2, §4.2): propagate, one-shot, cancel.
type TagOp int

const (
	AddPropagating TagOp = iota
	AddOneShot
	Cancel
)

func (o TagOp) rune() byte {
	switch o {
	case AddPropagating:
		return '*'
	case Cancel:
		return '-'
	default:
		return '+'
	}
}

func parseTagOp(b byte) (TagOp, error) {
	switch b {
	case '*':
		return AddPropagating, nil
	case '+':
		return AddOneShot, nil
	case '-':
		return Cancel, nil
	default:
		return 0, errManifestf("Decode", "unknown tag operation %q", b)
	}
}

// TagCard is one T-card. Target == "" means "this commit" (encoded as `*`).
type TagCard struct {
	Op     TagOp
	Name   string
	Target string
	Value  string
}

// Cherrypick is one Q-card (§3.2, §4.2). Add distinguishes cherrypick (+)
// from backout (-).
type Cherrypick struct {
	Add        bool
	Hash       string
	SourceHash string
}

// Manifest is the decoded form of a commit artifact (§3.2).
type Manifest struct {
	Baseline       string
	Comment        string
	Date           time.Time
	Files          []FileEntry
	Mimetype       string
	Parents        []string
	Cherrypicks    []Cherrypick
	Checksum       string
	Tags           []TagCard
	User           string
	SignatureCksum string // populated by Decode; Encode writes a fresh Z-card but leaves this field as is
}

const dateLayout = "2006-01-02T15:04:05.000"

func oldPathSuffix(oldPath string) string {
	if oldPath == "" {
		return ""
	}
	return " " + escapeField(oldPath)
}

// Encode renders m to its canonical byte form: cards in strict alphabetical
// order by code (B C D F N P Q R T U Z), F-cards sorted by path, Z-card MD5
// computed over everything that precedes it.
func Encode(m *Manifest) ([]byte, error) {
	var lines []string

	if m.Baseline != "" {
		lines = append(lines, "B "+m.Baseline)
	}

	comment := m.Comment
	if comment == "" {
		comment = "(no comment)"
	}
	lines = append(lines, "C "+escapeField(comment))

	if m.Date.IsZero() {
		return nil, errManifestf("Encode", "date is required")
	}
	lines = append(lines, "D "+m.Date.UTC().Format(dateLayout))

	files := append([]FileEntry(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	for i := 1; i < len(files); i++ {
		if files[i].Path == files[i-1].Path {
			return nil, errManifestf("Encode", "duplicate F-card path %q", files[i].Path)
		}
	}
	for _, f := range files {
		line := "F " + escapeField(f.Path)
		if f.Hash != "" {
			line += " " + f.Hash
			tok := f.Perm.token()
			switch {
			case tok != "":
				line += " " + tok + oldPathSuffix(f.OldPath)
			case f.OldPath != "":
				// Regular perm has no token, but the oldpath slot still
				// needs a placeholder so the line stays positional.
				line += " -" + oldPathSuffix(f.OldPath)
			}
		}
		lines = append(lines, line)
	}

	if m.Mimetype != "" {
		lines = append(lines, "N "+escapeField(m.Mimetype))
	}

	if len(m.Parents) > 0 {
		lines = append(lines, "P "+strings.Join(m.Parents, " "))
	}

	cps := append([]Cherrypick(nil), m.Cherrypicks...)
	for _, q := range cps {
		sign := "+"
		if !q.Add {
			sign = "-"
		}
		line := "Q " + sign + q.Hash
		if q.SourceHash != "" {
			line += " " + q.SourceHash
		}
		lines = append(lines, line)
	}

	if m.Checksum != "" {
		lines = append(lines, "R "+m.Checksum)
	}

	tags := append([]TagCard(nil), m.Tags...)
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name != tags[j].Name {
			return tags[i].Name < tags[j].Name
		}
		return tags[i].Target < tags[j].Target
	})
	for _, tg := range tags {
		target := tg.Target
		if target == "" {
			target = "*"
		}
		line := fmt.Sprintf("T %c%s %s", tg.Op.rune(), escapeField(tg.Name), target)
		if tg.Value != "" {
			line += " " + escapeField(tg.Value)
		}
		lines = append(lines, line)
	}

	if m.User == "" {
		return nil, errManifestf("Encode", "user is required")
	}
	lines = append(lines, "U "+escapeField(m.User))

	body := strings.Join(lines, "\n") + "\n"
	sum := md5.Sum([]byte(body))
	zHash := hex.EncodeToString(sum[:])
	lines = append(lines, "Z "+zHash)

	return []byte(strings.Join(lines, "\n") + "\n"), nil
}
