package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// cardOrder is the strict alphabetical ordering of card codes (§4.2). It
// happens to equal plain ASCII/string order, which is what the decoder
// checks directly rather than consulting a lookup table.
const cardOrder = "BCDFNPQRTUZ"

func isKnownCode(c byte) bool {
	return strings.IndexByte(cardOrder, c) >= 0
}

// Decode parses raw manifest bytes into a Manifest, enforcing every rule of
// §4.2: cards in strict alphabetical order, F-cards strictly ascending by
// path, and a Z-card MD5 that matches the bytes preceding it. Any violation
// is reported as a corevcs.Error of kind Integrity (§8, concrete scenario
// 6).
func Decode(raw []byte) (*Manifest, error) {
	text := string(raw)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, errManifestf("Decode", "empty manifest")
	}
	lines := strings.Split(text, "\n")

	m := &Manifest{}
	var lastCode byte
	var zLine string
	var sawC, sawD, sawU, sawZ bool

	for idx, line := range lines {
		if line == "" {
			return nil, errManifestf("Decode", "blank line at position %d", idx)
		}
		code := line[0]
		if !isKnownCode(code) {
			return nil, errManifestf("Decode", "unknown card code %q at line %d", code, idx)
		}
		if len(line) > 1 && line[1] != ' ' {
			return nil, errManifestf("Decode", "malformed card at line %d: %q", idx, line)
		}
		if code < lastCode {
			return nil, errManifestf("Decode", "cards out of order: %q after %q", string(code), string(lastCode))
		}
		lastCode = code

		if sawZ {
			return nil, errManifestf("Decode", "content after Z-card")
		}

		var rest string
		if len(line) > 2 {
			rest = line[2:]
		}

		switch code {
		case 'B':
			m.Baseline = rest
		case 'C':
			if sawC {
				return nil, errManifestf("Decode", "duplicate C-card")
			}
			sawC = true
			comment, err := unescapeField(rest)
			if err != nil {
				return nil, err
			}
			if comment == "(no comment)" {
				comment = ""
			}
			m.Comment = comment
		case 'D':
			if sawD {
				return nil, errManifestf("Decode", "duplicate D-card")
			}
			sawD = true
			t, err := time.Parse(dateLayout, rest)
			if err != nil {
				return nil, errManifestf("Decode", "malformed D-card %q: %v", rest, err)
			}
			m.Date = t.UTC()
		case 'F':
			fe, err := decodeFCard(rest)
			if err != nil {
				return nil, err
			}
			if len(m.Files) > 0 && fe.Path <= m.Files[len(m.Files)-1].Path {
				return nil, errManifestf("Decode", "F-cards out of order at %q", fe.Path)
			}
			m.Files = append(m.Files, fe)
		case 'N':
			mime, err := unescapeField(rest)
			if err != nil {
				return nil, err
			}
			m.Mimetype = mime
		case 'P':
			if rest == "" {
				return nil, errManifestf("Decode", "empty P-card")
			}
			m.Parents = strings.Fields(rest)
		case 'Q':
			q, err := decodeQCard(rest)
			if err != nil {
				return nil, err
			}
			m.Cherrypicks = append(m.Cherrypicks, q)
		case 'R':
			m.Checksum = rest
		case 'T':
			tg, err := decodeTCard(rest)
			if err != nil {
				return nil, err
			}
			m.Tags = append(m.Tags, tg)
		case 'U':
			if sawU {
				return nil, errManifestf("Decode", "duplicate U-card")
			}
			sawU = true
			user, err := unescapeField(rest)
			if err != nil {
				return nil, err
			}
			m.User = user
		case 'Z':
			if sawZ {
				return nil, errManifestf("Decode", "duplicate Z-card")
			}
			sawZ = true
			zLine = rest
		}
	}

	if !sawC || !sawD || !sawU || !sawZ {
		return nil, errManifestf("Decode", "missing a mandatory card (C/D/U/Z)")
	}

	bodyEnd := strings.LastIndex(text, "\nZ ")
	if bodyEnd < 0 {
		return nil, errManifestf("Decode", "internal: could not locate Z-card boundary")
	}
	body := text[:bodyEnd+1]
	sum := md5.Sum([]byte(body))
	computed := hex.EncodeToString(sum[:])
	if !strings.EqualFold(computed, zLine) {
		return nil, errManifestf("Decode", "Z-card mismatch: computed %s, manifest says %s", computed, zLine)
	}
	m.SignatureCksum = zLine

	return m, nil
}

func decodeFCard(rest string) (FileEntry, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return FileEntry{}, errManifestf("Decode", "empty F-card")
	}
	path, err := unescapeField(fields[0])
	if err != nil {
		return FileEntry{}, err
	}
	fe := FileEntry{Path: path}
	if len(fields) == 1 {
		return fe, nil // removed in delta
	}
	fe.Hash = fields[1]
	if len(fields) >= 3 {
		perm, err := parsePerm(permTokenOrPlaceholder(fields[2]))
		if err != nil {
			return FileEntry{}, err
		}
		fe.Perm = perm
	}
	if len(fields) >= 4 {
		oldPath, err := unescapeField(fields[3])
		if err != nil {
			return FileEntry{}, err
		}
		fe.OldPath = oldPath
	}
	return fe, nil
}

// permTokenOrPlaceholder turns the "-" placeholder Encode writes (regular
// perm with an oldpath following) back into the empty token parsePerm
// expects for Regular.
func permTokenOrPlaceholder(tok string) string {
	if tok == "-" {
		return ""
	}
	return tok
}

func decodeQCard(rest string) (Cherrypick, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Cherrypick{}, errManifestf("Decode", "empty Q-card")
	}
	signHash := fields[0]
	if len(signHash) < 2 {
		return Cherrypick{}, errManifestf("Decode", "malformed Q-card %q", rest)
	}
	q := Cherrypick{Hash: signHash[1:]}
	switch signHash[0] {
	case '+':
		q.Add = true
	case '-':
		q.Add = false
	default:
		return Cherrypick{}, errManifestf("Decode", "Q-card must start with + or -: %q", rest)
	}
	if len(fields) >= 2 {
		q.SourceHash = fields[1]
	}
	return q, nil
}

func decodeTCard(rest string) (TagCard, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return TagCard{}, errManifestf("Decode", "malformed T-card %q", rest)
	}
	opName := fields[0]
	if len(opName) < 2 {
		return TagCard{}, errManifestf("Decode", "malformed T-card operation %q", opName)
	}
	op, err := parseTagOp(opName[0])
	if err != nil {
		return TagCard{}, err
	}
	name, err := unescapeField(opName[1:])
	if err != nil {
		return TagCard{}, err
	}
	tg := TagCard{Op: op, Name: name}
	target := fields[1]
	if target != "*" {
		tg.Target = target
	}
	if len(fields) >= 3 {
		val, err := unescapeField(fields[2])
		if err != nil {
			return TagCard{}, err
		}
		tg.Value = val
	}
	return tg, nil
}
