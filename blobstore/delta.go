package blobstore

import (
	"encoding/binary"
	"fmt"
)

// encodeDelta builds a delta of target against source using the longest
// shared prefix and suffix between the two byte strings — small enough to
// reason about, and faithful to the spec's model of "the delta is whatever
// shrinks the stored size" (§4.1) without committing to a specific
// production-grade diff algorithm the spec never names. Grounded on the
// spirit of the teacher's own compression choice in GitBlob.SaveBlob: pick
// the cheap encoding, verify it actually shrinks, and only ever keep it if
// it does.
//
// Wire format: varint(prefixLen) varint(suffixLen) followed by the "middle"
// bytes of target that are not covered by the shared prefix/suffix.
func encodeDelta(source, target []byte) []byte {
	maxShared := len(source)
	if len(target) < maxShared {
		maxShared = len(target)
	}
	prefix := 0
	for prefix < maxShared && source[prefix] == target[prefix] {
		prefix++
	}
	remaining := maxShared - prefix
	suffix := 0
	for suffix < remaining &&
		source[len(source)-1-suffix] == target[len(target)-1-suffix] {
		suffix++
	}

	buf := make([]byte, 0, prefix+suffix+len(target))
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(prefix))
	buf = append(buf, scratch[:n]...)
	n = binary.PutUvarint(scratch[:], uint64(suffix))
	buf = append(buf, scratch[:n]...)
	buf = append(buf, target[prefix:len(target)-suffix]...)
	return buf
}

// applyDelta reconstructs target from source and a delta produced by
// encodeDelta. Returns an error if the delta is malformed or refers to
// offsets that don't fit source — both symptoms of the CorruptChain
// condition §4.1 describes for Get.
func applyDelta(source, delta []byte) ([]byte, error) {
	prefix, n := binary.Uvarint(delta)
	if n <= 0 {
		return nil, fmt.Errorf("malformed delta: prefix varint")
	}
	delta = delta[n:]
	suffix, n := binary.Uvarint(delta)
	if n <= 0 {
		return nil, fmt.Errorf("malformed delta: suffix varint")
	}
	delta = delta[n:]
	middle := delta

	if int(prefix)+int(suffix) > len(source) {
		return nil, fmt.Errorf("malformed delta: prefix+suffix exceeds source length")
	}

	target := make([]byte, 0, int(prefix)+len(middle)+int(suffix))
	target = append(target, source[:prefix]...)
	target = append(target, middle...)
	target = append(target, source[len(source)-int(suffix):]...)
	return target, nil
}
