package mapping

import "hash/crc32"

// Adapted from the teacher's wal/checksum.go CRC32 Castagnoli helper,
// generalized from "WAL entry payload checksum" to "content-source
// digest": a cheap fast-path before the full byte-equal round-trip
// check spec.md §4.1 requires on every merge.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// digest returns a fast, non-cryptographic fingerprint of data.
func digest(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// sameDigest is a quick rejection test: if the digests differ the
// byte slices are certainly different and bytes.Equal need not run.
// If the digests match, the caller must still fall back to
// bytes.Equal — a CRC32 match is not proof of equality.
func sameDigest(a, b []byte) bool {
	return digest(a) == digest(b)
}
