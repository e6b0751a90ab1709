package assemble

// stripTagPrefix drops a leading ID3v2 tag from a segment body. Timefree
// audio segments carry a metadata tag ahead of the raw frames; concatenating
// them verbatim confuses downstream decoders.
func stripTagPrefix(data []byte) []byte {
	size := tagPrefixSize(data)
	if size <= 0 || size > len(data) {
		return data
	}
	return data[size:]
}

// tagPrefixSize returns the total byte length of an ID3v2 tag at the start of
// data, or 0 when none is present. The tag size field is four sync-safe bytes
// (7 bits each) and excludes the 10-byte header itself.
func tagPrefixSize(data []byte) int {
	if len(data) < 10 {
		return 0
	}
	if data[0] != 'I' || data[1] != 'D' || data[2] != '3' {
		return 0
	}
	size := 0
	for _, b := range data[6:10] {
		if b&0x80 != 0 {
			return 0
		}
		size = size<<7 | int(b)
	}
	return 10 + size
}
