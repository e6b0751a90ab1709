package assemble

import (
	"bytes"
	"testing"
)

func packedSegment(tagPayload, audio []byte) []byte {
	size := len(tagPayload)
	header := []byte{
		'I', 'D', '3', 4, 0, 0,
		byte(size >> 21 & 0x7f),
		byte(size >> 14 & 0x7f),
		byte(size >> 7 & 0x7f),
		byte(size & 0x7f),
	}
	out := append(header, tagPayload...)
	return append(out, audio...)
}

func TestStripTagPrefix(t *testing.T) {
	audio := []byte{0xff, 0xf1, 0x50, 0x80, 0x01, 0x02}
	segment := packedSegment(bytes.Repeat([]byte{0}, 73), audio)

	if got := stripTagPrefix(segment); !bytes.Equal(got, audio) {
		t.Fatalf("stripped segment = %x, want %x", got, audio)
	}
}

func TestStripTagPrefixPlainAudio(t *testing.T) {
	audio := []byte{0xff, 0xf1, 0x50, 0x80}
	if got := stripTagPrefix(audio); !bytes.Equal(got, audio) {
		t.Fatal("untagged segment should pass through unchanged")
	}
}

func TestStripTagPrefixTruncatedTag(t *testing.T) {
	// Declared size runs past the buffer; leave the data alone rather than
	// slicing out of range.
	segment := packedSegment(nil, nil)
	segment[9] = 0x7f
	if got := stripTagPrefix(segment); !bytes.Equal(got, segment) {
		t.Fatal("oversized tag declaration should pass through unchanged")
	}
}

func TestTagPrefixSizeNonSyncSafe(t *testing.T) {
	segment := packedSegment(nil, []byte{0x01})
	segment[6] = 0x80
	if size := tagPrefixSize(segment); size != 0 {
		t.Fatalf("non-sync-safe size byte accepted: %d", size)
	}
}
