// Package webm validates and repairs the WebM (EBML) containers produced by
// MediaRecorder-style chunked encoders.
//
// Validation is structural, not semantic: it checks that the byte stream
// opens with an EBML header, contains a Segment element, and carries at least
// one Cluster of media data. Decoding the media itself is out of scope.
//
// The one repair this package performs is the classic live-recording defect:
// encoders that stream chunks write the Segment with an "unknown size" length
// marker because the total length is not known until the recording stops.
// [Repair] patches that marker in place with the real remaining byte count,
// which is enough for most players to seek and report duration.
package webm

import "fmt"

// EBML element IDs relevant to structural validation.
var (
	idEBMLHeader = []byte{0x1A, 0x45, 0xDF, 0xA3}
	idSegment    = []byte{0x18, 0x53, 0x80, 0x67}
	idCluster    = []byte{0x1F, 0x43, 0xB6, 0x75}
)

// Report is the result of [Validate].
type Report struct {
	// Valid is true when all required structural markers are present and the
	// element sizes parse.
	Valid bool

	// HasEBMLHeader reports the leading EBML header magic.
	HasEBMLHeader bool

	// HasSegment reports a Segment element following the header.
	HasSegment bool

	// HasCluster reports at least one Cluster inside the Segment.
	HasCluster bool

	// UnknownSegmentSize reports a Segment written with the unknown-size
	// marker. Such a container is still Valid but benefits from [Repair].
	UnknownSegmentSize bool

	// Detail is a human-readable explanation when Valid is false.
	Detail string
}

// Validate inspects data for WebM structural well-formedness.
func Validate(data []byte) Report {
	var r Report

	if len(data) < len(idEBMLHeader) || !hasPrefix(data, idEBMLHeader) {
		r.Detail = "missing EBML header magic"
		return r
	}
	r.HasEBMLHeader = true

	// Skip over the EBML header element to land on the Segment.
	headerSize, sizeLen, err := readVint(data[len(idEBMLHeader):])
	if err != nil {
		r.Detail = fmt.Sprintf("EBML header size: %v", err)
		return r
	}
	segStart := len(idEBMLHeader) + sizeLen + int(headerSize)
	if segStart+len(idSegment) > len(data) {
		r.Detail = "truncated before Segment element"
		return r
	}
	if !hasPrefix(data[segStart:], idSegment) {
		r.Detail = "Segment element not found after EBML header"
		return r
	}
	r.HasSegment = true

	segSizeOff := segStart + len(idSegment)
	segSize, segSizeLen, err := readVint(data[segSizeOff:])
	if err != nil {
		r.Detail = fmt.Sprintf("Segment size: %v", err)
		return r
	}
	r.UnknownSegmentSize = segSize < 0

	// A Cluster may sit anywhere inside the Segment body; a linear scan is
	// sufficient for validation since the ID is a 4-byte marker.
	body := data[segSizeOff+segSizeLen:]
	if indexOf(body, idCluster) < 0 {
		r.Detail = "no Cluster element (zero media data)"
		return r
	}
	r.HasCluster = true
	r.Valid = true
	return r
}

// Repair returns a structurally repaired copy of data and true when a repair
// was possible and needed. It returns (nil, false) when data is either beyond
// repair or already well-formed with a known Segment size.
func Repair(data []byte) ([]byte, bool) {
	r := Validate(data)
	if !r.HasEBMLHeader || !r.HasSegment || !r.HasCluster {
		return nil, false
	}
	if !r.UnknownSegmentSize {
		return nil, false
	}

	// Re-derive the Segment size field location.
	headerSize, sizeLen, err := readVint(data[len(idEBMLHeader):])
	if err != nil {
		return nil, false
	}
	segSizeOff := len(idEBMLHeader) + sizeLen + int(headerSize) + len(idSegment)
	_, segSizeLen, err := readVint(data[segSizeOff:])
	if err != nil {
		return nil, false
	}

	bodyLen := len(data) - segSizeOff - segSizeLen
	patched, ok := encodeVint(uint64(bodyLen), segSizeLen)
	if !ok {
		return nil, false
	}

	fixed := make([]byte, len(data))
	copy(fixed, data)
	copy(fixed[segSizeOff:], patched)
	return fixed, true
}

// readVint decodes an EBML variable-length integer at the start of b.
// It returns the decoded value, the number of bytes consumed, and an error on
// truncation. A value of -1 signals the reserved unknown-size marker
// (all value bits set).
func readVint(b []byte) (int64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("empty input")
	}
	first := b[0]
	if first == 0 {
		return 0, 0, fmt.Errorf("invalid vint leading byte 0x00")
	}

	// Width = position of the first set bit from the MSB.
	width := 1
	for mask := byte(0x80); mask > 0 && first&mask == 0; mask >>= 1 {
		width++
	}
	if width > 8 || len(b) < width {
		return 0, 0, fmt.Errorf("truncated vint (width %d, have %d bytes)", width, len(b))
	}

	// Mask off the length marker bit and accumulate.
	value := uint64(first & (0xFF >> width))
	allOnes := value == uint64(0xFF>>width)
	for i := 1; i < width; i++ {
		value = value<<8 | uint64(b[i])
		allOnes = allOnes && b[i] == 0xFF
	}
	if allOnes {
		return -1, width, nil
	}
	return int64(value), width, nil
}

// encodeVint encodes v as an EBML vint of exactly width bytes. Returns false
// when v does not fit in width bytes or would collide with the unknown-size
// marker.
func encodeVint(v uint64, width int) ([]byte, bool) {
	if width < 1 || width > 8 {
		return nil, false
	}
	maxVal := uint64(1)<<(7*width) - 1
	if v >= maxVal { // maxVal itself is the reserved unknown marker
		return nil, false
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] |= 0x80 >> (width - 1)
	return out, true
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func indexOf(b, marker []byte) int {
	for i := 0; i+len(marker) <= len(b); i++ {
		if hasPrefix(b[i:], marker) {
			return i
		}
	}
	return -1
}
