package protocol

const (
	binaryMarker       byte = 0x80
	binaryVersion      byte = 0x01
	compactMarker      byte = 0x82
	compactVersion     byte = 0x01
	compactVersionMask byte = 0x1f
	compactTypeShift        = 5

	// binaryVersion1 is the version half of the Binary version+type word.
	binaryVersion1    uint32 = 0x80010000
	binaryVersionMask uint32 = 0xffff0000

	minDetectLen = 4
)

// Detect classifies buf by its leading bytes.
func Detect(buf []byte) (Variant, error) {
	if len(buf) < minDetectLen {
		return VariantUnknown, ErrTruncated
	}
	switch {
	case buf[0] == compactMarker && buf[1]&compactVersionMask == compactVersion:
		return VariantCompact, nil
	case buf[0] == binaryMarker && buf[1] == binaryVersion:
		return VariantBinary, nil
	default:
		return VariantUnknown, ErrUnsupportedVersion
	}
}
