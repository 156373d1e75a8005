package protocol

func readMessageHeader(c *Cursor, msg *Message, opts Options) error {
	switch msg.Variant {
	case VariantBinary:
		return readBinaryHeader(c, msg)
	case VariantCompact:
		return readCompactHeader(c, msg, opts)
	default:
		return ErrUnsupportedVersion
	}
}

// readBinaryHeader reads [version|type:4][name len:4][name][seq:4].
func readBinaryHeader(c *Cursor, msg *Message) error {
	word, err := c.ReadUint32()
	if err != nil {
		return err
	}
	if word&binaryVersionMask != binaryVersion1 {
		return ErrUnsupportedVersion
	}
	msg.Kind = messageKindOf(uint8(word))

	name, err := readBinaryBytes(c)
	if err != nil {
		return err
	}
	msg.Method = lossyString(name)

	seq, err := c.ReadUint32()
	if err != nil {
		return err
	}
	msg.SeqID = int32(seq)
	return nil
}

// readCompactHeader reads [0x82][type<<5|version][seq varint][name len varint][name].
func readCompactHeader(c *Cursor, msg *Message, opts Options) error {
	if _, err := c.ReadByte(); err != nil {
		return err
	}
	b, err := c.ReadByte()
	if err != nil {
		return err
	}
	if b&compactVersionMask != compactVersion {
		return ErrUnsupportedVersion
	}
	// Compact writers put the kind in the high 3 bits of this byte, not in
	// the byte after it.
	msg.Kind = messageKindOf(b >> compactTypeShift)

	seq, err := readCompactSeqID(c, opts.CompactSeqID)
	if err != nil {
		return err
	}
	msg.SeqID = seq

	name, err := readCompactBytes(c)
	if err != nil {
		return err
	}
	msg.Method = lossyString(name)
	return nil
}

func readCompactSeqID(c *Cursor, enc SeqIDEncoding) (int32, error) {
	if enc == SeqIDVarint {
		u, err := c.ReadUvarint()
		if err != nil {
			return 0, err
		}
		if u > 0xffffffff {
			return 0, ErrVarintOverflow
		}
		return int32(uint32(u)), nil
	}
	return c.ReadZigZag32()
}

func readBinaryBytes(c *Cursor) ([]byte, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(c.Remaining()) {
		return nil, ErrTruncated
	}
	return c.Next(int(n))
}

func readCompactBytes(c *Cursor) ([]byte, error) {
	n, err := c.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Remaining()) {
		return nil, ErrTruncated
	}
	return c.Next(int(n))
}
