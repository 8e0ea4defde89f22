package webrtc

// h264Depacketizer extracts NAL units from RTP H264 payloads. Each instance
// owns its FU-A reassembly buffer so concurrent streams cannot corrupt one
// another.
type h264Depacketizer struct {
	fuaBuf []byte
}

func newH264Depacketizer() *h264Depacketizer {
	return &h264Depacketizer{}
}

// depacketize returns the NAL units carried by one RTP payload. Single NAL,
// STAP-A, and FU-A packetization are supported; FU-A fragments accumulate
// until the end fragment arrives.
func (d *h264Depacketizer) depacketize(payload []byte) [][]byte {
	if len(payload) < 1 {
		return nil
	}

	naluType := payload[0] & 0x1f

	switch {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}

	case naluType == 24:
		return d.depacketizeSTAPA(payload)

	case naluType == 28:
		return d.depacketizeFUA(payload)

	default:
		return nil
	}
}

func (d *h264Depacketizer) depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1 // skip STAP-A header byte

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if offset+size > len(payload) {
			break
		}
		if size > 0 {
			nalus = append(nalus, payload[offset:offset+size])
		}
		offset += size
	}
	return nalus
}

func (d *h264Depacketizer) depacketizeFUA(payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0 // F + NRI bits from FU indicator
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	if start {
		// Reconstruct NAL header: F+NRI from FU indicator, type from FU header
		d.fuaBuf = []byte{fnri | naluType}
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	} else {
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	}

	if end {
		nalu := d.fuaBuf
		d.fuaBuf = nil
		return [][]byte{nalu}
	}

	return nil
}
