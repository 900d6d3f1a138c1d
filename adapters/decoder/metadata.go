package decoder

import (
	"bytes"
	"encoding/binary"
	"math"
)

// sourceMeta is what the container says about the pixels.
type sourceMeta struct {
	orientation int
	hasEXIF     bool
	hasICC      bool
	dpi         int
}

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	jfifID       = []byte("JFIF\x00")
	exifID       = []byte("Exif\x00\x00")
	iccID        = []byte("ICC_PROFILE\x00")
)

// readSourceMeta scans container metadata.  jpegLike allows a damaged SOI
// (the header-repair case); everything else requires intact signatures.
// Malformed segments end the scan quietly.
func readSourceMeta(data []byte, jpegLike bool) sourceMeta {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return scanPNG(data)
	case jpegLike || bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return scanJPEG(data)
	}
	return sourceMeta{}
}

func scanJPEG(data []byte) sourceMeta {
	var m sourceMeta
	i := 2
	for first := true; i+4 <= len(data); first = false {
		// The first marker's 0xFF is overwritten in damaged headers.
		if !first && data[i] != 0xFF {
			break
		}
		marker := data[i+1]
		if marker == 0xD9 || marker == 0xDA { // EOI, SOS
			break
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if length < 2 || i+2+length > len(data) {
			break
		}
		seg := data[i+4 : i+2+length]
		switch marker {
		case 0xE0:
			if bytes.HasPrefix(seg, jfifID) && len(seg) >= 12 {
				m.dpi = densityToDPI(seg[7], int(binary.BigEndian.Uint16(seg[8:])))
			}
		case 0xE1:
			if bytes.HasPrefix(seg, exifID) {
				m.hasEXIF = true
				m.orientation = tiffOrientation(seg[len(exifID):])
			}
		case 0xE2:
			if bytes.HasPrefix(seg, iccID) {
				m.hasICC = true
			}
		}
		i += 2 + length
	}
	return m
}

func densityToDPI(units byte, density int) int {
	switch units {
	case 1: // dots per inch
		return density
	case 2: // dots per cm
		return int(math.Round(float64(density) * 2.54))
	}
	return 0
}

func scanPNG(data []byte) sourceMeta {
	var m sourceMeta
	for i := len(pngSignature); i+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		end := i + 8 + n
		if n < 0 || end+4 > len(data) {
			break
		}
		body := data[i+8 : end]
		switch typ {
		case "pHYs":
			if len(body) == 9 && body[8] == 1 { // pixels per metre
				m.dpi = int(math.Round(float64(binary.BigEndian.Uint32(body)) * 0.0254))
			}
		case "iCCP":
			m.hasICC = true
		case "eXIf":
			m.hasEXIF = true
			m.orientation = tiffOrientation(body)
		case "IDAT", "IEND":
			return m
		}
		i = end + 4 // skip CRC
	}
	return m
}

// tiffOrientation returns tag 0x0112 from IFD0 of a TIFF-structured EXIF
// block, or 0.
func tiffOrientation(t []byte) int {
	if len(t) < 8 {
		return 0
	}
	var bo binary.ByteOrder
	switch string(t[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return 0
	}
	if bo.Uint16(t[2:]) != 42 {
		return 0
	}
	ifd := int(bo.Uint32(t[4:]))
	if ifd < 8 || ifd+2 > len(t) {
		return 0
	}
	count := int(bo.Uint16(t[ifd:]))
	for k := 0; k < count; k++ {
		e := ifd + 2 + k*12
		if e+12 > len(t) {
			return 0
		}
		if bo.Uint16(t[e:]) != 0x0112 {
			continue
		}
		if bo.Uint16(t[e+2:]) != 3 { // SHORT
			return 0
		}
		v := int(bo.Uint16(t[e+8:]))
		if v >= 1 && v <= 8 {
			return v
		}
		return 0
	}
	return 0
}
