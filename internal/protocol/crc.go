package protocol

// crcPolynomial is the reflected Dallas/Maxim polynomial (x^8 + x^5 + x^4 + 1)
const crcPolynomial = 0x8C

// Checksum computes the controller's 8-bit CRC over buf[start..end], both
// ends inclusive. The caller is responsible for keeping the range in bounds.
//
// Header checksum:  Checksum(frame, 1, 8)
// Payload checksum: Checksum(frame, 1, len(frame)-3)
func Checksum(buf []byte, start, end int) byte {
	var crc byte
	for i := start; i <= end; i++ {
		crc ^= buf[i]
		for bit := 0; bit < 8; bit++ {
			if crc&0x01 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
