package checksums

import (
	"encoding/binary"
	"hash/crc32"
)

func CalculateCRC(checkSumLocation []byte, buffer []byte) {
	chksum1 := crc32.ChecksumIEEE(buffer)
	binary.BigEndian.PutUint32(checkSumLocation, chksum1)
}

func CompareCRC(buffer1 []byte, buffer2 []byte) bool {
	if len(buffer1) < 4 || len(buffer2) < 4 {
		return false
	}
	return binary.BigEndian.Uint32(buffer1) == binary.BigEndian.Uint32(buffer2)
}

// VerifyCRC recomputes the checksum of buffer and compares it with the one stored at checkSumLocation.
func VerifyCRC(checkSumLocation []byte, buffer []byte) bool {
	computed := make([]byte, 4)
	CalculateCRC(computed, buffer)
	return CompareCRC(computed, checkSumLocation)
}
