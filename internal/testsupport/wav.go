package testsupport

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"
)

// WriteWAV writes a silent PCM WAV file with the given format to path.
func WriteWAV(t testing.TB, path string, sampleRate, bitDepth, channels int, seconds float64) {
	t.Helper()

	frames := int(seconds * float64(sampleRate))
	blockAlign := channels * bitDepth / 8
	dataLen := frames * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	WriteFile(t, path, buf.Bytes())
}

func parentDir(path string) string {
	return filepath.Dir(path)
}
