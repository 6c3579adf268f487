package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWrapPCM16LE(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	wav := WrapPCM16LE(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatalf("bad container magic: % x", wav[:12])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", size, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("payload mismatch")
	}
}

func TestWrapPCM16LEDefaultRate(t *testing.T) {
	wav := WrapPCM16LE(nil, 0)
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != DefaultSampleRate {
		t.Fatalf("sample rate = %d, want %d", rate, DefaultSampleRate)
	}
}
