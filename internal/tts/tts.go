package tts

import "context"

// Synthesizer turns a completed response text into audio bytes.
type Synthesizer interface {
	// Synthesize returns the encoded audio and its format label ("mp3",
	// "linear16", "ogg_opus").
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// Chunk splits audio into fixed-size pieces for streaming delivery. The last
// chunk may be shorter; empty input yields no chunks.
func Chunk(data []byte, size int) [][]byte {
	if size <= 0 || len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}
