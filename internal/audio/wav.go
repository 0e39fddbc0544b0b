package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// SegmentDuration decodes a RIFF/WAVE header and returns the playback
// duration of the segment. The backend streams WAV-framed PCM; anything else
// is a decode failure and the segment is dropped by the sequencer.
func SegmentDuration(segment []byte) (time.Duration, error) {
	if len(segment) < 12 || string(segment[0:4]) != "RIFF" || string(segment[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE segment")
	}

	var (
		byteRate uint32
		dataLen  uint32
		haveFmt  bool
		haveData bool
	)

	// Walk the chunk list. Chunks are 8-byte headers plus padded payloads.
	off := 12
	for off+8 <= len(segment) {
		id := string(segment[off : off+4])
		size := binary.LittleEndian.Uint32(segment[off+4 : off+8])
		body := off + 8
		if body+int(size) > len(segment) {
			return 0, fmt.Errorf("truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return 0, fmt.Errorf("short fmt chunk (%d bytes)", size)
			}
			byteRate = binary.LittleEndian.Uint32(segment[body+8 : body+12])
			haveFmt = true
		case "data":
			dataLen = size
			haveData = true
		}

		off = body + int(size)
		if size%2 == 1 {
			off++ // chunk payloads are word-aligned
		}
	}

	if !haveFmt || !haveData {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}
	if byteRate == 0 {
		return 0, fmt.Errorf("zero byte rate")
	}

	return time.Duration(float64(dataLen) / float64(byteRate) * float64(time.Second)), nil
}

// ClockPlayer plays segments by pacing on the decoded duration, optionally
// copying PCM bytes to a sink (an output device handle or a capture file).
// It stands in for a hardware output path the embedding application provides.
type ClockPlayer struct {
	Sink io.Writer
}

// Play blocks for the decoded duration of the segment or until ctx is done.
func (p *ClockPlayer) Play(ctx context.Context, segment []byte) error {
	d, err := SegmentDuration(segment)
	if err != nil {
		return err
	}
	if p.Sink != nil {
		if _, err := p.Sink.Write(segment); err != nil {
			return fmt.Errorf("write to sink: %w", err)
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
