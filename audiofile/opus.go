package audiofile

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// OpusSampleRate is the rate decoded Opus audio is delivered at.
const OpusSampleRate = 48000

// maxOpusPacketSamples bounds one decoded packet (120 ms at 48 kHz, stereo).
const maxOpusPacketSamples = 5760 * 2

// silkFrameMillis maps the low two bits of a SILK-mode configuration to the
// frame duration.
var silkFrameMillis = [4]int{10, 20, 40, 60}

// opusTOC is the table-of-contents byte leading every Opus packet.
type opusTOC byte

func (t opusTOC) config() int    { return int(t >> 3) }
func (t opusTOC) stereo() bool   { return t&0x04 != 0 }
func (t opusTOC) frameCode() int { return int(t & 0x03) }
func (t opusTOC) silk() bool     { return t.config() < 12 }

// frameSamples returns the 48 kHz samples one frame of this packet decodes to.
func (t opusTOC) frameSamples() int {
	return silkFrameMillis[t.config()%4] * OpusSampleRate / 1000
}

// OpusSource decodes a sequence of Opus packets into a mono source at
// OpusSampleRate. Only single-frame mono SILK packets are supported.
type OpusSource struct {
	*MemorySource
	packets int
}

// NewOpusSource decodes packets up front.
func NewOpusSource(packets [][]byte, opts ...Option) (*OpusSource, error) {
	o := applyOptions(opts)
	dec := opus.NewDecoder()
	pcm := make([]byte, maxOpusPacketSamples*2)

	var data []float32
	for i, pkt := range packets {
		if len(pkt) == 0 {
			return nil, fmt.Errorf("%w: opus packet %d is empty", core.ErrFormat, i)
		}
		toc := opusTOC(pkt[0])
		switch {
		case !toc.silk():
			return nil, fmt.Errorf("%w: opus packet %d uses configuration %d, only SILK is decoded", core.ErrFormat, i, toc.config())
		case toc.stereo():
			return nil, fmt.Errorf("%w: opus packet %d is stereo", core.ErrFormat, i)
		case toc.frameCode() != 0:
			return nil, fmt.Errorf("%w: opus packet %d holds multiple frames", core.ErrFormat, i)
		}

		if _, _, err := dec.Decode(pkt, pcm); err != nil {
			return nil, fmt.Errorf("%w: decode opus packet %d: %w", core.ErrFile, i, err)
		}
		n := toc.frameSamples()
		for j := range n {
			v := int16(binary.LittleEndian.Uint16(pcm[j*2:]))
			data = append(data, float32(v)/32768)
		}
	}

	o.log.WithFields(logrus.Fields{
		"component": "audiofile",
		"packets":   len(packets),
		"frames":    len(data),
	}).Debug("decoded opus packets")
	return &OpusSource{
		MemorySource: newMemorySource(data, 1, OpusSampleRate, o),
		packets:      len(packets),
	}, nil
}

// NumPackets returns the number of packets decoded.
func (s *OpusSource) NumPackets() int { return s.packets }

var _ SourceFile = (*OpusSource)(nil)
