// SPDX-License-Identifier: MIT

// Package codec probes and decodes audio sources into the graph's
// interleaved stereo float32 form. WAV, MP3, Ogg Vorbis and FLAC are
// supported; sources are opened through an Opener so tests and the fetcher
// can supply bytes from anywhere.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"soundhub/internal/graph"
)

// MaxBufferDuration is the longest source, in seconds, that is fully decoded
// into memory. Longer sources are streamed.
const MaxBufferDuration = 600.0

var (
	// ErrUnknownFormat is returned when a source matches no supported format.
	ErrUnknownFormat = errors.New("codec: unknown audio format")
	// ErrUnsupported is returned for recognised files with an unsupported layout.
	ErrUnsupported = errors.New("codec: unsupported audio layout")
)

// Format names a container/codec.
type Format string

const (
	WAV  Format = "wav"
	MP3  Format = "mp3"
	Ogg  Format = "ogg"
	FLAC Format = "flac"
)

// Info is the metadata returned by Probe.
type Info struct {
	Format     Format
	Duration   float64 // Seconds.
	SampleRate int
	Channels   int
}

// Opener opens a source locator for reading.
type Opener interface {
	Open(ctx context.Context, src string) (io.ReadSeekCloser, error)
}

// UseBuffer reports whether a source of the given duration should be fully
// decoded into memory rather than streamed.
func UseBuffer(duration float64, force bool) bool {
	return force || duration <= MaxBufferDuration
}

// reader is a format decoder producing interleaved stereo frames.
type reader interface {
	graph.Decoder
	// frames returns the total length in frames, or -1 if unknown.
	frames() int64
}

// formatFromExt guesses the format from a locator's extension.
func formatFromExt(src string) (Format, bool) {
	if i := strings.IndexAny(src, "?#"); i >= 0 && strings.Contains(src, "://") {
		src = src[:i]
	}
	switch strings.ToLower(path.Ext(src)) {
	case ".wav", ".wave":
		return WAV, true
	case ".mp3":
		return MP3, true
	case ".ogg", ".oga":
		return Ogg, true
	case ".flac":
		return FLAC, true
	}
	return "", false
}

// sniff identifies the format from the first bytes of r and rewinds it.
func sniff(r io.ReadSeeker) (Format, error) {
	head := make([]byte, 12)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return WAV, nil
	case bytes.HasPrefix(head, []byte("OggS")):
		return Ogg, nil
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FLAC, nil
	case bytes.HasPrefix(head, []byte("ID3")), len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return MP3, nil
	}
	return "", ErrUnknownFormat
}

// detect settles the format of an opened source, preferring its content
// over the extension.
func detect(src string, r io.ReadSeeker) (Format, error) {
	f, err := sniff(r)
	if err == nil {
		return f, nil
	}
	if ext, ok := formatFromExt(src); ok {
		return ext, nil
	}
	return "", fmt.Errorf("%s: %w", src, err)
}

func newReader(format Format, rs io.ReadSeekCloser) (reader, error) {
	switch format {
	case WAV:
		return newWAVReader(rs)
	case MP3:
		return newMP3Reader(rs)
	case Ogg:
		return newOggReader(rs)
	case FLAC:
		return newFLACReader(rs)
	}
	return nil, ErrUnknownFormat
}

// open opens src and wraps it in the matching format reader.
func open(ctx context.Context, o Opener, src string) (reader, Format, error) {
	rs, err := o.Open(ctx, src)
	if err != nil {
		return nil, "", err
	}
	format, err := detect(src, rs)
	if err != nil {
		rs.Close()
		return nil, "", err
	}
	r, err := newReader(format, rs)
	if err != nil {
		rs.Close()
		return nil, "", fmt.Errorf("%s: %w", src, err)
	}
	return r, format, nil
}

// Probe reads only the metadata needed to learn a source's duration.
func Probe(ctx context.Context, o Opener, src string) (Info, error) {
	h, err := OpenHandle(ctx, o, src)
	if err != nil {
		return Info{}, err
	}
	defer h.Close()
	return h.Info(), nil
}

// DecodeAll fully decodes src into memory at its native sample rate.
func DecodeAll(ctx context.Context, o Opener, src string) (*graph.Buffer, error) {
	h, err := OpenHandle(ctx, o, src)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Decode(ctx)
}

// OpenStream opens src for progressive decoding. The caller owns the
// returned decoder and must close it.
func OpenStream(ctx context.Context, o Opener, src string) (graph.Decoder, error) {
	r, _, err := open(ctx, o, src)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Handle is an opened, probed source that can be decoded any number of
// times. A remote source is fetched once, when the handle is opened.
type Handle struct {
	src  string
	info Info

	// rs is kept open when it supports ReadAt; every decoder then reads
	// through its own section. Otherwise o reopens src for each decoder.
	rs   io.ReadSeekCloser
	ra   io.ReaderAt
	size int64
	o    Opener
}

// OpenHandle opens src and reads its metadata.
func OpenHandle(ctx context.Context, o Opener, src string) (*Handle, error) {
	rs, err := o.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	info, err := probe(src, rs)
	if err != nil {
		rs.Close()
		return nil, err
	}
	h := &Handle{src: src, info: info}
	if ra, ok := rs.(io.ReaderAt); ok {
		size, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			rs.Close()
			return nil, err
		}
		h.rs, h.ra, h.size = rs, ra, size
	} else {
		rs.Close()
		h.o = o
	}
	return h, nil
}

func probe(src string, rs io.ReadSeeker) (Info, error) {
	format, err := detect(src, rs)
	if err != nil {
		return Info{}, err
	}
	var info Info
	switch format {
	case WAV:
		info, err = probeWAV(rs)
	case MP3:
		info, err = probeMP3(rs)
	case Ogg:
		info, err = probeOgg(rs)
	case FLAC:
		info, err = probeFLAC(rs)
	}
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", src, err)
	}
	info.Format = format
	return info, nil
}

// Info returns the metadata read when the handle was opened.
func (h *Handle) Info() Info { return h.info }

func (h *Handle) reader(ctx context.Context) (reader, error) {
	var rs io.ReadSeekCloser
	if h.ra != nil {
		rs = section{io.NewSectionReader(h.ra, 0, h.size)}
	} else {
		var err error
		if rs, err = h.o.Open(ctx, h.src); err != nil {
			return nil, err
		}
	}
	r, err := newReader(h.info.Format, rs)
	if err != nil {
		rs.Close()
		return nil, fmt.Errorf("%s: %w", h.src, err)
	}
	return r, nil
}

// Stream returns a new decoder positioned at the start of the source. It
// must be closed before the handle.
func (h *Handle) Stream(ctx context.Context) (graph.Decoder, error) {
	return h.reader(ctx)
}

// Decode fully decodes the source into memory at its native sample rate.
func (h *Handle) Decode(ctx context.Context) (*graph.Buffer, error) {
	r, err := h.reader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	capacity := 0
	if n := r.frames(); n > 0 {
		capacity = int(n) * graph.Channels
	}
	data := make([]float32, 0, capacity)
	chunk := make([]float32, 4096*graph.Channels)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		data = append(data, chunk[:n*graph.Channels]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.src, err)
		}
		if n == 0 {
			break
		}
	}
	return &graph.Buffer{SampleRate: r.SampleRate(), Data: data}, nil
}

// Close releases the underlying source, removing a spooled download.
func (h *Handle) Close() error {
	if h.rs == nil {
		return nil
	}
	return h.rs.Close()
}

// section is a decoder's private view of a shared handle.
type section struct {
	*io.SectionReader
}

func (section) Close() error { return nil }

// toStereo writes one frame of ch interleaved samples into dst as stereo.
func toStereo(dst []float32, frame []float32, ch int) {
	if ch == 1 {
		dst[0], dst[1] = frame[0], frame[0]
		return
	}
	dst[0], dst[1] = frame[0], frame[1]
}
