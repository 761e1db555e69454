// Package eventlog reads and writes the LCM log container format: a flat
// sequence of framed events, each carrying a channel name, a timestamp in
// microseconds and an opaque payload.
package eventlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Every event starts with this sync word.
const Magic uint32 = 0xEDA1DA01

const headerLen = 28 // magic + event number + timestamp + channel len + data len

// Maximum sane sizes, used to reject garbage headers early instead of
// attempting huge allocations.
const (
	maxChannelLen = 1 << 10
	maxDataLen    = 1 << 28
)

// Event is one record of a log.
type Event struct {
	EventNum  int64
	Timestamp int64 // microseconds
	Channel   string
	Data      []byte
}

// Reader iterates a log file event by event.
type Reader struct {
	r       io.Reader
	closer  io.Closer
	size    int64
	pos     int64
	resyncs int64
	event   *Event
	err     error
	hdr     [headerLen]byte
}

// Open opens the log at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r := NewReader(f, fi.Size())
	r.closer = f
	return r, nil
}

// NewReader reads a log from r. size is the total length of the stream in
// bytes, or 0 when unknown; it is only used for progress reporting.
func NewReader(r io.Reader, size int64) *Reader {
	return &Reader{r: r, size: size}
}

// Next indicates if there is an event to read. It returns false at end of
// stream and on I/O errors; check Err after the iteration.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	if !r.sync() {
		return false
	}

	var (
		num, ts             int64
		channelLen, dataLen int32
	)
	for {
		num = int64(binary.BigEndian.Uint64(r.hdr[4:12]))
		ts = int64(binary.BigEndian.Uint64(r.hdr[12:20]))
		channelLen = int32(binary.BigEndian.Uint32(r.hdr[20:24]))
		dataLen = int32(binary.BigEndian.Uint32(r.hdr[24:28]))
		if channelLen >= 0 && channelLen <= maxChannelLen && dataLen >= 0 && dataLen <= maxDataLen {
			break
		}
		// Garbage header behind a valid sync word; slide forward to
		// the next sync word.
		r.resyncs++
		if !r.slideToMagic() {
			return false
		}
	}

	buf := make([]byte, int(channelLen)+int(dataLen))
	n, err := io.ReadFull(r.r, buf)
	r.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false
		}
		r.err = err
		return false
	}

	r.event = &Event{
		EventNum:  num,
		Timestamp: ts,
		Channel:   string(buf[:channelLen]),
		Data:      buf[channelLen:],
	}
	return true
}

// sync reads the next header, scanning forward for the sync word when the
// stream contains corrupt regions, the way the C library's reader does.
func (r *Reader) sync() bool {
	n, err := io.ReadFull(r.r, r.hdr[:])
	r.pos += int64(n)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			r.err = err
		}
		return false
	}
	if binary.BigEndian.Uint32(r.hdr[:4]) == Magic {
		return true
	}

	r.resyncs++
	return r.slideToMagic()
}

// slideToMagic advances the header buffer one byte at a time until it
// starts with the sync word. It returns false at end of stream or on an
// I/O error (recorded in r.err).
func (r *Reader) slideToMagic() bool {
	var one [1]byte
	for {
		copy(r.hdr[:], r.hdr[1:])
		n, err := io.ReadFull(r.r, one[:])
		r.pos += int64(n)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return false
		}
		r.hdr[headerLen-1] = one[0]
		if binary.BigEndian.Uint32(r.hdr[:4]) == Magic {
			return true
		}
	}
}

// Read returns the event found by the last call to Next.
func (r *Reader) Read() (*Event, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.event, nil
}

// Err returns the first non-EOF error encountered by the reader.
func (r *Reader) Err() error { return r.err }

// Tell returns the number of bytes consumed so far.
func (r *Reader) Tell() int64 { return r.pos }

// Size returns the total size of the log in bytes, or 0 when unknown.
func (r *Reader) Size() int64 { return r.size }

// Resyncs returns how many times the reader had to scan for the sync word.
func (r *Reader) Resyncs() int64 { return r.resyncs }

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Writer appends events to a log stream.
type Writer struct {
	w   io.Writer
	num int64
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Append writes one event, assigning it the next event number.
func (w *Writer) Append(timestamp int64, channel string, data []byte) error {
	if len(channel) > maxChannelLen {
		return fmt.Errorf("eventlog: channel name too long (%d bytes)", len(channel))
	}
	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], Magic)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(w.num))
	binary.BigEndian.PutUint64(hdr[12:20], uint64(timestamp))
	binary.BigEndian.PutUint32(hdr[20:24], uint32(len(channel)))
	binary.BigEndian.PutUint32(hdr[24:28], uint32(len(data)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, channel); err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	w.num++
	return nil
}
