package spatial

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// MagicV3 and MagicV2 are the versioned file magics of spec.md §6. Only
// the nreads field's width differs between them.
const (
	MagicV3 = "RGF3\x00"
	MagicV2 = "RGF2\x00"
)

const commandLineBufSize = 1024

// LaneHeader is the per-lane scalar header spec.md §6 lays out before the
// tile array, region grid, and byte plane.
type LaneHeader struct {
	Lane        int32
	CoordShift  int32
	CoordFactor int32
	Tiles       []TileEntry
	RegionMap   []int32 // nRegionsX*nRegionsY dense grid of plane indices, -1 where undiscovered
	NRegions    int32   // number of distinct regions in the byte plane (<= len(RegionMap))
	RegionSize  int32
	NRegionsX   int32
	NRegionsY   int32
	NReads      uint64
	ReadLength  [3]int32
	Data        []byte // filter_data_size bytes, one per (tile,read,cycle,region)
}

// TileEntry is one (tile, read_count) pair of the tile array.
type TileEntry struct {
	Tile      int32
	ReadCount uint64
}

func (h *LaneHeader) totalReadLength() int32 {
	var s int32
	for _, r := range h.ReadLength {
		s += r
	}
	return s
}

// writer is the teacher's little-endian binary-writer shape
// (encoding/bam/marshal.go's binaryWriter), reused verbatim in design for
// the Filter File's own versioned scalar layout.
type writer struct {
	w   *bytes.Buffer
	buf [8]byte
}

func (w *writer) u8(v uint8)   { w.buf[0] = v; w.w.Write(w.buf[:1]) }
func (w *writer) i32(v int32)  { binary.LittleEndian.PutUint32(w.buf[:4], uint32(v)); w.w.Write(w.buf[:4]) }
func (w *writer) u32(v uint32) { binary.LittleEndian.PutUint32(w.buf[:4], v); w.w.Write(w.buf[:4]) }
func (w *writer) u64(v uint64) { binary.LittleEndian.PutUint64(w.buf[:8], v); w.w.Write(w.buf[:8]) }
func (w *writer) bytes(b []byte) { w.w.Write(b) }

// WriteFile serializes the file header (magic + command line) followed
// by one lane block per entry in lanes, per spec.md §6.
func WriteFile(out io.Writer, commandLine string, lanes []*LaneHeader) error {
	buf := &bytes.Buffer{}
	w := &writer{w: buf}
	w.bytes([]byte(MagicV3))
	cl := make([]byte, commandLineBufSize)
	copy(cl, commandLine)
	w.bytes(cl)
	for _, l := range lanes {
		writeLane(w, l)
	}
	_, err := out.Write(buf.Bytes())
	if err != nil {
		return bamerr.New("spatial", bamerr.IoError, err)
	}
	return nil
}

func writeLane(w *writer, l *LaneHeader) {
	w.i32(l.Lane)
	w.i32(l.CoordShift)
	w.i32(l.CoordFactor)
	w.u64(uint64(len(l.Tiles)))
	for _, t := range l.Tiles {
		w.i32(t.Tile)
		w.u64(t.ReadCount)
	}
	w.i32(int32(len(l.RegionMap)))
	for _, r := range l.RegionMap {
		w.i32(r)
	}
	w.i32(l.NRegions)
	w.i32(l.RegionSize)
	w.i32(l.NRegionsX)
	w.i32(l.NRegionsY)
	w.u64(l.NReads)
	for _, r := range l.ReadLength {
		w.i32(r)
	}
	w.u32(uint32(len(l.Data)))
	w.bytes(l.Data)
}

// reader is the matching little-endian reader.
type reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (r *reader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.err = err
		return nil
	}
	return r.buf[:n]
}

func (r *reader) i32() int32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *reader) u32() uint32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadFile parses a Filter File, returning the command line and one
// LaneHeader per lane block, terminated by EOF (spec.md §6). A magic that
// matches neither MagicV3 nor MagicV2 is a hard FilterMagicMismatch error.
func ReadFile(in io.Reader) (commandLine string, lanes []*LaneHeader, err error) {
	magic := make([]byte, 5)
	if _, err := io.ReadFull(in, magic); err != nil {
		return "", nil, bamerr.New("spatial", bamerr.IoError, err)
	}
	v2 := false
	switch string(magic) {
	case MagicV3:
	case MagicV2:
		v2 = true
	default:
		return "", nil, bamerr.New("spatial", bamerr.FilterMagicMismatch,
			"unrecognized filter magic")
	}
	clBuf := make([]byte, commandLineBufSize)
	if _, err := io.ReadFull(in, clBuf); err != nil {
		return "", nil, bamerr.New("spatial", bamerr.IoError, err)
	}
	commandLine = string(bytes.TrimRight(clBuf, "\x00"))

	rd := &reader{r: in}
	for {
		l, ok := readLane(rd, v2)
		if !ok {
			break
		}
		lanes = append(lanes, l)
	}
	if rd.err != nil && rd.err != io.EOF {
		return "", nil, bamerr.New("spatial", bamerr.IoError, rd.err)
	}
	return commandLine, lanes, nil
}

func readLane(r *reader, v2 bool) (*LaneHeader, bool) {
	l := &LaneHeader{}
	l.Lane = r.i32()
	if r.err != nil {
		return nil, false
	}
	l.CoordShift = r.i32()
	l.CoordFactor = r.i32()
	nTiles := r.u64()
	l.Tiles = make([]TileEntry, nTiles)
	for i := range l.Tiles {
		l.Tiles[i].Tile = r.i32()
		l.Tiles[i].ReadCount = r.u64()
	}
	gridSize := r.i32()
	l.RegionMap = make([]int32, gridSize)
	for i := range l.RegionMap {
		l.RegionMap[i] = r.i32()
	}
	l.NRegions = r.i32()
	l.RegionSize = r.i32()
	l.NRegionsX = r.i32()
	l.NRegionsY = r.i32()
	if v2 {
		l.NReads = uint64(r.i32())
	} else {
		l.NReads = r.u64()
	}
	for i := range l.ReadLength {
		l.ReadLength[i] = r.i32()
	}
	dataSize := r.u32()
	if r.err != nil {
		return nil, false
	}
	l.Data = make([]byte, dataSize)
	if _, err := io.ReadFull(r.r, l.Data); err != nil {
		r.err = err
		return nil, false
	}
	return l, true
}
