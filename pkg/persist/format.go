// Package persist implements the binary dump/load format for an HNSW
// index: a fixed 40-byte header, an HNSW subheader, a vector section, and
// a node section, written with explicit little-endian encoding/binary
// calls rather than raw struct-memory casts.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/orneryd/vecdex/pkg/hnsw"
	"github.com/orneryd/vecdex/pkg/vecmath"
)

const (
	headerSize = 40

	versionMajor = 1
	versionMinor = 0
	versionPatch = 0

	nilIndex uint32 = 0xFFFFFFFF
)

var magicHNSW = [4]byte{'V', 'H', 'N', 'S'}

// Params carries the configuration fields that accompany a graph snapshot
// on disk: everything the fixed header and HNSW subheader need besides
// the node/vector data itself.
type Params struct {
	Metric      vecmath.Metric
	Dims        uint16
	DimsAligned uint16
	M0          int
	EfConstruct int
	EfSearch    int
}

type header struct {
	magic               [4]byte
	versionMajor        uint8
	versionMinor        uint8
	versionPatch        uint8
	headerSize          uint8
	elements            uint32
	method              uint16
	dims                uint16
	dimsAligned         uint16
	onlyVectors         uint16
	vectorSize          uint16
	nodeSize            uint16
	vectorSectionOffset uint64
	nodeSectionOffset   uint64
}

type subheader struct {
	efSearch    uint32
	efConstruct uint32
	m0          uint32
	// degreesComputed is always written 1; Load ignores it and always
	// recomputes in-degrees by walking outgoing edges. Kept for forward
	// compatibility with a future sparse-degree variant.
	degreesComputed uint8
	headIndex       uint32
	entryIndex      uint32
	topLevel        uint32
}

// Dump writes snap and params to w in the on-disk format.
func Dump(w io.Writer, snap hnsw.Snapshot, params Params) error {
	bw := bufio.NewWriter(w)

	vectorSize := 16 + int(params.DimsAligned)*4 // id + tag + payload
	hdr := header{
		magic:               magicHNSW,
		versionMajor:        versionMajor,
		versionMinor:        versionMinor,
		versionPatch:        versionPatch,
		headerSize:          headerSize,
		elements:            uint32(snap.Elements),
		method:              uint16(params.Metric),
		dims:                params.Dims,
		dimsAligned:         params.DimsAligned,
		onlyVectors:         0,
		vectorSize:          uint16(vectorSize),
		nodeSize:            0, // variable-length; see node section layout
		vectorSectionOffset: headerSize + subheaderSize(),
	}
	hdr.nodeSectionOffset = hdr.vectorSectionOffset + uint64(len(snap.Nodes))*uint64(vectorSize)

	if err := writeHeader(bw, hdr); err != nil {
		return fmt.Errorf("persist: write header: %w", err)
	}

	sh := subheader{
		efSearch:        uint32(params.EfSearch),
		efConstruct:     uint32(params.EfConstruct),
		m0:              uint32(params.M0),
		degreesComputed: 1,
		headIndex:       refToIndex(snap.Head),
		entryIndex:      refToIndex(snap.Entry),
		topLevel:        uint32(snap.TopLevel),
	}
	if err := writeSubheader(bw, sh); err != nil {
		return fmt.Errorf("persist: write subheader: %w", err)
	}

	for _, n := range snap.Nodes {
		if err := writeVector(bw, n.Vector); err != nil {
			return fmt.Errorf("persist: write vector: %w", err)
		}
	}

	for _, n := range snap.Nodes {
		if err := writeNode(bw, n); err != nil {
			return fmt.Errorf("persist: write node: %w", err)
		}
	}

	return bw.Flush()
}

// Load reads a dump previously written by Dump, returning the snapshot
// and params needed to reconstruct a live graph via hnsw.LoadGraph.
func Load(r io.Reader) (hnsw.Snapshot, Params, error) {
	br := bufio.NewReader(r)

	hdr, err := readHeader(br)
	if err != nil {
		return hnsw.Snapshot{}, Params{}, fmt.Errorf("persist: read header: %w", err)
	}
	if hdr.magic != magicHNSW {
		return hnsw.Snapshot{}, Params{}, errInvalidFile("bad magic")
	}
	if hdr.headerSize != headerSize {
		return hnsw.Snapshot{}, Params{}, errInvalidFile("unexpected header size")
	}

	sh, err := readSubheader(br)
	if err != nil {
		return hnsw.Snapshot{}, Params{}, fmt.Errorf("persist: read subheader: %w", err)
	}

	vectors := make([]*hnsw.Vector, hdr.elements)
	for i := range vectors {
		v, err := readVector(br, hdr.dimsAligned)
		if err != nil {
			return hnsw.Snapshot{}, Params{}, fmt.Errorf("persist: read vector %d: %w", i, err)
		}
		vectors[i] = v
	}

	nodes := make([]hnsw.NodeExport, hdr.elements)
	for i := range nodes {
		n, err := readNode(br, vectors[i])
		if err != nil {
			return hnsw.Snapshot{}, Params{}, fmt.Errorf("persist: read node %d: %w", i, err)
		}
		nodes[i] = n
	}

	snap := hnsw.Snapshot{
		Head:     indexToRef(sh.headIndex),
		Entry:    indexToRef(sh.entryIndex),
		TopLevel: int(sh.topLevel),
		Elements: int(hdr.elements),
		Nodes:    nodes,
	}
	params := Params{
		Metric:      vecmath.Metric(hdr.method),
		Dims:        hdr.dims,
		DimsAligned: hdr.dimsAligned,
		M0:          int(sh.m0),
		EfConstruct: int(sh.efConstruct),
		EfSearch:    int(sh.efSearch),
	}
	return snap, params, nil
}

func subheaderSize() uint64 {
	return 4 + 4 + 4 + 1 + 4 + 4 + 4
}

func refToIndex(ref hnsw.Ref) uint32 {
	if ref == hnsw.NilRef {
		return nilIndex
	}
	return uint32(ref)
}

func indexToRef(idx uint32) hnsw.Ref {
	if idx == nilIndex {
		return hnsw.NilRef
	}
	return hnsw.Ref(idx)
}

func writeHeader(w io.Writer, h header) error {
	fields := []any{
		h.magic, h.versionMajor, h.versionMinor, h.versionPatch, h.headerSize,
		h.elements, h.method, h.dims, h.dimsAligned, h.onlyVectors,
		h.vectorSize, h.nodeSize, h.vectorSectionOffset, h.nodeSectionOffset,
	}
	return writeAll(w, fields)
}

func readHeader(r io.Reader) (header, error) {
	var h header
	fields := []any{
		&h.magic, &h.versionMajor, &h.versionMinor, &h.versionPatch, &h.headerSize,
		&h.elements, &h.method, &h.dims, &h.dimsAligned, &h.onlyVectors,
		&h.vectorSize, &h.nodeSize, &h.vectorSectionOffset, &h.nodeSectionOffset,
	}
	if err := readAll(r, fields); err != nil {
		return header{}, err
	}
	return h, nil
}

func writeSubheader(w io.Writer, sh subheader) error {
	fields := []any{sh.efSearch, sh.efConstruct, sh.m0, sh.degreesComputed, sh.headIndex, sh.entryIndex, sh.topLevel}
	return writeAll(w, fields)
}

func readSubheader(r io.Reader) (subheader, error) {
	var sh subheader
	fields := []any{&sh.efSearch, &sh.efConstruct, &sh.m0, &sh.degreesComputed, &sh.headIndex, &sh.entryIndex, &sh.topLevel}
	if err := readAll(r, fields); err != nil {
		return subheader{}, err
	}
	return sh, nil
}

func writeVector(w io.Writer, v *hnsw.Vector) error {
	return writeAll(w, []any{v.ID, v.Tag, v.Payload})
}

func readVector(r io.Reader, dimsAligned uint16) (*hnsw.Vector, error) {
	v := hnsw.AllocVector(dimsAligned)
	if err := readAll(r, []any{&v.ID, &v.Tag, &v.Payload}); err != nil {
		return nil, err
	}
	return v, nil
}

// writeNode serializes each level's actual slot count rather than assuming
// a single M0 applies to every node: UpdateContext can change M0 between
// insertions, so two nodes in the same file may legitimately carry
// differently sized neighbor arrays at the same level.
func writeNode(w io.Writer, n hnsw.NodeExport) error {
	alive := uint8(0)
	if n.Alive {
		alive = 1
	}
	if err := writeAll(w, []any{uint32(n.Level), alive, refToIndex(n.Next)}); err != nil {
		return err
	}
	for _, slots := range n.Neighbors {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(slots))); err != nil {
			return err
		}
		for _, ref := range slots {
			if err := binary.Write(w, binary.LittleEndian, refToIndex(ref)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readNode(r io.Reader, vector *hnsw.Vector) (hnsw.NodeExport, error) {
	var level uint32
	var alive uint8
	var next uint32
	if err := readAll(r, []any{&level, &alive, &next}); err != nil {
		return hnsw.NodeExport{}, err
	}

	neighbors := make([][]hnsw.Ref, level+1)
	for l := range neighbors {
		var width uint32
		if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
			return hnsw.NodeExport{}, err
		}
		slots := make([]hnsw.Ref, width)
		for i := range slots {
			var idx uint32
			if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
				return hnsw.NodeExport{}, err
			}
			slots[i] = indexToRef(idx)
		}
		neighbors[l] = slots
	}

	return hnsw.NodeExport{
		Vector:    vector,
		Level:     int(level),
		Alive:     alive == 1,
		Next:      indexToRef(next),
		Neighbors: neighbors,
	}, nil
}

func writeAll(w io.Writer, fields []any) error {
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func readAll(r io.Reader, fields []any) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// invalidFileError is returned when a stream's magic or header shape does
// not match this format; the façade maps it to ErrInvalidFile.
type invalidFileError struct{ reason string }

func (e *invalidFileError) Error() string { return "persist: invalid file: " + e.reason }

func errInvalidFile(reason string) error { return &invalidFileError{reason: reason} }

// IsInvalidFile reports whether err indicates a malformed or unrecognized
// dump stream (as opposed to an I/O failure reading it).
func IsInvalidFile(err error) bool {
	_, ok := err.(*invalidFileError)
	return ok
}
