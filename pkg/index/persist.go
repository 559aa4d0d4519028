package index

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/vecdex/internal/obslog"
	"github.com/orneryd/vecdex/pkg/hnsw"
	"github.com/orneryd/vecdex/pkg/idmap"
	"github.com/orneryd/vecdex/pkg/persist"
	"github.com/orneryd/vecdex/pkg/seal"
)

func writeYAMLSidecar(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return newError(SystemError, "%v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return newError(FileIOError, "%v", err)
	}
	return nil
}

// rebuildFromSnapshot constructs a fresh Index around a snapshot read
// from disk (by Load or LoadSealed), rebuilding the graph and
// re-registering every live node in a new id-map via Remap.
func rebuildFromSnapshot(snap hnsw.Snapshot, params persist.Params) *Index {
	cfg := hnsw.DefaultConfig(params.Metric, params.Dims)
	cfg.DimsAligned = params.DimsAligned
	cfg.M0 = params.M0
	cfg.EfConstruct = params.EfConstruct
	cfg.EfSearch = params.EfSearch

	graph := hnsw.LoadGraph(cfg, snap)
	idx := &Index{
		kind:   HNSW,
		metric: params.Metric,
		dims:   params.Dims,
		graph:  graph,
		ids:    idmap.New[hnsw.Ref](0, 0),
	}
	graph.Remap(func(id uint64, ref hnsw.Ref) {
		idx.ids.Insert(id, ref)
	})
	return idx
}

func (idx *Index) paramsLocked() persist.Params {
	return persist.Params{
		Metric:      idx.graph.Metric(),
		Dims:        idx.graph.Dims(),
		DimsAligned: idx.graph.DimsAligned(),
		M0:          idx.graph.M0(),
		EfConstruct: idx.graph.EfConstruct(),
		EfSearch:    idx.graph.EfSearch(),
	}
}

// Dump writes the index's full state to path in this module's binary
// format.
func (idx *Index) Dump(path string) error {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return newError(InvalidIndex, "index is closed")
	}

	f, err := os.Create(path)
	if err != nil {
		return newError(FileIOError, "%v", err)
	}
	defer f.Close()

	snap := idx.graph.Export()
	if err := persist.Dump(f, snap, idx.paramsLocked()); err != nil {
		return newError(FileIOError, "%v", err)
	}

	idx.recordStat(func(st *Stats) *opStats { return &st.Dump }, time.Since(start))
	obslog.Debug("index dump", map[string]any{"path": path, "elements": snap.Elements})
	return nil
}

// Load reads a dump file written by Dump and rebuilds a ready-to-use
// index, re-registering every live node in a fresh id-map.
func Load(path string) (*Index, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(FileIOError, "%v", err)
	}
	defer f.Close()

	snap, params, err := persist.Load(f)
	if err != nil {
		if persist.IsInvalidFile(err) {
			return nil, newError(InvalidFile, "%v", err)
		}
		return nil, newError(FileIOError, "%v", err)
	}

	idx := rebuildFromSnapshot(snap, params)
	idx.recordStat(func(st *Stats) *opStats { return &st.Load }, time.Since(start))
	return idx, nil
}

// Export writes the index's dump plus a small human-readable YAML sidecar
// describing its configuration, for operators inspecting a data directory
// without loading the binary format.
func (idx *Index) Export(path string) error {
	if err := idx.Dump(path); err != nil {
		return err
	}

	idx.mu.RLock()
	params := idx.paramsLocked()
	elements := idx.graph.Elements()
	idx.mu.RUnlock()

	sidecar := struct {
		Metric      string `yaml:"metric"`
		Dims        int    `yaml:"dims"`
		DimsAligned int    `yaml:"dims_aligned"`
		M0          int    `yaml:"m0"`
		EfConstruct int    `yaml:"ef_construct"`
		EfSearch    int    `yaml:"ef_search"`
		Elements    int    `yaml:"elements"`
	}{
		Metric:      params.Metric.String(),
		Dims:        int(params.Dims),
		DimsAligned: int(params.DimsAligned),
		M0:          params.M0,
		EfConstruct: params.EfConstruct,
		EfSearch:    params.EfSearch,
		Elements:    elements,
	}
	return writeYAMLSidecar(path+".yaml", sidecar)
}

// DumpSealed writes the index's state to path as an AES-256-GCM-encrypted
// stream keyed by passphrase (see pkg/seal). LoadSealed is the inverse.
func (idx *Index) DumpSealed(path, passphrase string) error {
	start := time.Now()

	idx.mu.RLock()
	if idx.closed {
		idx.mu.RUnlock()
		return newError(InvalidIndex, "index is closed")
	}
	snap := idx.graph.Export()
	params := idx.paramsLocked()
	idx.mu.RUnlock()

	var buf bytes.Buffer
	if err := persist.Dump(&buf, snap, params); err != nil {
		return newError(SystemError, "%v", err)
	}

	sealed, err := seal.Seal(passphrase, buf.Bytes())
	if err != nil {
		return newError(SystemError, "%v", err)
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return newError(FileIOError, "%v", err)
	}

	idx.recordStat(func(st *Stats) *opStats { return &st.Dump }, time.Since(start))
	return nil
}

// LoadSealed is Load's counterpart for files written by DumpSealed. A
// wrong passphrase surfaces as ErrInvalidFile, matching plain Load's
// treatment of a malformed stream — authentication failure is a
// caller-input-shaped error, never a panic.
func LoadSealed(path, passphrase string) (*Index, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(FileIOError, "%v", err)
	}
	if !seal.IsSealed(data) {
		return nil, newError(InvalidFile, "not a sealed dump")
	}

	plaintext, err := seal.Open(passphrase, data)
	if err != nil {
		return nil, newError(InvalidFile, "%v", err)
	}

	snap, params, err := persist.Load(bytes.NewReader(plaintext))
	if err != nil {
		if persist.IsInvalidFile(err) {
			return nil, newError(InvalidFile, "%v", err)
		}
		return nil, newError(FileIOError, "%v", err)
	}

	idx := rebuildFromSnapshot(snap, params)
	idx.recordStat(func(st *Stats) *opStats { return &st.Load }, time.Since(start))
	return idx, nil
}

// Import merges path's vectors into idx. Colliding ids are handled per
// mode: Overwrite deletes the existing entry first, IgnoreSilent/
// IgnoreVerbose skip the incoming vector (IgnoreVerbose additionally logs
// each skip at Warn).
func (idx *Index) Import(path string, mode ImportMode) error {
	f, err := os.Open(path)
	if err != nil {
		return newError(FileIOError, "%v", err)
	}
	defer f.Close()

	snap, params, err := persist.Load(f)
	if err != nil {
		if persist.IsInvalidFile(err) {
			return newError(InvalidFile, "%v", err)
		}
		return newError(FileIOError, "%v", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return newError(InvalidIndex, "index is closed")
	}
	if params.Dims != idx.dims {
		return newError(InvalidDimensions, "import source has dims %d, want %d", params.Dims, idx.dims)
	}

	for _, n := range snap.Nodes {
		if !n.Alive || n.Vector == nil {
			continue
		}
		id := n.Vector.ID

		if idx.ids.Has(id) {
			switch mode {
			case Overwrite:
				if ref, ok := idx.ids.Get(id); ok {
					idx.graph.Delete(ref)
					idx.ids.Remove(id)
				}
			case IgnoreVerbose:
				obslog.Warn("index import skipped colliding id", map[string]any{"id": id})
				continue
			default: // IgnoreSilent
				continue
			}
		}

		ref := idx.graph.AllocNode(id, n.Vector.Tag, n.Vector.Payload[:idx.dims])
		idx.graph.Insert(ref)
		idx.ids.Insert(id, ref)
	}

	return nil
}
