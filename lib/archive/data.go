// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mingnus/blk-archive/lib/hash"
	"github.com/mingnus/blk-archive/lib/hashindex"
	"github.com/mingnus/blk-archive/lib/slab"
)

// SlabSizeTarget is the payload size at which a data or stream slab
// is closed and a new one started.
const SlabSizeTarget = 4 * 1024 * 1024

// Location identifies a stored record: its data slab and its position
// within that slab.
type Location struct {
	Slab   uint32
	Offset uint32
}

// DataOptions configures OpenData.
type DataOptions struct {
	// Write opens the store for Add.
	Write bool

	// LookbackSlabs limits the dedup index to the hash-index slabs of
	// the most recent LookbackSlabs data slabs. Zero indexes every
	// slab. Records written during the session are always indexed.
	LookbackSlabs int

	// SlabSizeTarget overrides the package SlabSizeTarget.
	SlabSizeTarget int

	// DataCacheEntries and HashCacheEntries size the data slab and
	// parsed hash-index slab caches, in slabs.
	DataCacheEntries int
	HashCacheEntries int

	// QueueDepth is passed to both slab files when writing.
	QueueDepth int

	// Logger receives progress and diagnostics. Nil discards.
	Logger *slog.Logger
}

// Data is the deduplicating content store of one archive. It is not
// safe for concurrent use.
type Data struct {
	root     string
	logger   *slog.Logger
	writable bool
	target   int

	dataFile   *slab.File
	hashesFile *slab.File

	hashCache *lru.Cache[uint32, *hashindex.ByIndex]

	// seen maps content hashes to their location.
	seen map[hash.Hash]Location

	// nextSlab is the index of the slab being filled.
	nextSlab uint32
	current  openSlab

	// submitted holds flushed slabs that may not have reached the
	// files yet, so Get never races the writers.
	submitted map[uint32]*submittedSlab
}

// openSlab accumulates the records of the slab being filled.
type openSlab struct {
	body    []byte
	lengths []uint64
	hashes  []hash.Hash
}

func (s *openSlab) payloadSize() int {
	return dataSlabHeaderSize(len(s.lengths)) + len(s.body)
}

func (s *openSlab) reset() {
	s.body = nil
	s.lengths = nil
	s.hashes = nil
}

type submittedSlab struct {
	payload []byte
	ranges  []Range
}

// OpenData opens the content store of the archive at root.
func OpenData(root string, options DataOptions) (*Data, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	target := options.SlabSizeTarget
	if target <= 0 {
		target = SlabSizeTarget
	}

	dataFile, err := slab.Open(DataPath(root), slab.Options{
		Write:        options.Write,
		QueueDepth:   options.QueueDepth,
		CacheEntries: options.DataCacheEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	hashesFile, err := slab.Open(HashesPath(root), slab.Options{
		Write:      options.Write,
		QueueDepth: options.QueueDepth,
	})
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("opening hashes file: %w", err)
	}

	d := &Data{
		root:       root,
		logger:     logger,
		writable:   options.Write,
		target:     target,
		dataFile:   dataFile,
		hashesFile: hashesFile,
		seen:       make(map[hash.Hash]Location),
		submitted:  make(map[uint32]*submittedSlab),
	}
	if err := d.initialize(options); err != nil {
		dataFile.Close()
		hashesFile.Close()
		return nil, err
	}
	return d, nil
}

func (d *Data) initialize(options DataOptions) error {
	dataSlabs, hashSlabs := d.dataFile.NumSlabs(), d.hashesFile.NumSlabs()
	if dataSlabs != hashSlabs {
		return &CountMismatchError{Archive: d.root, DataSlabs: dataSlabs, HashSlabs: hashSlabs}
	}
	d.nextSlab = dataSlabs

	if options.HashCacheEntries > 0 {
		cache, err := lru.New[uint32, *hashindex.ByIndex](options.HashCacheEntries)
		if err != nil {
			return fmt.Errorf("creating hash index cache: %w", err)
		}
		d.hashCache = cache
	}

	first := uint32(0)
	if options.LookbackSlabs > 0 && uint32(options.LookbackSlabs) < hashSlabs {
		first = hashSlabs - uint32(options.LookbackSlabs)
	}
	for s := first; s < hashSlabs; s++ {
		index, err := d.hashIndex(s)
		if err != nil {
			return err
		}
		for h, i := range hashindex.IndexByHash(index) {
			d.remember(h, Location{Slab: s, Offset: uint32(i)})
		}
	}
	d.logger.Debug("content store opened",
		"archive", d.root,
		"slabs", hashSlabs,
		"indexed_slabs", hashSlabs-first,
		"indexed_records", len(d.seen),
	)
	return nil
}

func (d *Data) remember(h hash.Hash, location Location) {
	if _, exists := d.seen[h]; !exists {
		d.seen[h] = location
	}
}

// NumSlabs returns the number of data slabs, counting the one being
// filled if it holds any records.
func (d *Data) NumSlabs() uint32 {
	if len(d.current.lengths) > 0 {
		return d.nextSlab + 1
	}
	return d.nextSlab
}

// Lookup returns the location of a record with hash h if the dedup
// index holds one.
func (d *Data) Lookup(h hash.Hash) (Location, bool) {
	location, ok := d.seen[h]
	return location, ok
}

// Add stores the record formed by concatenating iov, whose content
// hash is h, unless a record with that hash is already indexed. It
// returns the record's location and whether it was newly written.
// declaredLen must equal the total length of iov.
func (d *Data) Add(h hash.Hash, iov [][]byte, declaredLen uint64) (Location, bool, error) {
	if !d.writable {
		return Location{}, false, slab.ErrReadOnly
	}

	var total uint64
	for _, segment := range iov {
		total += uint64(len(segment))
	}
	if total != declaredLen {
		return Location{}, false, fmt.Errorf("record length %d does not match declared length %d", total, declaredLen)
	}

	if location, ok := d.seen[h]; ok {
		return location, false, nil
	}

	if uint64(dataSlabHeaderSize(1))+total > math.MaxUint32 {
		return Location{}, false, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, total)
	}
	if uint64(d.current.payloadSize())+8+total > math.MaxUint32 {
		if err := d.flush(); err != nil {
			return Location{}, false, err
		}
	}

	for _, segment := range iov {
		d.current.body = append(d.current.body, segment...)
	}
	d.current.lengths = append(d.current.lengths, total)
	d.current.hashes = append(d.current.hashes, h)

	location := Location{Slab: d.nextSlab, Offset: uint32(len(d.current.lengths) - 1)}
	d.seen[h] = location

	if d.current.payloadSize() >= d.target {
		if err := d.flush(); err != nil {
			return Location{}, false, err
		}
	}
	return location, true, nil
}

// Flush closes the slab being filled, if it holds records, and submits
// it and its hash-index slab for writing.
func (d *Data) Flush() error {
	if !d.writable {
		return nil
	}
	return d.flush()
}

func (d *Data) flush() error {
	if len(d.current.lengths) == 0 {
		return nil
	}

	payload, ranges := encodeDataSlab(d.current.body, d.current.lengths)
	entries := make([]hashindex.Entry, len(ranges))
	for i, r := range ranges {
		entries[i] = hashindex.Entry{Begin: r.Begin, End: r.End, Hash: d.current.hashes[i]}
	}

	if err := d.dataFile.WriteSlab(payload); err != nil {
		return fmt.Errorf("writing data slab %d: %w", d.nextSlab, err)
	}
	if err := d.hashesFile.WriteSlab(hashindex.Encode(entries)); err != nil {
		return fmt.Errorf("writing hashes slab %d: %w", d.nextSlab, err)
	}

	d.submitted[d.nextSlab] = &submittedSlab{payload: payload, ranges: ranges}
	d.logger.Debug("data slab flushed", "slab", d.nextSlab, "records", len(ranges), "bytes", len(payload))
	d.nextSlab++
	d.current.reset()
	d.pruneSubmitted()
	return nil
}

// pruneSubmitted drops submitted slabs that both files now hold.
func (d *Data) pruneSubmitted() {
	durable := min(d.dataFile.NumSlabs(), d.hashesFile.NumSlabs())
	for index := range d.submitted {
		if index < durable {
			delete(d.submitted, index)
		}
	}
}

// Get returns the payload of data slab s and the byte range [start,
// end) within it covering the nrEntries consecutive records starting
// at offset. For nrEntries == 1 that is the record itself. The payload
// may be shared and must not be modified.
func (d *Data) Get(s, offset, nrEntries uint32) ([]byte, uint32, uint32, error) {
	rangeError := &RangeError{Slab: s, Offset: offset, NrEntries: nrEntries, NumSlabs: d.NumSlabs()}
	if s >= d.NumSlabs() {
		return nil, 0, 0, rangeError
	}

	if s == d.nextSlab {
		count := uint32(len(d.current.lengths))
		rangeError.NumRecords = count
		if nrEntries == 0 || uint64(offset)+uint64(nrEntries) > uint64(count) {
			return nil, 0, 0, rangeError
		}
		var start uint64
		for _, length := range d.current.lengths[:offset] {
			start += length
		}
		end := start
		for _, length := range d.current.lengths[offset : offset+nrEntries] {
			end += length
		}
		return d.current.body, uint32(start), uint32(end), nil
	}

	if submitted, ok := d.submitted[s]; ok {
		count := uint32(len(submitted.ranges))
		rangeError.NumRecords = count
		if nrEntries == 0 || uint64(offset)+uint64(nrEntries) > uint64(count) {
			return nil, 0, 0, rangeError
		}
		return submitted.payload, submitted.ranges[offset].Begin, submitted.ranges[offset+nrEntries-1].End, nil
	}

	index, err := d.hashIndex(s)
	if err != nil {
		return nil, 0, 0, err
	}
	count := uint32(index.Len())
	rangeError.NumRecords = count
	if nrEntries == 0 || uint64(offset)+uint64(nrEntries) > uint64(count) {
		return nil, 0, 0, rangeError
	}

	payload, err := d.dataFile.Read(s)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading data slab %d: %w", s, err)
	}
	start, end := index.Get(int(offset)).Begin, index.Get(int(offset+nrEntries-1)).End
	if start > end || uint64(end) > uint64(len(payload)) {
		return nil, 0, 0, fmt.Errorf("hash index for data slab %d gives range [%d, %d) outside the %d byte payload",
			s, start, end, len(payload))
	}
	return payload, start, end, nil
}

// hashIndex returns the parsed hash-index slab s.
func (d *Data) hashIndex(s uint32) (*hashindex.ByIndex, error) {
	if d.hashCache != nil {
		if index, ok := d.hashCache.Get(s); ok {
			return index, nil
		}
	}
	payload, err := d.hashesFile.Read(s)
	if err != nil {
		return nil, fmt.Errorf("reading hashes slab %d: %w", s, err)
	}
	index, err := hashindex.New(payload)
	if err != nil {
		return nil, fmt.Errorf("hashes slab %d: %w", s, err)
	}
	if d.hashCache != nil {
		d.hashCache.Add(s, index)
	}
	return index, nil
}

// Close flushes the slab being filled and closes both files.
func (d *Data) Close() error {
	var errs []error
	if d.writable {
		if err := d.flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.dataFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing data file: %w", err))
	}
	if err := d.hashesFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing hashes file: %w", err))
	}
	return errors.Join(errs...)
}
