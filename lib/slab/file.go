// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"errors"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueueDepth is the default bound on outstanding reservations.
const DefaultQueueDepth = 16

// Options configures Create and Open. The zero value opens read-only
// with no cache.
type Options struct {
	// Compression is the codec for a new file. Ignored by Open, which
	// uses the codec recorded in the header.
	Compression Compression

	// Write opens an existing file for appending. Create always
	// writes.
	Write bool

	// QueueDepth bounds the number of reserved but unwritten slabs.
	// Zero means DefaultQueueDepth.
	QueueDepth int

	// CacheEntries is the capacity, in slabs, of the decompressed read
	// cache. Zero disables caching.
	CacheEntries int
}

// SlabData is a completed slab submitted for writing.
type SlabData struct {
	Index uint32
	Data  []byte
}

// File is an open slab file. Reads are safe for concurrent use and may
// run alongside writes.
type File struct {
	path        string
	file        *os.File
	compression Compression

	// cache holds decompressed payloads. Nil when disabled. Entries are
	// shared with callers and must not be modified.
	cache *lru.Cache[uint32, []byte]

	// writer is nil for read-only files.
	writer *writer

	mu sync.Mutex
	// offsets and size describe the frames durably appended so far.
	offsets []uint64
	size    int64
	closed  bool
}

// Create creates a new, empty slab file for writing. It fails if path
// already exists.
func Create(path string, options Options) (*File, error) {
	if err := options.Compression.validate(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating slab file: %w", err)
	}
	if err := writeHeader(file, options.Compression); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f := &File{
		path:        path,
		file:        file,
		compression: options.Compression,
		size:        HeaderSize,
	}
	if err := f.initialize(options, true); err != nil {
		file.Close()
		return nil, err
	}
	return f, nil
}

// Open opens an existing slab file and its offsets sidecar. A missing
// sidecar yields ErrOffsetsMissing; one that does not match the file
// yields ErrOffsetsStale. Opening an unwritable file with
// Options.Write fails here rather than at the first write.
func Open(path string, options Options) (*File, error) {
	flags := os.O_RDONLY
	if options.Write {
		flags = os.O_RDWR
	}
	file, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("opening slab file: %w", err)
	}

	f, err := open(path, file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	return f, nil
}

func open(path string, file *os.File, options Options) (*File, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat slab file: %w", err)
	}

	compression, err := readHeader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	offsets, err := ReadOffsetsFile(OffsetsPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := validateOffsets(file, path, offsets.offsets, info.Size()); err != nil {
		return nil, err
	}

	f := &File{
		path:        path,
		file:        file,
		compression: compression,
		offsets:     offsets.offsets,
		size:        info.Size(),
	}
	if err := f.initialize(options, options.Write); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) initialize(options Options, write bool) error {
	if options.CacheEntries > 0 {
		cache, err := lru.New[uint32, []byte](options.CacheEntries)
		if err != nil {
			return fmt.Errorf("creating slab cache: %w", err)
		}
		f.cache = cache
	}
	if write {
		depth := options.QueueDepth
		if depth <= 0 {
			depth = DefaultQueueDepth
		}
		f.writer = newWriter(f, depth, uint32(len(f.offsets)))
	}
	return nil
}

// validateOffsets checks that the sidecar covers exactly the frames in
// the file: offsets ascend from the header, and the last frame ends at
// end of file.
func validateOffsets(file *os.File, path string, offsets []uint64, size int64) error {
	if len(offsets) == 0 {
		if size != HeaderSize {
			return fmt.Errorf("%w: %s has no offsets but is %d bytes", ErrOffsetsStale, path, size)
		}
		return nil
	}
	if offsets[0] != HeaderSize {
		return fmt.Errorf("%w: %s: first slab at offset %d", ErrOffsetsStale, path, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1]+FrameOverhead {
			return fmt.Errorf("%w: %s: offset %d for slab %d does not follow slab %d at %d",
				ErrOffsetsStale, path, offsets[i], i, i-1, offsets[i-1])
		}
	}

	last := offsets[len(offsets)-1]
	if last > uint64(size) {
		return fmt.Errorf("%w: %s: last slab offset %d past end of file (%d bytes)", ErrOffsetsStale, path, last, size)
	}
	length, err := readFrameHeader(file, path, int64(last), size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOffsetsStale, err)
	}
	if end := int64(last) + FrameOverhead + int64(length); end != size {
		return fmt.Errorf("%w: %s: last slab ends at %d, file is %d bytes", ErrOffsetsStale, path, end, size)
	}
	return nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Compression returns the codec recorded in the header.
func (f *File) Compression() Compression {
	return f.compression
}

// NumSlabs returns the number of slabs durably appended. Slabs that are
// reserved or queued for writing are not counted.
func (f *File) NumSlabs() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(len(f.offsets))
}

// Len is NumSlabs as an int, for callers that must detect counts beyond
// the 32-bit index range.
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offsets)
}

// Size returns the current file size in bytes.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Read returns the decompressed payload of slab index, consulting the
// cache. The returned slice may be shared and must not be modified.
func (f *File) Read(index uint32) ([]byte, error) {
	if f.cache != nil {
		if data, ok := f.cache.Get(index); ok {
			return data, nil
		}
	}
	data, err := f.ReadUncached(index)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Add(index, data)
	}
	return data, nil
}

// ReadUncached reads slab index from disk, verifying its checksum and
// bypassing the cache.
func (f *File) ReadUncached(index uint32) ([]byte, error) {
	data, valid, err := f.ReadRaw(index)
	if err != nil {
		return nil, err
	}
	if !valid {
		offset, _, _ := f.frameBounds(index)
		return nil, &ChecksumError{Path: f.path, Index: index, Offset: offset}
	}
	return data, nil
}

// ReadRaw reads slab index from disk without enforcing its checksum,
// reporting instead whether it matched. Verification tools use it to
// locate corruption below slab granularity.
func (f *File) ReadRaw(index uint32) ([]byte, bool, error) {
	offset, limit, err := f.frameBounds(index)
	if err != nil {
		return nil, false, err
	}

	payload, valid, err := readFrame(f.file, f.path, offset, limit)
	if err != nil {
		return nil, false, err
	}
	data, err := decompress(payload, f.compression)
	if err != nil {
		if !valid {
			return nil, false, &ChecksumError{Path: f.path, Index: index, Offset: offset}
		}
		return nil, false, fmt.Errorf("%s: slab %d: %w", f.path, index, err)
	}
	return data, valid, nil
}

// frameBounds returns the offset of slab index and the offset where its
// frame must end.
func (f *File) frameBounds(index uint32) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, 0, ErrClosed
	}
	if int(index) >= len(f.offsets) {
		return 0, 0, &IndexError{Path: f.path, Index: index, NumSlabs: len(f.offsets)}
	}
	limit := f.size
	if int(index)+1 < len(f.offsets) {
		limit = int64(f.offsets[index+1])
	}
	return int64(f.offsets[index]), limit, nil
}

// appendFrame writes one frame at the end of the file and records its
// offset. Called only from the writer goroutine.
func (f *File) appendFrame(payload []byte) error {
	f.mu.Lock()
	offset := f.size
	f.mu.Unlock()

	frame := encodeFrame(payload)
	if _, err := f.file.WriteAt(frame, offset); err != nil {
		return fmt.Errorf("writing slab at offset %d of %s: %w", offset, f.path, err)
	}

	f.mu.Lock()
	f.offsets = append(f.offsets, uint64(offset))
	f.size = offset + int64(len(frame))
	f.mu.Unlock()
	return nil
}

// Offsets returns a snapshot of the current offsets table.
func (f *File) Offsets() *Offsets {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Offsets{offsets: append([]uint64(nil), f.offsets...)}
}

// Close finishes writing, if the file is writable, and releases the
// file. For a writable file it writes the data already sent for every
// reservation, fails with a *GapError if any reservation is abandoned
// or still empty or the written slabs are otherwise not contiguous with
// the reservations, and otherwise syncs the file and replaces the
// offsets sidecar.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.mu.Unlock()

	var result error
	if f.writer != nil {
		result = f.writer.finish()
		if result == nil {
			result = f.persist()
		}
	}

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	if err := f.file.Close(); err != nil && result == nil {
		result = fmt.Errorf("closing slab file %s: %w", f.path, err)
	}
	if f.cache != nil {
		f.cache.Purge()
	}
	return result
}

func (f *File) persist() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("syncing slab file %s: %w", f.path, err)
	}
	return f.Offsets().WriteFile(OffsetsPath(f.path))
}

// Remove deletes a slab file and its sidecar. A missing sidecar is not
// an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return err
	}
	if err := os.Remove(OffsetsPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
