// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// MaxHeaderSize bounds the header of an archive whose length
// cannot be told from its reader.
const MaxHeaderSize = 16 << 20

// sizeOf tells the length of r, when r knows it.
func sizeOf(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Len() int }:
		return int64(s.Len()), true
	case *os.File:
		if info, err := s.Stat(); err == nil && info.Mode().IsRegular() {
			return info.Size(), true
		}
	}
	return 0, false
}

// Open opens the kar archive from r. It checks that r actually holds
// a kar archive and returns ErrFileFormat when it does not.
func Open(r io.ReaderAt) (*Archive, error) {
	preamble := make([]byte, preambleLength)
	if num, err := r.ReadAt(preamble, 0); num < preambleLength {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}
	if !bytes.Equal(preamble[:MagicLength], Magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(preamble[MagicLength:])
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}
	total, sized := sizeOf(r)
	switch {
	case sized && headerSize > total-preambleLength:
		return nil, errors.Wrapf(ErrFileFormat, "header of %d bytes in a %d byte file", headerSize, total)
	case !sized && headerSize > MaxHeaderSize:
		return nil, errors.Wrapf(ErrFileFormat, "header of %d bytes", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, preambleLength); int64(num) < headerSize {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	dataOffset := preambleLength + headerSize
	dataLength := math.MaxInt64 - dataOffset
	if sized {
		dataLength = total - dataOffset
	}
	for _, e := range header.Index {
		if err := e.check(dataLength); err != nil {
			return nil, err
		}
	}

	return &Archive{
		reader:     r,
		header:     header,
		dataOffset: dataOffset,
	}, nil
}

// check rejects an entry that does not fit in dataLength bytes of data.
func (e IndexEntry) check(dataLength int64) error {
	if e.Offset < 0 || e.Size < 0 || e.CompressedSize < 0 || e.Offset > dataLength-e.CompressedSize {
		return errors.Wrapf(ErrFileFormat, "entry %s at %d+%d (size %d) is outside %d bytes of data",
			e.Name, e.Offset, e.CompressedSize, e.Size, dataLength)
	}
	return nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader     io.ReaderAt
	header     Header
	dataOffset int64
}

// Header returns the archive header including its index.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the files in the order they were added.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.header.Index))
	for _, e := range a.header.Index {
		names = append(names, e.Name)
	}
	return names
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.header.Entry(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	// the index is not trusted with the allocation
	data, err := io.ReadAll(io.LimitReader(r, r.entry.Size+1))
	if err != nil {
		return nil, errors.Wrapf(ErrFileFormat, "%s: %s", name, err)
	}
	if int64(len(data)) != r.entry.Size {
		return nil, errors.Wrapf(ErrFileFormat, "%s: %d bytes, index says %d", name, len(data), r.entry.Size)
	}
	return data, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Size is the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}
