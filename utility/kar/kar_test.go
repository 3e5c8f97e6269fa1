// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/devblok/triangle/utility/kar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	require.NoError(t, err)
	defer builder.Close()

	for _, name := range order {
		require.NoError(t, builder.Add(name, strings.NewReader(files[name])))
	}
	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	data := build(t, map[string]string{"test": testString1, "test2": testString2}, "test", "test2")

	ar, err := kar.Open(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "test2"}, ar.Names())
	assert.Equal(t, "devblok", ar.Header().Author)

	f, err := ar.Open("test2")
	require.NoError(t, err)
	assert.Equal(t, int64(len(testString2)), f.Size())
	result, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, testString2, string(result))
}

func TestCreateAndReadAll(t *testing.T) {
	data := build(t, map[string]string{"test": testString1, "test2": testString2}, "test", "test2")

	ar, err := kar.Open(bytes.NewReader(data))
	require.NoError(t, err)

	for name, want := range map[string]string{"test": testString1, "test2": testString2} {
		got, err := ar.ReadAll(name)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestReadMissing(t *testing.T) {
	data := build(t, map[string]string{"test": testString1}, "test")
	ar, err := kar.Open(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = ar.ReadAll("nope")
	assert.ErrorIs(t, err, kar.ErrNotFound)
}

// forge writes an archive around a hand made header.
func forge(t *testing.T, header kar.Header, data []byte) []byte {
	t.Helper()
	var encoded bytes.Buffer
	require.NoError(t, gob.NewEncoder(&encoded).Encode(header))

	var buf bytes.Buffer
	buf.Write(kar.Magic[:])
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int64(encoded.Len())))
	buf.Write(encoded.Bytes())
	buf.Write(data)
	return buf.Bytes()
}

func TestCorruptedIndex(t *testing.T) {
	cases := map[string]kar.IndexEntry{
		"negative size":       {Name: "a", Size: -1},
		"negative offset":     {Name: "a", Offset: -1, CompressedSize: 4},
		"negative compressed": {Name: "a", CompressedSize: -1},
		"past the data":       {Name: "a", Offset: 2, CompressedSize: 4, Size: 4},
		"overflowing":         {Name: "a", Offset: math.MaxInt64, CompressedSize: 1},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			data := forge(t, kar.Header{Author: "devblok", Index: []kar.IndexEntry{entry}}, []byte("abcd"))
			_, err := kar.Open(bytes.NewReader(data))
			assert.ErrorIs(t, err, kar.ErrFileFormat)
		})
	}
}

func TestSizeDisagreesWithIndex(t *testing.T) {
	data := build(t, map[string]string{"test": testString1}, "test")
	ar, err := kar.Open(bytes.NewReader(data))
	require.NoError(t, err)
	entry, ok := ar.Header().Entry("test")
	require.True(t, ok)

	entry.Size = 1 << 40
	forged := forge(t, kar.Header{Index: []kar.IndexEntry{entry}}, data[len(data)-int(entry.CompressedSize):])
	ar, err = kar.Open(bytes.NewReader(forged))
	require.NoError(t, err)
	_, err = ar.ReadAll("test")
	assert.ErrorIs(t, err, kar.ErrFileFormat)
}

func TestEmptyEntry(t *testing.T) {
	data := build(t, map[string]string{"empty": "", "test": testString1}, "empty", "test")
	ar, err := kar.Open(bytes.NewReader(data))
	require.NoError(t, err)

	got, err := ar.ReadAll("empty")
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = ar.ReadAll("test")
	require.NoError(t, err)
	assert.Equal(t, testString1, string(got))
}
