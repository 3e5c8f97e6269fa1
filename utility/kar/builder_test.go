// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndWrite(t *testing.T) {
	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	require.NoError(t, err)
	defer builder.Close()

	require.NoError(t, builder.Add("test", strings.NewReader("idunvovkjnreovmegihjbrqlkmfrjnb")))
	require.NoError(t, builder.Add("test2", strings.NewReader("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")))
	assert.Len(t, builder.files, 2)

	var buf bytes.Buffer
	num, err := builder.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), num)
	assert.Equal(t, Magic[:], buf.Bytes()[:MagicLength])

	size, err := binaryToint64(buf.Bytes()[MagicLength:])
	require.NoError(t, err)
	var header Header
	require.NoError(t, gobDecode(&header, buf.Bytes()[preambleLength:preambleLength+size]))
	require.Len(t, header.Index, 2)
	assert.Equal(t, int64(0), header.Index[0].Offset)
	assert.Equal(t, header.Index[0].CompressedSize, header.Index[1].Offset)
	assert.Equal(t, int64(31), header.Index[0].Size)
	assert.Equal(t, "devblok", header.Author)
}

func TestAddTwice(t *testing.T) {
	builder, err := NewBuilder(Header{})
	require.NoError(t, err)
	defer builder.Close()

	require.NoError(t, builder.Add("a", strings.NewReader("one")))
	assert.Error(t, builder.Add("a", strings.NewReader("two")))
}

func TestCloseRemovesTemporaryFiles(t *testing.T) {
	builder, err := NewBuilder(Header{})
	require.NoError(t, err)
	require.NoError(t, builder.Add("a", strings.NewReader("one")))

	require.NoError(t, builder.Close())
	_, err = os.Stat(builder.tempDir)
	assert.True(t, os.IsNotExist(err))
}

func TestInt64Binary(t *testing.T) {
	for _, n := range []int64{0, 1, 1 << 40, -5} {
		got, err := binaryToint64(int64ToBinary(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := binaryToint64([]byte{1, 2})
	assert.Equal(t, ErrFileFormat, err)
}
