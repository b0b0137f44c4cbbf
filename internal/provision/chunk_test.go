package provision_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/adaxtools/adaxctl/internal/provision"
)

type ChunkTestSuite struct {
	suite.Suite
}

func (suite *ChunkTestSuite) TestChunkCount() {
	tests := []struct {
		name    string
		payload int
		mtu     int
		want    int
	}{
		{name: "empty payload still produces one chunk", payload: 0, mtu: 17, want: 1},
		{name: "single byte", payload: 1, mtu: 17, want: 1},
		{name: "exactly one mtu", payload: 17, mtu: 17, want: 1},
		{name: "one byte over mtu", payload: 18, mtu: 17, want: 2},
		{name: "exact multiple", payload: 51, mtu: 17, want: 3},
		{name: "typical join command", payload: 58, mtu: 17, want: 4},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			chunks, err := provision.Chunks(make([]byte, tt.payload), tt.mtu)

			suite.NoError(err)
			suite.Len(chunks, tt.want)
		})
	}
}

func (suite *ChunkTestSuite) TestChunkOrderingAndLastFlag() {
	payload := bytes.Repeat([]byte{0xAB}, 40)

	chunks, err := provision.Chunks(payload, 17)
	suite.Require().NoError(err)
	suite.Require().Len(chunks, 3)

	lastCount := 0
	for i, chunk := range chunks {
		suite.Equal(i, chunk.Index)
		if chunk.Last {
			lastCount++
			suite.Equal(len(chunks)-1, i, "only the final chunk carries the last flag")
		}
	}
	suite.Equal(1, lastCount, "exactly one chunk is marked last")
}

func (suite *ChunkTestSuite) TestEncodePrependsHeader() {
	chunks, err := provision.Chunks([]byte("command=join"), 17)
	suite.Require().NoError(err)
	suite.Require().Len(chunks, 1)

	frame := chunks[0].Encode()
	suite.Equal(byte(0), frame[0])
	suite.Equal(byte(1), frame[1])
	suite.Equal([]byte("command=join"), frame[2:])
}

func (suite *ChunkTestSuite) TestReassembly() {
	// Concatenating the chunk payloads in index order must reproduce the
	// original byte sequence exactly.
	payload := []byte("command=join&ssid=Home%20Net&psk=hunter2&token=00112233445566778899")

	chunks, err := provision.Chunks(payload, provision.MaxChunkPayload)
	suite.Require().NoError(err)

	var reassembled []byte
	for _, chunk := range chunks {
		suite.LessOrEqual(len(chunk.Payload), provision.MaxChunkPayload)
		reassembled = append(reassembled, chunk.Payload...)
	}
	suite.Equal(payload, reassembled)
}

func (suite *ChunkTestSuite) TestRejectsNonPositiveMTU() {
	_, err := provision.Chunks([]byte("x"), 0)
	suite.Error(err)

	_, err = provision.Chunks([]byte("x"), -1)
	suite.Error(err)
}

func TestChunkTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkTestSuite))
}

func TestChunksFrameFitsLink(t *testing.T) {
	// Every encoded frame must fit a 19-byte write alongside its 2-byte
	// header when chunked at the default payload size.
	chunks, err := provision.Chunks(make([]byte, 200), provision.MaxChunkPayload)
	require.NoError(t, err)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk.Encode()), provision.MaxChunkPayload+2)
	}
}
