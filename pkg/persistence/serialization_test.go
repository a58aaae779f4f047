package persistence

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

func TestMarshalUnmarshalTreeSnapshot_RoundTrip(t *testing.T) {
	original := &TreeSnapshot{
		Root:   types.Digest{0xab, 0xcd},
		Label:  "phase-2",
		Leaves: []types.Digest{{0x01}, {0x02}, {0x03}},
		Records: []*types.Record{
			{Address: common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8"), Quantity: big.NewInt(7)},
		},
		SortLeaves:   true,
		DuplicateOdd: true,
		CreatedAt:    1700000000,
	}

	data, err := MarshalTreeSnapshot(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Digests travel as hex strings
	assert.Contains(t, string(data), `"root":"0xabcd`)

	restored, err := UnmarshalTreeSnapshot(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, original.Root, restored.Root)
	assert.Equal(t, original.Label, restored.Label)
	assert.Equal(t, original.Leaves, restored.Leaves)
	assert.Equal(t, original.SortLeaves, restored.SortLeaves)
	assert.Equal(t, original.DuplicateOdd, restored.DuplicateOdd)
	assert.Equal(t, original.CreatedAt, restored.CreatedAt)
	require.Len(t, restored.Records, 1)
	assert.Equal(t, original.Records[0].Address, restored.Records[0].Address)
	assert.Equal(t, 0, original.Records[0].Quantity.Cmp(restored.Records[0].Quantity))
}

func TestMarshalTreeSnapshot_Nil(t *testing.T) {
	_, err := MarshalTreeSnapshot(nil)
	require.Error(t, err)
}

func TestUnmarshalTreeSnapshot_Invalid(t *testing.T) {
	_, err := UnmarshalTreeSnapshot(nil)
	require.Error(t, err)

	_, err = UnmarshalTreeSnapshot([]byte("not json"))
	require.Error(t, err)

	_, err = UnmarshalTreeSnapshot([]byte(`{"root":"0x1234"}`))
	require.Error(t, err)
}

func TestTreeSnapshotCopy(t *testing.T) {
	var nilSnapshot *TreeSnapshot
	assert.Nil(t, nilSnapshot.Copy())

	original := &TreeSnapshot{
		Root:    types.Digest{0x01},
		Leaves:  []types.Digest{{0x02}},
		Records: []*types.Record{{Quantity: big.NewInt(3)}},
	}
	c := original.Copy()
	c.Leaves[0] = types.Digest{0xff}
	c.Records[0].Quantity.SetInt64(9)

	assert.Equal(t, types.Digest{0x02}, original.Leaves[0])
	assert.Equal(t, int64(3), original.Records[0].Quantity.Int64())
}

func TestSortSnapshots(t *testing.T) {
	snapshots := []*TreeSnapshot{
		{Root: types.Digest{0x02}, CreatedAt: 5},
		{Root: types.Digest{0x01}, CreatedAt: 5},
		{Root: types.Digest{0x09}, CreatedAt: 1},
	}
	SortSnapshots(snapshots)

	assert.Equal(t, types.Digest{0x09}, snapshots[0].Root)
	assert.Equal(t, types.Digest{0x01}, snapshots[1].Root)
	assert.Equal(t, types.Digest{0x02}, snapshots[2].Root)
}
