package merkle

import (
	"crypto/rand"
	"fmt"
	mathrand "math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/leaf"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

const (
	allowlistRoot         = "0x6bb0d38d40cd012717a4c006cf73055b31f2e3ac5970b8a26f0a2c5411a4196c"
	allowlistUnsortedRoot = "0xd01f8cc9a2a7d4781a793dea4d6a120842b91e3be2512ca7957391c637e6c230"
	firstFiveRoot         = "0xcca4fe619052167654847abcd14ad447a552c796f469e1b1eace41d8d95ce881"
)

var allowlistAddresses = []string{
	"0x47d1111fec887a7beb7839bbf0e1b3d215669d86",
	"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
	"0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
	"0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc",
	"0x90f79bf6eb2c4f870365e785982e1f101e93b906",
	"0x15d34aaf54267db7d7c367839aaf71a00a2c6a65",
}

// allowlistLeaves hashes the six reference records, each with quantity 1
func allowlistLeaves(t testing.TB) []types.Digest {
	leaves := make([]types.Digest, len(allowlistAddresses))
	for i, addr := range allowlistAddresses {
		d, err := leaf.HashRecord(types.NewRecord(common.HexToAddress(addr), 1))
		require.NoError(t, err)
		leaves[i] = d
	}
	return leaves
}

// createTestLeaves creates n random leaf digests
func createTestLeaves(n int) []types.Digest {
	leaves := make([]types.Digest, n)
	for i := range leaves {
		leaves[i] = randomDigest()
	}
	return leaves
}

// randomDigest generates a random 32-byte digest for testing
func randomDigest() types.Digest {
	var d types.Digest
	_, _ = rand.Read(d[:]) // Ignore error in test helper
	return d
}

func mustDigest(t testing.TB, s string) types.Digest {
	d, err := types.HexToDigest(s)
	require.NoError(t, err)
	return d
}

// TestBuildMerkleTree tests tree construction and proof round-trips with various sizes
func TestBuildMerkleTree(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
	}{
		{"Single leaf", 1},
		{"Two leaves", 2},
		{"Three leaves", 3},
		{"Four leaves (power of 2)", 4},
		{"Five leaves", 5},
		{"Six leaves", 6},
		{"Seven leaves", 7},
		{"Eight leaves (power of 2)", 8},
		{"Fifteen leaves", 15},
		{"Sixteen leaves (power of 2)", 16},
		{"Seventeen leaves", 17},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := BuildMerkleTree(createTestLeaves(tc.numLeaves))
			require.NoError(t, err)
			require.NotNil(t, tree)

			require.Equal(t, tc.numLeaves, tree.LeafCount())

			// Each layer is half the previous one, rounded up, ending in the root
			layers := tree.Layers()
			for i := 1; i < len(layers); i++ {
				require.Equal(t, (len(layers[i-1])+1)/2, len(layers[i]), "layer %d", i)
			}
			require.Len(t, layers[len(layers)-1], 1)
			require.Equal(t, tree.Root(), layers[len(layers)-1][0])

			for i := 0; i < tc.numLeaves; i++ {
				proof, err := tree.GenerateProofByIndex(i)
				require.NoError(t, err)
				require.Equal(t, i, proof.LeafIndex)
				require.Equal(t, layers[0][i], proof.Leaf)

				require.True(t, VerifyProof(proof.Leaf, proof.Proof, tree.Root()), "Proof for leaf %d should be valid", i)
				require.True(t, proof.Verify(tree.Root()))
			}
		})
	}
}

func TestBuildMerkleTreeEmpty(t *testing.T) {
	tree, err := BuildMerkleTree([]types.Digest{})
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)

	tree, err = BuildMerkleTree(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)
}

// TestMerkleTreeReferenceVector pins the six-record allowlist to known values
func TestMerkleTreeReferenceVector(t *testing.T) {
	leaves := allowlistLeaves(t)
	require.Equal(t, "0x04d217e463a5feb9306f64027c7d795dcbcd7e727ab9d38c397b175f787b793c", leaves[0].Hex())

	tree, err := BuildMerkleTree(leaves)
	require.NoError(t, err)

	assert.Equal(t, allowlistRoot, tree.HexRoot())
	assert.Equal(t, 3, tree.Depth())

	sizes := make([]int, 0)
	for _, layer := range tree.Layers() {
		sizes = append(sizes, len(layer))
	}
	assert.Equal(t, []int{6, 3, 2, 1}, sizes)

	proof, err := tree.GenerateProof(leaves[0])
	require.NoError(t, err)
	require.Len(t, proof.Proof, 3)

	assert.Equal(t, []string{
		"0x320723cfc0bfa9b0f7c5b275a01ffa5e0f111f05723ba5df2b2684ab86bebe06",
		"0x1838245b08d1e921c5c0b6c7aede4f17dd9b159feaee59ffebba9fd6c4bccb03",
		"0xf9517e24d5f1f504da5daaa3122e9e4ac7b4200955f2e27810823053adb24344",
	}, proof.Proof.Hex())
	for _, node := range proof.Proof {
		assert.Equal(t, types.SideRight, node.Position)
	}

	assert.True(t, VerifyProof(leaves[0], proof.Proof, tree.Root()))
	assert.True(t, VerifyProof(leaves[0], ProofFromHashes(proof.Proof.Hashes()), tree.Root()))
}

// TestMerkleTreeOddCarryForward checks that an unpaired node moves up unchanged
func TestMerkleTreeOddCarryForward(t *testing.T) {
	tree, err := BuildMerkleTree(allowlistLeaves(t)[:5])
	require.NoError(t, err)
	assert.Equal(t, firstFiveRoot, tree.HexRoot())

	layers := tree.Layers()
	require.Len(t, layers, 4)
	require.Len(t, layers[0], 5)
	require.Len(t, layers[1], 3)

	fifth := layers[0][4]
	assert.Equal(t, fifth, layers[1][2], "unpaired leaf should appear unchanged in layer 1")

	carried, err := tree.GenerateProof(fifth)
	require.NoError(t, err)
	paired, err := tree.GenerateProofByIndex(0)
	require.NoError(t, err)

	// the fifth leaf has no sibling in layers 0 and 1
	assert.Len(t, paired.Proof, 3)
	assert.Len(t, carried.Proof, 1)
	assert.Less(t, len(carried.Proof), len(paired.Proof))
	assert.Equal(t, types.SideLeft, carried.Proof[0].Position)

	assert.True(t, carried.Verify(tree.Root()))
	assert.True(t, paired.Verify(tree.Root()))
}

// TestMerkleTreePermutationInvariance tests that input order does not affect the root
func TestMerkleTreePermutationInvariance(t *testing.T) {
	leaves := allowlistLeaves(t)
	reference, err := BuildMerkleTree(leaves)
	require.NoError(t, err)

	rng := mathrand.New(mathrand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]types.Digest, len(leaves))
		copy(shuffled, leaves)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		tree, err := BuildMerkleTree(shuffled)
		require.NoError(t, err)
		require.Equal(t, reference.Root(), tree.Root())
	}

	random := createTestLeaves(33)
	tree1, err := BuildMerkleTree(random)
	require.NoError(t, err)
	reversed := make([]types.Digest, len(random))
	for i := range random {
		reversed[len(random)-1-i] = random[i]
	}
	tree2, err := BuildMerkleTree(reversed)
	require.NoError(t, err)
	require.Equal(t, tree1.Root(), tree2.Root())
}

func TestMerkleTreeUnsortedLeaves(t *testing.T) {
	leaves := allowlistLeaves(t)
	tree, err := BuildMerkleTree(leaves, WithSortLeaves(false))
	require.NoError(t, err)

	assert.False(t, tree.SortLeaves())
	assert.Equal(t, allowlistUnsortedRoot, tree.HexRoot())
	assert.Equal(t, leaves, tree.Leaves())

	for _, l := range leaves {
		proof, err := tree.GenerateProof(l)
		require.NoError(t, err)
		assert.True(t, proof.Verify(tree.Root()))
	}
}

func TestMerkleTreeDuplicateOdd(t *testing.T) {
	leaves := allowlistLeaves(t)[:5]
	carry, err := BuildMerkleTree(leaves)
	require.NoError(t, err)
	dup, err := BuildMerkleTree(leaves, WithDuplicateOdd(true))
	require.NoError(t, err)

	assert.True(t, dup.DuplicateOdd())
	assert.NotEqual(t, carry.Root(), dup.Root())

	layers := dup.Layers()
	for i := 1; i < len(layers); i++ {
		require.Equal(t, (len(layers[i-1])+1)/2, len(layers[i]))
	}

	for i := 0; i < dup.LeafCount(); i++ {
		proof, err := dup.GenerateProofByIndex(i)
		require.NoError(t, err)
		assert.Len(t, proof.Proof, 3, "every path has a sibling on every layer")
		assert.True(t, proof.Verify(dup.Root()))
	}
}

func TestGenerateProofLeafNotFound(t *testing.T) {
	tree, err := BuildMerkleTree(createTestLeaves(4))
	require.NoError(t, err)

	t.Run("Unknown digest", func(t *testing.T) {
		proof, err := tree.GenerateProof(randomDigest())
		require.ErrorIs(t, err, ErrLeafNotFound)
		require.Nil(t, proof)
	})

	t.Run("Negative index", func(t *testing.T) {
		proof, err := tree.GenerateProofByIndex(-1)
		require.ErrorIs(t, err, ErrLeafNotFound)
		require.Nil(t, proof)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		proof, err := tree.GenerateProofByIndex(10)
		require.ErrorIs(t, err, ErrLeafNotFound)
		require.Nil(t, proof)
	})
}

// TestMerkleProofVerification tests proof verification with valid and invalid cases
func TestMerkleProofVerification(t *testing.T) {
	leaves := allowlistLeaves(t)
	tree, err := BuildMerkleTree(leaves)
	require.NoError(t, err)

	proof, err := tree.GenerateProof(leaves[0])
	require.NoError(t, err)

	t.Run("Valid proof", func(t *testing.T) {
		require.True(t, VerifyProof(leaves[0], proof.Proof, tree.Root()))
	})

	t.Run("Invalid proof - wrong root", func(t *testing.T) {
		require.False(t, VerifyProof(leaves[0], proof.Proof, types.Digest{1, 2, 3, 4, 5}))
		require.False(t, VerifyProof(leaves[0], proof.Proof, mustDigest(t, firstFiveRoot)))
	})

	t.Run("Invalid proof - tampered leaf", func(t *testing.T) {
		tampered := proof.Leaf
		tampered[0] ^= 0xFF
		require.False(t, VerifyProof(tampered, proof.Proof, tree.Root()))
	})

	t.Run("Invalid proof - every single bit flip", func(t *testing.T) {
		for entry := range proof.Proof {
			for bit := 0; bit < types.DigestLength*8; bit++ {
				tampered := make(Proof, len(proof.Proof))
				copy(tampered, proof.Proof)
				tampered[entry].Data[bit/8] ^= 1 << (bit % 8)
				require.False(t, VerifyProof(leaves[0], tampered, tree.Root()), "entry %d bit %d", entry, bit)
			}
		}
	})

	t.Run("Invalid proof - truncated", func(t *testing.T) {
		require.False(t, VerifyProof(leaves[0], proof.Proof[:2], tree.Root()))
		require.False(t, VerifyProof(leaves[0], nil, tree.Root()))
	})

	t.Run("Invalid proof - unknown side", func(t *testing.T) {
		tampered := make(Proof, len(proof.Proof))
		copy(tampered, proof.Proof)
		tampered[1].Position = types.Side(7)
		require.False(t, VerifyProof(leaves[0], tampered, tree.Root()))
	})

	t.Run("Invalid proof - nil proof", func(t *testing.T) {
		var mp *MerkleProof
		require.False(t, mp.Verify(tree.Root()))
	})

	t.Run("Single leaf tree verifies with empty proof", func(t *testing.T) {
		single, err := BuildMerkleTree(leaves[:1])
		require.NoError(t, err)
		require.Equal(t, leaves[0], single.Root())

		p, err := single.GenerateProof(leaves[0])
		require.NoError(t, err)
		require.Empty(t, p.Proof)
		require.True(t, p.Verify(single.Root()))
	})
}

// TestMerkleProofLength tests that proof length is ceil(log2(n)) for fully paired paths
func TestMerkleProofLength(t *testing.T) {
	testCases := []struct {
		numLeaves     int
		maxProofDepth int
	}{
		{1, 0},
		{2, 1},
		{4, 2},
		{6, 3},
		{8, 3},
		{16, 4},
		{100, 7},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d_leaves", tc.numLeaves), func(t *testing.T) {
			tree, err := BuildMerkleTree(createTestLeaves(tc.numLeaves))
			require.NoError(t, err)
			require.Equal(t, tc.maxProofDepth, tree.Depth())

			proof, err := tree.GenerateProofByIndex(0)
			require.NoError(t, err)
			require.Len(t, proof.Proof, tc.maxProofDepth)

			for _, p := range tree.GenerateAllProofs() {
				require.LessOrEqual(t, len(p.Proof), tc.maxProofDepth)
			}
		})
	}
}

func TestParallelBuildMatchesSequential(t *testing.T) {
	leaves := createTestLeaves(1000)

	sequential, err := BuildMerkleTree(leaves)
	require.NoError(t, err)

	for _, workers := range []int{0, 2, 4, 16} {
		t.Run(fmt.Sprintf("Workers_%d", workers), func(t *testing.T) {
			parallel, err := BuildMerkleTree(leaves, WithParallelism(workers))
			require.NoError(t, err)
			require.Equal(t, sequential.Root(), parallel.Root())
			require.Equal(t, sequential.Layers(), parallel.Layers())
		})
	}

	dupSeq, err := BuildMerkleTree(leaves[:999], WithDuplicateOdd(true))
	require.NoError(t, err)
	dupPar, err := BuildMerkleTree(leaves[:999], WithDuplicateOdd(true), WithParallelism(4))
	require.NoError(t, err)
	require.Equal(t, dupSeq.Root(), dupPar.Root())
}

func TestConcurrentProofGeneration(t *testing.T) {
	tree, err := BuildMerkleTree(createTestLeaves(257))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < tree.LeafCount(); i += 8 {
				proof, err := tree.GenerateProofByIndex(i)
				if !assert.NoError(t, err) {
					return
				}
				assert.True(t, proof.Verify(tree.Root()))
			}
		}(w)
	}
	wg.Wait()
}

func TestMerkleTreeAccessorsReturnCopies(t *testing.T) {
	tree, err := BuildMerkleTree(createTestLeaves(4))
	require.NoError(t, err)
	root := tree.Root()

	leaves := tree.Leaves()
	leaves[0][0] ^= 0xFF
	layers := tree.Layers()
	layers[1][0][0] ^= 0xFF

	assert.NotEqual(t, leaves[0], tree.Leaves()[0])
	assert.Equal(t, root, tree.Root())

	proof, err := tree.GenerateProofByIndex(0)
	require.NoError(t, err)
	assert.True(t, proof.Verify(root))
}

func TestMerkleTreeDuplicateLeaves(t *testing.T) {
	d := randomDigest()
	other := randomDigest()
	tree, err := BuildMerkleTree([]types.Digest{d, other, d})
	require.NoError(t, err)

	index, ok := tree.LeafIndex(d)
	require.True(t, ok)
	assert.Equal(t, d, tree.Leaves()[index])

	proof, err := tree.GenerateProof(d)
	require.NoError(t, err)
	assert.True(t, proof.Verify(tree.Root()))
}

func TestMerkleTreeString(t *testing.T) {
	leaves := allowlistLeaves(t)
	tree, err := BuildMerkleTree(leaves)
	require.NoError(t, err)

	out := tree.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, allowlistRoot, lines[0])
	for _, l := range leaves {
		assert.Contains(t, out, l.Hex())
	}
}

func TestVerifyProofNeverPanicsOnGarbage(t *testing.T) {
	tree, err := BuildMerkleTree(createTestLeaves(8))
	require.NoError(t, err)

	garbage := Proof{{Data: randomDigest(), Position: types.SideLeft}, {Position: types.Side(255)}}
	assert.NotPanics(t, func() {
		assert.False(t, VerifyProof(randomDigest(), garbage, tree.Root()))
	})
}
