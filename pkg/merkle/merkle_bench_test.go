package merkle

import (
	"fmt"
	"testing"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/leaf"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/testutil"
)

// BenchmarkMerkleTreeBuild benchmarks merkle tree construction with various sizes
func BenchmarkMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestLeaves(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(leaves)
			}
		})
	}
}

// BenchmarkMerkleTreeBuildParallel benchmarks layer hashing spread across goroutines
func BenchmarkMerkleTreeBuildParallel(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestLeaves(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(leaves, WithParallelism(0))
			}
		})
	}
}

// BenchmarkMerkleProofGeneration benchmarks proof generation
func BenchmarkMerkleProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		tree, _ := BuildMerkleTree(createTestLeaves(size))

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProofByIndex(i % size)
			}
		})
	}
}

// BenchmarkMerkleProofVerification benchmarks proof verification
func BenchmarkMerkleProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000}

	for _, size := range sizes {
		tree, _ := BuildMerkleTree(createTestLeaves(size))
		proof, _ := tree.GenerateProofByIndex(0)

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(proof.Leaf, proof.Proof, tree.Root())
			}
		})
	}
}

// BenchmarkAllowlistBuild includes leaf encoding, as a publish does
func BenchmarkAllowlistBuild(b *testing.B) {
	sizes := []int{100, 10000}

	for _, size := range sizes {
		records := testutil.CreateRandomRecords(size, 1)

		b.Run(fmt.Sprintf("Records_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				leaves, err := leaf.HashRecords(records)
				if err != nil {
					b.Fatal(err)
				}
				_, _ = BuildMerkleTree(leaves)
			}
		})
	}
}
