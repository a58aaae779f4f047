package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/config"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/distributor"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/logger"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "merkle-allowlist",
		Usage: "Build allowlist merkle trees and serve claim proofs",
		Description: `Publishes (address, quantity) allowlists as keccak256 merkle trees
compatible with OpenZeppelin's MerkleProof.verify, and generates or checks
the proofs recipients submit when claiming.`,
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   fmt.Sprintf("Where published trees are stored: %s", config.GetSupportedPersistenceTypesString()),
				Value:   config.PersistenceTypeBadger.String(),
				EnvVars: []string{config.EnvAllowlistPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				Value:   config.DefaultDataPath,
				EnvVars: []string{config.EnvAllowlistDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvAllowlistRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvAllowlistRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvAllowlistRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix prepended to every Redis key",
				EnvVars: []string{config.EnvAllowlistRedisKeyPrefix},
			},
			&cli.IntFlag{
				Name:    "parallelism",
				Usage:   "Goroutines used to hash each tree layer (0 = GOMAXPROCS)",
				Value:   1,
				EnvVars: []string{config.EnvAllowlistParallelism},
			},
			&cli.IntFlag{
				Name:    "cache-size",
				Usage:   "Number of rebuilt trees kept in memory",
				Value:   config.DefaultCacheSize,
				EnvVars: []string{config.EnvAllowlistCacheSize},
			},
			&cli.BoolFlag{
				Name:    "sort-leaves",
				Usage:   "Sort leaves before building so that input order does not change the root",
				Value:   true,
				EnvVars: []string{config.EnvAllowlistSortLeaves},
			},
			&cli.BoolFlag{
				Name:    "duplicate-odd",
				Usage:   "Pair an unpaired node with itself instead of carrying it up",
				EnvVars: []string{config.EnvAllowlistDuplicateOdd},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvAllowlistDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Publish an allowlist and print a claim for every record",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON file holding an array of {\"address\", \"quantity\"} records",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "Name stored with the published tree",
					},
				},
				Action: runBuild,
			},
			{
				Name:  "prove",
				Usage: "Print the claim for one record of a published tree",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "root",
						Usage: "Root of the published tree (defaults to the active root)",
					},
					&cli.StringFlag{
						Name:     "address",
						Usage:    "Recipient address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "quantity",
						Usage:    "Allotted quantity (decimal or 0x hex)",
						Required: true,
					},
				},
				Action: runProve,
			},
			{
				Name:  "verify",
				Usage: "Check a proof against a root; exits non-zero when it does not verify",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "leaf", Usage: "Leaf digest (hex)", Required: true},
					&cli.StringFlag{Name: "root", Usage: "Merkle root (hex)", Required: true},
					&cli.StringFlag{Name: "proof", Usage: "Comma separated sibling digests, leaf to root"},
				},
				Action: runVerify,
			},
			{
				Name:   "list",
				Usage:  "List published trees",
				Action: runList,
			},
		},
	}
}

func parseAllowlistConfig(c *cli.Context) *config.AllowlistConfig {
	return &config.AllowlistConfig{
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		DataPath:        c.String("data-path"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		SortLeaves:   c.Bool("sort-leaves"),
		DuplicateOdd: c.Bool("duplicate-odd"),
		Parallelism:  c.Int("parallelism"),
		CacheSize:    c.Int("cache-size"),
		Debug:        c.Bool("debug"),
	}
}

// withDistributor wires logger, persistence and distributor for one command.
func withDistributor(c *cli.Context, fn func(l *zap.Logger, d *distributor.Distributor) error) error {
	cfg := parseAllowlistConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	store, err := newPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	d, err := distributor.NewDistributor(store, &distributor.Config{
		SortLeaves:   cfg.SortLeaves,
		DuplicateOdd: cfg.DuplicateOdd,
		Parallelism:  cfg.Parallelism,
		CacheSize:    cfg.CacheSize,
	}, l)
	if err != nil {
		return err
	}

	return fn(l, d)
}

func readRecords(path string) ([]*types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read allowlist %s", path)
	}

	var records []*types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "failed to parse allowlist %s", path)
	}
	return records, nil
}

func writeJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

type buildOutput struct {
	Root   types.Digest         `json:"root"`
	Label  string               `json:"label,omitempty"`
	Claims []*distributor.Claim `json:"claims"`
}

func runBuild(c *cli.Context) error {
	records, err := readRecords(c.String("input"))
	if err != nil {
		return err
	}

	return withDistributor(c, func(l *zap.Logger, d *distributor.Distributor) error {
		tree, err := d.Publish(records, c.String("label"))
		if err != nil {
			return fmt.Errorf("failed to publish allowlist: %w", err)
		}
		l.Sugar().Infow("Merkle root", "root", tree.HexRoot(), "leaves", tree.LeafCount())
		l.Sugar().Debugf("Merkle tree:\n%s", tree)

		claims, err := d.ProveAll(tree.Root())
		if err != nil {
			return fmt.Errorf("failed to generate claims: %w", err)
		}

		return writeJSON(c, &buildOutput{
			Root:   tree.Root(),
			Label:  c.String("label"),
			Claims: claims,
		})
	})
}

func runProve(c *cli.Context) error {
	req := &config.ClaimRequest{
		Root:     c.String("root"),
		Address:  c.String("address"),
		Quantity: c.String("quantity"),
	}
	root, record, err := req.Validate()
	if err != nil {
		return fmt.Errorf("invalid claim request: %w", err)
	}

	return withDistributor(c, func(l *zap.Logger, d *distributor.Distributor) error {
		claim, err := d.ProveRecord(root, record)
		if err != nil {
			return err
		}
		l.Sugar().Debugw("Generated claim", "root", claim.Root.Hex(), "leaf", claim.Leaf.Hex(), "proof", claim.Proof.Hex())
		return writeJSON(c, claim)
	})
}

func parseProof(s string) (merkle.Proof, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return merkle.Proof{}, nil
	}

	parts := strings.Split(s, ",")
	hashes := make([]types.Digest, 0, len(parts))
	for i, p := range parts {
		d, err := types.HexToDigest(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "proof entry %d", i)
		}
		hashes = append(hashes, d)
	}
	return merkle.ProofFromHashes(hashes), nil
}

func runVerify(c *cli.Context) error {
	leafDigest, err := types.HexToDigest(c.String("leaf"))
	if err != nil {
		return errors.Wrap(err, "invalid leaf")
	}
	root, err := types.HexToDigest(c.String("root"))
	if err != nil {
		return errors.Wrap(err, "invalid root")
	}
	proof, err := parseProof(c.String("proof"))
	if err != nil {
		return errors.Wrap(err, "invalid proof")
	}

	if !merkle.VerifyProof(leafDigest, proof, root) {
		return fmt.Errorf("proof does not verify against root %s", root.Hex())
	}

	_, err = fmt.Fprintln(c.App.Writer, "valid")
	return err
}

func runList(c *cli.Context) error {
	return withDistributor(c, func(l *zap.Logger, d *distributor.Distributor) error {
		snapshots, err := d.Snapshots()
		if err != nil {
			return err
		}
		active, err := d.ActiveRoot()
		if err != nil {
			return err
		}

		type listEntry struct {
			Root      types.Digest `json:"root"`
			Label     string       `json:"label"`
			Leaves    int          `json:"leaves"`
			CreatedAt int64        `json:"createdAt"`
			Active    bool         `json:"active"`
		}
		entries := make([]listEntry, 0, len(snapshots))
		for _, s := range snapshots {
			entries = append(entries, listEntry{
				Root:      s.Root,
				Label:     s.Label,
				Leaves:    len(s.Leaves),
				CreatedAt: s.CreatedAt,
				Active:    s.Root == active,
			})
		}
		return writeJSON(c, entries)
	})
}
