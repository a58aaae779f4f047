package tests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// GetProjectRootPath walks up from the working directory to the directory holding go.mod.
func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	p := wd
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	panic(fmt.Sprintf("could not find project root above %s", wd))
}

// AllowlistFixture is a reference allowlist together with its expected merkle root.
type AllowlistFixture struct {
	Root         string          `json:"root"`
	UnsortedRoot string          `json:"unsortedRoot"`
	Records      []*types.Record `json:"records"`
}

func ReadAllowlistFixture(projectRoot string) (*AllowlistFixture, error) {
	filePath := filepath.Join(projectRoot, "internal", "testData", "allowlist.json")

	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var af *AllowlistFixture
	if err := json.Unmarshal(file, &af); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return af, nil
}
