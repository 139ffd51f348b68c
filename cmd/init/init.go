package init

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

const fileName = "precisefmt.toml"

// We embed the sample toml file for use with the init flag.
//
//go:embed init.toml
var initBytes []byte

// Run writes a sample config file into dir, refusing to overwrite an existing one.
func Run(dir string) error {
	path := filepath.Join(dir, fileName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err = f.Write(initBytes); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Generated %s. Now it's your turn to edit it.\n", fileName)

	return nil
}
