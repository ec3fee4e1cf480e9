package accounts

import (
	"fmt"
	"os"

	"github.com/corebank-dev/corebatch/internal/model"
)

// Load reads a savings-account CSV from path.
func Load(path string) ([]model.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening account seed: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading account seed %s: %w", path, err)
	}
	return accts, nil
}

// Save writes accounts to path as CSV.
func Save(path string, accounts []model.Account) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating account seed: %w", err)
	}
	if err := WriteAccounts(f, accounts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
