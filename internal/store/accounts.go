package store

import (
	"encoding/json"
	"fmt"
	"os"

	"hedgeye-alert-monitor/internal/types"
)

// LoadAccounts reads the credentials file. The file is a JSON array of
// {"email": ..., "password": ...} objects. An unreadable or empty file is a
// startup failure; the process must not run without at least one account.
func LoadAccounts(path string) ([]types.Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var accounts []types.Account
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s contains no accounts", path)
	}
	for i, a := range accounts {
		if a.Email == "" || a.Password == "" {
			return nil, fmt.Errorf("account %d in %s is missing email or password", i, path)
		}
	}

	return accounts, nil
}
