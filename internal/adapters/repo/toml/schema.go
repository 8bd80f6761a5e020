package toml

import "fmt"

const currentSchemaVersion = 1

// fileSchema is the on-disk layout of pools.toml. Accounts are nested in
// their pool so one file rewrite commits a whole transition.
type fileSchema struct {
	Version int          `toml:"version"`
	Pools   []poolSchema `toml:"pools"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported pools schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func (s fileSchema) indexOf(id string) int {
	for i := range s.Pools {
		if s.Pools[i].ID == id {
			return i
		}
	}
	return -1
}

type poolSchema struct {
	ID             string          `toml:"id"`
	Name           string          `toml:"name"`
	Provider       string          `toml:"provider"`
	Mode           string          `toml:"mode"`
	MaxConcurrent  int             `toml:"max_concurrent,omitempty"`
	NextSwitchTime string          `toml:"next_switch_time,omitempty"`
	Revision       int64           `toml:"revision"`
	UpdatedAt      string          `toml:"updated_at"`
	Accounts       []accountSchema `toml:"accounts"`
}

type accountSchema struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Weight      int    `toml:"weight"`
	Status      string `toml:"status"`
	DisabledAt  string `toml:"disabled_at,omitempty"`
	Generations int    `toml:"generations,omitempty"`
	SecretRef   string `toml:"secret_ref,omitempty"`
	CreatedAt   string `toml:"created_at"`
}
