package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/internal/utils"
)

// LoadIdentity reads the DataHub client config at path and returns the identity it describes.
// A leading "~/" is expanded to the user's home directory.
func LoadIdentity(path string) (domain.Identity, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return domain.Identity{}, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to read user info %s: %w", expanded, err)
	}

	return ParseIdentity(data)
}

// ParseIdentity decodes a DataHub client config document
func ParseIdentity(data []byte) (domain.Identity, error) {
	var info domain.UserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to parse user info: %w", err)
	}

	identity := info.Identity()
	if identity.Token == "" {
		return domain.Identity{}, fmt.Errorf("user info has no token")
	}
	if identity.OwnerID == "" {
		return domain.Identity{}, fmt.Errorf("user info has no profile id")
	}
	if identity.Username == "" {
		return domain.Identity{}, fmt.Errorf("user info has no username")
	}

	return identity, nil
}

// UnusualProfileFields names the profile fields that do not look like
// DataHub values. The checks still run with them.
func UnusualProfileFields(identity domain.Identity) []string {
	var fields []string
	if !utils.ValidateUsername(identity.Username) {
		fields = append(fields, "username")
	}
	if identity.Email != "" && !utils.ValidateEmail(identity.Email) {
		fields = append(fields, "email")
	}
	return fields
}

// ExpandHome replaces a leading "~/" with the current user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
