// Package config persists VPN profiles for ovpn3ctl. A profile maps a
// name to a username and an imported OpenVPN configuration file; the
// mapping lives in a YAML file in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// Profile identifies a VPN configuration by name. It is immutable once
// created apart from usage timestamps, and maps 1:1 to a configuration
// object owned by the tunnel service.
type Profile struct {
	// ID is a unique identifier for the profile.
	ID string `yaml:"id"`
	// Name is the profile name used for service-side lookups.
	Name string `yaml:"name"`
	// Username is the account used to authenticate the tunnel.
	Username string `yaml:"username"`
	// ConfigPath is the path to the OpenVPN configuration file.
	ConfigPath string `yaml:"config_path"`
	// Created is the timestamp when the profile was created.
	Created time.Time `yaml:"created"`
	// LastUsed is the timestamp of the last connection attempt.
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Validate checks that the profile has all required fields.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile name is required", common.ErrInvalidConfig)
	}
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", common.ErrInvalidConfig)
	}
	if p.ConfigPath == "" {
		return fmt.Errorf("%w: config path is required", common.ErrInvalidConfig)
	}
	return nil
}

// Store manages profile persistence.
type Store struct {
	profiles   []*Profile
	configDir  string
	configFile string
}

// NewStore creates a Store rooted at the application config directory
// and loads any existing profiles.
func NewStore() (*Store, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return newStoreAt(configDir)
}

func newStoreAt(configDir string) (*Store, error) {
	s := &Store{
		profiles:   make([]*Profile, 0),
		configDir:  configDir,
		configFile: filepath.Join(configDir, common.ProfilesFileName),
	}

	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return s, nil
}

// Load reads profiles from the configuration file.
// Returns nil if the file doesn't exist (no profiles yet).
func (s *Store) Load() error {
	data, err := os.ReadFile(s.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return nil
}

// Save persists profiles to the configuration file.
func (s *Store) Save() error {
	data, err := yaml.Marshal(&s.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}

	if err := os.WriteFile(s.configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// Add registers a new profile. The referenced configuration file is
// validated and copied into the application's config directory so the
// profile survives the original file moving.
func (s *Store) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if _, err := s.Get(profile.Name); err == nil {
		return fmt.Errorf("%w: %s", common.ErrDuplicateName, profile.Name)
	}

	if err := ValidateConfigFile(profile.ConfigPath); err != nil {
		return err
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Created = time.Now()

	configsDir := filepath.Join(s.configDir, "configs")
	if err := os.MkdirAll(configsDir, 0700); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}

	destPath := filepath.Join(configsDir, profile.ID+".ovpn")
	if err := copyFile(profile.ConfigPath, destPath); err != nil {
		return fmt.Errorf("failed to copy config file: %w", err)
	}

	profile.ConfigPath = destPath
	s.profiles = append(s.profiles, profile)
	return s.Save()
}

// Get retrieves a profile by name.
func (s *Store) Get(name string) (*Profile, error) {
	for _, profile := range s.profiles {
		if profile.Name == name {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", common.ErrProfileNotFound, name)
}

// List returns all profiles.
func (s *Store) List() []*Profile {
	return s.profiles
}

// Remove deletes a profile by name, along with its copied
// configuration file.
func (s *Store) Remove(name string) error {
	for i, profile := range s.profiles {
		if profile.Name == name {
			if err := os.Remove(profile.ConfigPath); err != nil && !os.IsNotExist(err) {
				common.LogWarn("Could not remove config file %s: %v", profile.ConfigPath, err)
			}
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return s.Save()
		}
	}
	return fmt.Errorf("%w: %s", common.ErrProfileNotFound, name)
}

// MarkUsed updates the LastUsed timestamp for a profile.
func (s *Store) MarkUsed(name string) error {
	profile, err := s.Get(name)
	if err != nil {
		return err
	}
	profile.LastUsed = time.Now()
	return s.Save()
}

// ValidateConfigFile checks that the given file looks like an OpenVPN
// configuration.
func ValidateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", common.ErrInvalidConfig, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ovpn" && ext != ".conf" {
		return fmt.Errorf("%w: expected .ovpn or .conf extension", common.ErrInvalidConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	content := string(data)
	for _, directive := range []string{"remote", "client"} {
		if strings.Contains(content, directive) {
			return nil
		}
	}
	return fmt.Errorf("%w: missing required OpenVPN directives", common.ErrInvalidConfig)
}

// copyFile copies a file from src to dst with restrictive permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write destination file: %w", err)
	}
	return nil
}
