// Package device keeps this client's identity: the name it announces to the
// play queue server and a stable id for the local UI.
package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
)

// DefaultConfigPath is where the identity is stored when no path is given.
const DefaultConfigPath = "data/device.json"

// Info is the device identity.
type Info struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	Platform string `json:"platform,omitempty"`
}

// Service manages the persisted device identity.
type Service struct {
	mu         sync.RWMutex
	configPath string
	info       Info
}

type persistedConfig struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// NewService loads the identity from configPath, generating and saving a new
// one when none exists. A non-empty name overrides the stored one.
func NewService(configPath, name string) (*Service, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	svc := &Service{configPath: configPath}
	svc.info.Host, svc.info.Platform = describeHost()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	dirty := false
	if err := svc.loadConfig(); err != nil {
		log.Debug().Err(err).Msg("No existing device config, generating new identity")
		svc.info.UUID = uuid.New().String()
		dirty = true
	}

	name = strings.TrimSpace(name)
	switch {
	case name != "" && name != svc.info.Name:
		svc.info.Name = name
		dirty = true
	case svc.info.Name == "":
		svc.info.Name = defaultName(svc.info.Host)
		dirty = true
	}

	if dirty {
		if err := svc.saveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save device config: %w", err)
		}
	}

	log.Info().
		Str("uuid", svc.info.UUID).
		Str("name", svc.info.Name).
		Msg("Device identity initialized")

	return svc, nil
}

func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	var cfg persistedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid config format: %w", err)
	}
	if _, err := uuid.Parse(cfg.UUID); err != nil {
		return fmt.Errorf("config has invalid uuid %q: %w", cfg.UUID, err)
	}

	s.info.UUID = cfg.UUID
	s.info.Name = cfg.Name
	return nil
}

func (s *Service) saveConfig() error {
	data, err := json.MarshalIndent(persistedConfig{UUID: s.info.UUID, Name: s.info.Name}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configPath, data, 0644)
}

// Info returns the current identity.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Name returns the name announced in outbound frames.
func (s *Service) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Name
}

// SetName renames the device and persists it.
func (s *Service) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Name = name
	return s.saveConfig()
}

// describeHost returns the hostname and a short platform description.
func describeHost() (hostname, platform string) {
	info, err := host.Info()
	if err != nil {
		log.Debug().Err(err).Msg("Host info unavailable")
		hostname, _ = os.Hostname()
		return hostname, ""
	}
	return info.Hostname, platformString(info.Platform, info.PlatformVersion, info.OS, info.KernelArch)
}

func platformString(platform, version, goos, arch string) string {
	desc := strings.TrimSpace(platform + " " + version)
	if goos == "" && arch == "" {
		return desc
	}
	if desc == "" {
		return goos + "/" + arch
	}
	return desc + " (" + goos + "/" + arch + ")"
}

func defaultName(host string) string {
	if host == "" {
		return "Stellar Queue"
	}
	return host
}
