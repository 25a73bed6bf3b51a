// Package config loads boot and machine settings with Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

const (
	// ConfigName is the base name of the configuration file searched for.
	ConfigName = "efiboot"

	// EnvPrefix prefixes every environment override, e.g. EFIBOOT_BOOT_COUNTDOWN_SECONDS.
	EnvPrefix = "EFIBOOT"
)

// Config is the complete loader configuration.
type Config struct {
	Boot    BootConfig    `mapstructure:"boot" json:"boot" yaml:"boot"`
	Machine MachineConfig `mapstructure:"machine" json:"machine" yaml:"machine"`
}

// BootConfig controls the boot sequence.
type BootConfig struct {
	CountdownSeconds  int    `mapstructure:"countdown_seconds" json:"countdown_seconds" yaml:"countdown_seconds"`
	StopKey           string `mapstructure:"stop_key" json:"stop_key" yaml:"stop_key"`
	PauseBetweenSteps bool   `mapstructure:"pause_between_steps" json:"pause_between_steps" yaml:"pause_between_steps"`
	PageLines         int    `mapstructure:"page_lines" json:"page_lines" yaml:"page_lines"`
	PauseOnPage       bool   `mapstructure:"pause_on_page" json:"pause_on_page" yaml:"pause_on_page"`
	DebugTableInfo    bool   `mapstructure:"debug_table_info" json:"debug_table_info" yaml:"debug_table_info"`
	WorkingDirectory  string `mapstructure:"working_directory" json:"working_directory" yaml:"working_directory"`
	KernelPath        string `mapstructure:"kernel_path" json:"kernel_path" yaml:"kernel_path"`
	// FileSystemIndex selects a volume by position; negative means the boot volume.
	FileSystemIndex int `mapstructure:"file_system_index" json:"file_system_index" yaml:"file_system_index"`
}

// StopRune returns the key that halts the countdown.
func (b BootConfig) StopRune() rune {
	for _, r := range b.StopKey {
		return r
	}
	return 's'
}

// MachineConfig describes the firmware the emulator presents.
type MachineConfig struct {
	FirmwareVendor   string `mapstructure:"firmware_vendor" json:"firmware_vendor" yaml:"firmware_vendor"`
	FirmwareRevision uint32 `mapstructure:"firmware_revision" json:"firmware_revision" yaml:"firmware_revision"`
	// UEFIRevision is "major.minor", e.g. "2.70".
	UEFIRevision   string `mapstructure:"uefi_revision" json:"uefi_revision" yaml:"uefi_revision"`
	DescriptorSize int    `mapstructure:"descriptor_size" json:"descriptor_size" yaml:"descriptor_size"`
	// MapGrowth is the number of descriptors each pool allocation adds to the map.
	MapGrowth    int                 `mapstructure:"map_growth" json:"map_growth" yaml:"map_growth"`
	Memory       []MemoryRegion      `mapstructure:"memory" json:"memory" yaml:"memory"`
	ConfigTables []ConfigTableEntry  `mapstructure:"config_tables" json:"config_tables" yaml:"config_tables"`
	Volumes      []VolumeConfig      `mapstructure:"volumes" json:"volumes" yaml:"volumes"`
	BootVolume   int                 `mapstructure:"boot_volume" json:"boot_volume" yaml:"boot_volume"`
	// Keys is typed on the console one rune at a time, each after KeyDelay.
	Keys     string        `mapstructure:"keys" json:"keys" yaml:"keys"`
	KeyDelay time.Duration `mapstructure:"key_delay" json:"key_delay" yaml:"key_delay"`
	// Time is the RFC 3339 wall clock reported by GetTime; empty uses the host clock.
	Time string `mapstructure:"time" json:"time" yaml:"time"`
}

// MemoryRegion is one memory map descriptor.
type MemoryRegion struct {
	Type      string `mapstructure:"type" json:"type" yaml:"type"`
	Start     uint64 `mapstructure:"start" json:"start" yaml:"start"`
	Pages     uint64 `mapstructure:"pages" json:"pages" yaml:"pages"`
	Attribute uint64 `mapstructure:"attribute" json:"attribute" yaml:"attribute"`
}

// ConfigTableEntry is one configuration table entry.
type ConfigTableEntry struct {
	GUID    string `mapstructure:"guid" json:"guid" yaml:"guid"`
	Address uint64 `mapstructure:"address" json:"address" yaml:"address"`
}

// VolumeConfig is a volume carrying a simple file system. Path names a host
// directory; without one the volume is in-memory and seeded from Files.
type VolumeConfig struct {
	Name  string            `mapstructure:"name" json:"name" yaml:"name"`
	Path  string            `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	// Files is decoded from YAML directly; viper would fold the names to
	// lower case and split them on '.'.
	Files map[string]string `mapstructure:"-" json:"files,omitempty" yaml:"files,omitempty"`
}

// Options selects where configuration is read from.
type Options struct {
	// ConfigFile overrides the search for efiboot.yaml.
	ConfigFile string
	// MachineFile, when set, replaces the machine section.
	MachineFile string
	// EnvFile is loaded into the environment before overrides are applied.
	// Missing files are ignored.
	EnvFile string
}

// Load reads configuration from file, environment and defaults.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s: %w", envFile, err)
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.efiboot")
		v.AddConfigPath("/etc/efiboot")
	}

	SetDefaults(v)

	// Allow environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		if err := restoreVolumeFiles(used, true, config.Machine.Volumes); err != nil {
			return nil, err
		}
	}

	if opts.MachineFile != "" {
		machine, err := loadMachine(opts.MachineFile)
		if err != nil {
			return nil, err
		}
		config.Machine = *machine
	}

	config.applyMachineDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadMachine(path string) (*MachineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setMachineDefaults(v, "")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading machine file %s: %w", path, err)
	}
	var machine MachineConfig
	if err := v.Unmarshal(&machine); err != nil {
		return nil, fmt.Errorf("error unmarshaling machine file %s: %w", path, err)
	}
	if err := restoreVolumeFiles(path, false, machine.Volumes); err != nil {
		return nil, err
	}
	return &machine, nil
}

type volumeFiles struct {
	Files map[string]string `yaml:"files"`
}

// restoreVolumeFiles fills volumes[i].Files from the YAML document at path.
// nested selects machine.volumes over a top-level volumes list.
func restoreVolumeFiles(path string, nested bool, volumes []VolumeConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case "", ".yaml", ".yml", ".json":
	default:
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	var doc struct {
		Volumes []volumeFiles `yaml:"volumes"`
		Machine struct {
			Volumes []volumeFiles `yaml:"volumes"`
		} `yaml:"machine"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error decoding volume files in %s: %w", path, err)
	}

	decoded := doc.Volumes
	if nested {
		decoded = doc.Machine.Volumes
	}
	for i := range volumes {
		if i < len(decoded) {
			volumes[i].Files = decoded[i].Files
		}
	}
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("boot.countdown_seconds", 10)
	v.SetDefault("boot.stop_key", "s")
	v.SetDefault("boot.pause_between_steps", false)
	v.SetDefault("boot.page_lines", 20)
	v.SetDefault("boot.pause_on_page", false)
	v.SetDefault("boot.debug_table_info", false)
	v.SetDefault("boot.working_directory", "")
	v.SetDefault("boot.kernel_path", "")
	v.SetDefault("boot.file_system_index", -1)
	setMachineDefaults(v, "machine.")
}

func setMachineDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+"firmware_vendor", "EDK II")
	v.SetDefault(prefix+"firmware_revision", 0x10000)
	v.SetDefault(prefix+"uefi_revision", "2.70")
	v.SetDefault(prefix+"descriptor_size", 48)
	v.SetDefault(prefix+"map_growth", 0)
	v.SetDefault(prefix+"boot_volume", 0)
	v.SetDefault(prefix+"keys", "")
	v.SetDefault(prefix+"key_delay", "0s")
	v.SetDefault(prefix+"time", "")
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var config Config
	// Defaults alone always decode.
	_ = v.Unmarshal(&config)
	config.applyMachineDefaults()
	return &config
}

func (c *Config) applyMachineDefaults() {
	if len(c.Machine.Memory) == 0 {
		c.Machine.Memory = DefaultMemory()
	}
	if len(c.Machine.ConfigTables) == 0 {
		c.Machine.ConfigTables = DefaultConfigTables()
	}
	if len(c.Machine.Volumes) == 0 {
		c.Machine.Volumes = []VolumeConfig{{
			Name: "ESP",
			Files: map[string]string{
				"EFI/BOOT/BOOTX64.EFI": "MZ",
				"boot/kernel.elf":      "\x7fELF",
			},
		}}
	}
}

// DefaultMemory is a small map shaped like a typical virtual machine.
func DefaultMemory() []MemoryRegion {
	wb := types.MemoryUC | types.MemoryWC | types.MemoryWT | types.MemoryWB
	return []MemoryRegion{
		{Type: "BootServicesCode", Start: 0x0, Pages: 0x1, Attribute: wb},
		{Type: "ConventionalMemory", Start: 0x1000, Pages: 0x9F, Attribute: wb},
		{Type: "ConventionalMemory", Start: 0x100000, Pages: 0x700, Attribute: wb},
		{Type: "LoaderCode", Start: 0x800000, Pages: 0x100, Attribute: wb},
		{Type: "ACPIReclaimMemory", Start: 0x900000, Pages: 0x10, Attribute: wb},
		{Type: "ACPIMemoryNVS", Start: 0x910000, Pages: 0x10, Attribute: wb},
		{Type: "BootServicesData", Start: 0x920000, Pages: 0x2E0, Attribute: wb},
		{Type: "ConventionalMemory", Start: 0xC00000, Pages: 0x7400, Attribute: wb},
		{Type: "RuntimeServicesCode", Start: 0x8000000, Pages: 0x20, Attribute: wb | types.MemoryRuntime},
		{Type: "RuntimeServicesData", Start: 0x8020000, Pages: 0x20, Attribute: wb | types.MemoryRuntime},
		{Type: "MemoryMappedIO", Start: 0xFFC00000, Pages: 0x400, Attribute: types.MemoryUC | types.MemoryRuntime},
	}
}

// DefaultConfigTables publishes both ACPI root pointers and SMBIOS.
func DefaultConfigTables() []ConfigTableEntry {
	return []ConfigTableEntry{
		{GUID: types.AcpiTableGUID.String(), Address: 0x9FE014},
		{GUID: types.Acpi20TableGUID.String(), Address: 0x9FE000},
		{GUID: types.SmbiosTableGUID.String(), Address: 0x9FD000},
	}
}

// Validate checks values that would make the emulated firmware inconsistent.
func (c *Config) Validate() error {
	if c.Boot.CountdownSeconds < 0 {
		return fmt.Errorf("boot.countdown_seconds must not be negative, got %d", c.Boot.CountdownSeconds)
	}
	if c.Boot.PageLines < 0 {
		return fmt.Errorf("boot.page_lines must not be negative, got %d", c.Boot.PageLines)
	}
	if c.Machine.DescriptorSize < types.MemoryDescriptorSize {
		return fmt.Errorf("machine.descriptor_size must be at least %d, got %d", types.MemoryDescriptorSize, c.Machine.DescriptorSize)
	}
	if c.Machine.MapGrowth < 0 {
		return fmt.Errorf("machine.map_growth must not be negative, got %d", c.Machine.MapGrowth)
	}
	if _, _, err := c.Machine.Revision(); err != nil {
		return err
	}
	for i, region := range c.Machine.Memory {
		if _, err := types.ParseMemoryType(region.Type); err != nil {
			return fmt.Errorf("machine.memory[%d]: %w", i, err)
		}
	}
	for i, table := range c.Machine.ConfigTables {
		if _, err := types.ParseGUID(table.GUID); err != nil {
			return fmt.Errorf("machine.config_tables[%d]: %w", i, err)
		}
	}
	if len(c.Machine.Volumes) > 0 && (c.Machine.BootVolume < 0 || c.Machine.BootVolume >= len(c.Machine.Volumes)) {
		return fmt.Errorf("machine.boot_volume %d out of range, %d volumes configured", c.Machine.BootVolume, len(c.Machine.Volumes))
	}
	if _, err := c.Machine.Clock(); err != nil {
		return err
	}
	return nil
}

// Revision parses UEFIRevision into its major and minor parts.
func (m MachineConfig) Revision() (major, minor uint32, err error) {
	if _, err := fmt.Sscanf(m.UEFIRevision, "%d.%d", &major, &minor); err != nil {
		return 0, 0, fmt.Errorf("machine.uefi_revision %q is not major.minor: %w", m.UEFIRevision, err)
	}
	return major, minor, nil
}

// Clock returns the configured wall clock, or the zero time when the host
// clock should be used.
func (m MachineConfig) Clock() (time.Time, error) {
	if m.Time == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, m.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("machine.time: %w", err)
	}
	return t, nil
}
