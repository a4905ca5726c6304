package models

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

const ConfigFile = "config.json"

// Addr unmarshals from either a JSON number or a "0x"-prefixed string, and
// doubles as a flag.Value.
type Addr uint64

func (a *Addr) Set(s string) error {
	n, err := strconv.ParseUint(strings.Replace(s, "_", "", -1), 0, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid address %s", s)
	}
	*a = Addr(n)
	return nil
}

func (a Addr) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

func (a *Addr) UnmarshalJSON(p []byte) error {
	return a.Set(strings.Trim(string(p), `"`))
}

func (a Addr) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// Layout describes where everything lives in the guest address space.
type Layout struct {
	PlashStart    Addr `json:"plash_start"`
	ExecZoneStart Addr `json:"exec_zone_start"`
	MaxAppSize    Addr `json:"max_app_size"`
	AbiTableStart Addr `json:"abi_table_start"`
	HostStubStart Addr `json:"host_stub_start"`
	StackStart    Addr `json:"stack_start"`
	StackSize     Addr `json:"stack_size"`
}

var DefaultLayout = Layout{
	PlashStart:    0xffff_ffc0_2200_0000,
	ExecZoneStart: 0xffff_ffc0_8010_0000,
	MaxAppSize:    0x100000,
	AbiTableStart: 0xffff_ffc0_800f_f000,
	HostStubStart: 0xffff_ffc0_800f_e000,
	StackStart:    0xffff_ffc0_8030_0000,
	StackSize:     0x10000,
}

type Config struct {
	Layout

	Color   bool `json:"color"`
	Verbose bool `json:"verbose"`

	Output io.WriteCloser `json:"-"`
}

func NewConfig() *Config {
	return &Config{Layout: DefaultLayout, Output: os.Stderr}
}

// LoadConfig reads path over the defaults. An empty path searches the
// plashload config folders for config.json and falls back to defaults.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		dirs := configdir.New("plashload", "")
		folder := dirs.QueryFolderContainsFile(ConfigFile)
		if folder == nil {
			return c, nil
		}
		path = folder.Path
		data, err = folder.ReadFile(ConfigFile)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return c, nil
}
