package config

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type AccountConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *AccountConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find account type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "velux":
		g.Config = &VeluxAccountConfig{}
	default:
		return fmt.Errorf("unknown account configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		if err := json.Unmarshal([]byte(result.Raw), g.Config); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}

	if c, ok := g.Config.(*VeluxAccountConfig); ok {
		c.applyDefaults()
		return c.Validate()
	}

	return nil
}

// VeluxAccountConfig carries one Velux Active account. Intervals and the
// timeout are in seconds. RefreshIntervalQuick is accepted for compatibility
// with older configurations; commands trigger an immediate poll instead of
// switching schedules.
type VeluxAccountConfig struct {
	Username     string
	Password     string
	ClientId     string
	ClientSecret string

	BaseURL string

	RefreshIntervalNormal int
	RefreshIntervalQuick  int
	ApiTimeout            int

	DiscoveryEnabled  *bool
	DiscoveryInterval int
}

const (
	defaultRefreshIntervalNormal = 40
	defaultRefreshIntervalQuick  = 10
	defaultApiTimeout            = 20
	defaultDiscoveryInterval     = 300
)

func (c *VeluxAccountConfig) applyDefaults() {
	if c.RefreshIntervalNormal <= 0 {
		c.RefreshIntervalNormal = defaultRefreshIntervalNormal
	}

	if c.RefreshIntervalQuick <= 0 {
		c.RefreshIntervalQuick = defaultRefreshIntervalQuick
	}

	if c.ApiTimeout <= 0 {
		c.ApiTimeout = defaultApiTimeout
	}

	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = defaultDiscoveryInterval
	}

	if c.DiscoveryEnabled == nil {
		enabled := true
		c.DiscoveryEnabled = &enabled
	}
}

func (c *VeluxAccountConfig) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("account configuration requires a username and password")
	}

	if c.ClientId == "" || c.ClientSecret == "" {
		return fmt.Errorf("account configuration requires a client id and secret")
	}

	return nil
}
