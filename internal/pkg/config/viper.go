package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ErrConfigTypeRequired is returned by NewViperFromBytes without a format.
var ErrConfigTypeRequired = errors.New("config type is required")

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper loads configuration from pathFile and watches it for changes.
//
// Every key may be overridden with an environment variable named after the
// upper-cased key with dots replaced by underscores
// (app.server.http.address becomes APP_SERVER_HTTP_ADDRESS).
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()

	filename := path.Base(pathFile)
	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(strings.TrimSuffix(filename, path.Ext(filename)))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config file changed", "path", pathFile, "op", e.Op.String())
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory.
// configType is a format supported by viper (yaml, json, toml).
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigTypeRequired
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool { return vc.v.GetBool(key) }

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string { return vc.v.GetString(key) }

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int { return vc.v.GetInt(key) }

// GetInt32 returns the value for key as int32.
func (vc *Viper) GetInt32(key string) int32 { return vc.v.GetInt32(key) }

// GetUint returns the value for key as uint.
func (vc *Viper) GetUint(key string) uint { return vc.v.GetUint(key) }

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 { return vc.v.GetFloat64(key) }

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetMinute returns the value for key as minutes.
func (vc *Viper) GetMinute(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Minute
}

// GetBinary returns the value for key decoded from base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.v.GetString(key))
	if err != nil {
		return nil
	}
	return data
}

// GetArray returns the value for key as a list of non-empty strings.
func (vc *Viper) GetArray(key string) []string {
	var parts []string
	if raw, ok := vc.v.Get(key).([]any); ok {
		parts = lo.Map(raw, func(item any, _ int) string {
			s, _ := item.(string)
			return s
		})
	} else {
		parts = strings.Split(vc.v.GetString(key), ",")
	}

	return lo.Compact(lo.Map(parts, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// Close implements io.Closer. Viper holds no resources that need releasing.
func (vc *Viper) Close() error {
	return nil
}
