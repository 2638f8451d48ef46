package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/utils"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	*key = logLevel

	return nil
}

func SetConfigOptionNetwork(co *config.ConfigOption) error {
	name := strings.ToLower(strings.TrimSpace(viper.GetString(co.Name)))
	network, err := escrow.GetNetwork(name)
	if err != nil {
		return fmt.Errorf("parsing network in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*escrow.Network)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	*key = network

	return nil
}

// SetConfigOptionFeltAddress stores the address zero padded. An empty value is left empty so optional
// addresses can fall back to their defaults.
func SetConfigOptionFeltAddress(co *config.ConfigOption) error {
	address := strings.TrimSpace(viper.GetString(co.Name))

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for the config key in %s is a string, but a %T was provided instead", co.Name, co.ConfigKey)
	}
	if address == "" {
		*key = ""
		return nil
	}

	normalized, err := utils.NormalizeAddress(address)
	if err != nil {
		return fmt.Errorf("validating Starknet address in %s: %w", co.Name, err)
	}
	*key = normalized

	return nil
}

func SetConfigOptionWalletType(co *config.ConfigOption) error {
	sessionType := wallet.SessionType(strings.ToUpper(strings.TrimSpace(viper.GetString(co.Name))))
	if !sessionType.IsValid() {
		return fmt.Errorf("invalid wallet type %q in %s, expected %s or %s", sessionType, co.Name, wallet.BridgeSessionType, wallet.DisconnectedSessionType)
	}

	key, ok := co.ConfigKey.(*wallet.SessionType)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	*key = sessionType

	return nil
}

func SetConfigOptionDuration(co *config.ConfigOption) error {
	durationStr := strings.TrimSpace(viper.GetString(co.Name))

	key, ok := co.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	if durationStr == "" {
		*key = 0
		return nil
	}

	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return fmt.Errorf("parsing duration in %s: %w", co.Name, err)
	}
	if duration <= 0 {
		return fmt.Errorf("duration in %s must be positive, got %s", co.Name, duration)
	}
	*key = duration

	return nil
}

// SetConfigOptionStringList splits a comma separated value, dropping blank entries.
func SetConfigOptionStringList(co *config.ConfigOption) error {
	raw := viper.GetString(co.Name)

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for the config key in %s is a string slice, but a %T was provided instead", co.Name, co.ConfigKey)
	}

	values := []string{}
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	*key = values

	return nil
}
