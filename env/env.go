// Package env wraps viper with required-key validation so that missing
// configuration fails loudly at startup instead of deep inside a request.
package env

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var (
	mu          sync.Mutex
	validations = map[string]string{}
	validate    = validator.New()
)

func init() {
	viper.AutomaticEnv()
}

// RegisterValidation registers a validation tag for an environment key. Keys
// are validated when ValidateEnv runs, typically from a package init or a
// service's setDefaults.
func RegisterValidation(key string, tag string) {
	mu.Lock()
	defer mu.Unlock()
	validations[key] = tag
}

// ValidateEnv checks every registered key against its validation tag and
// panics on the first failure. Configuration errors are programmer errors.
func ValidateEnv() {
	mu.Lock()
	defer mu.Unlock()
	for key, tag := range validations {
		if err := validate.Var(viper.Get(key), tag); err != nil {
			panic(fmt.Sprintf("env var %s failed validation %q: %s", key, tag, err))
		}
	}
}

// GetString returns the string value of an environment key
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt64 returns the int64 value of an environment key
func GetInt64(key string) int64 {
	return viper.GetInt64(key)
}

// GetBool returns the bool value of an environment key
func GetBool(key string) bool {
	return viper.GetBool(key)
}
