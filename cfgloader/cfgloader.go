// Package cfgloader loads and validates configuration at the start of an application.
package cfgloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rise-and-shine/dddbase/observability/logger"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvTest       = "test"
)

// CodeInvalidConfig is the code of every error returned by Load.
const CodeInvalidConfig = "INVALID_CONFIG"

// MustLoad is Load that terminates the process on failure.
func MustLoad[T any](opts ...Option) T {
	config, err := Load[T](opts...)
	if err != nil {
		logger.Fatalx(err)
	}
	return config
}

// Load reads ${ConfigDir}/${ENVIRONMENT}.yaml into T.
//
// The config struct maps fields with `yaml` tags, takes defaults from
// `default` tags (applied after unmarshalling, to fields left zero) and is
// validated with go-playground/validator `validate` tags. ${VAR} references in
// the file are expanded from the environment, after loading a .env file when
// present. Fields tagged `mask:"true"` are masked when the loaded config is
// printed.
func Load[T any](opts ...Option) (T, error) {
	var config T

	if reflect.ValueOf(config).Kind() == reflect.Ptr {
		return config, invalid("arg config must not be a pointer")
	}

	o := buildOptions(opts)

	_ = godotenv.Load()

	env := o.Environment
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if !slices.Contains([]string{EnvProduction, EnvStaging, EnvDev, EnvLocal, EnvTest}, env) {
		return config, invalid(
			"ENVIRONMENT env variable is not set or invalid. Choices are: production, staging, dev, local, test",
		)
	}

	path := filepath.Join(o.ConfigDir, env+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, invalid(fmt.Sprintf("config file not found in the path %s", path))
	}
	if err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}

	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, invalid(fmt.Sprintf("failed to unmarshal %s config file: %v", env, err))
	}

	if err = defaults.Set(&config); err != nil {
		return config, invalid(fmt.Sprintf("failed to set default values for config: %v", err))
	}

	if err = validateConfig(&config); err != nil {
		return config, invalid(fmt.Sprintf("invalid fields in %s config -> %s", env, err.Error()))
	}

	if !o.Silent {
		printConfig(config)
	}

	return config, nil
}

func invalid(msg string) error {
	return errx.New("[cfgloader]: "+msg, errx.WithCode(CodeInvalidConfig), errx.WithType(errx.T_Validation))
}

func validateConfig(config any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(config)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	failedFields := make([]string, 0, len(errs))
	for _, fe := range errs {
		tagErr := fe.Tag()
		if fe.Param() != "" {
			tagErr += "=" + fe.Param()
		}
		failedFields = append(failedFields, fmt.Sprintf("%s: %s", fe.Namespace(), tagErr))
	}
	return errors.New(strings.Join(failedFields, ",  "))
}
