package main

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/utilitywarehouse/git-backup/backup"
	"gopkg.in/yaml.v3"
)

// ${VAR} references keep tokens out of the config file
var envRefRgx = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// loadEnvFile loads variables from the env file into the process environment,
// existing variables are not overridden. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to load env file %s err:%w", path, err)
	}
	return nil
}

func parseConfigFile(path string) (*backup.Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	yamlFile = expandEnv(yamlFile)

	err = validateConfig(yamlFile)
	if err != nil {
		return nil, err
	}

	conf := &backup.Config{}
	err = yaml.Unmarshal(yamlFile, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}

// expandEnv replaces ${VAR} references with values from the environment,
// unset variables expand to empty string. Any other `$` is kept as is.
func expandEnv(data []byte) []byte {
	return envRefRgx.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

func validateConfig(yamlData []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	if _, ok := raw["sources"]; !ok {
		return fmt.Errorf("sources config section is missing")
	}

	return findUnexpectedKey(raw, reflect.TypeOf(backup.Config{}), "")
}

// findUnexpectedKey walks raw yaml value along the given type and returns
// error for the first map key without matching yaml tag
func findUnexpectedKey(raw any, typ reflect.Type, path string) error {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	switch typ.Kind() {
	case reflect.Struct:
		rawMap, ok := raw.(map[string]any)
		if !ok {
			if raw == nil {
				return nil
			}
			return fmt.Errorf("config section .%s is not valid", strings.TrimPrefix(path, "."))
		}

		allowed := getAllowedKeys(typ)
		for _, key := range slices.Sorted(maps.Keys(rawMap)) {
			field, ok := allowed[key]
			if !ok {
				return fmt.Errorf("unexpected key: %s.%s", path, key)
			}
			if err := findUnexpectedKey(rawMap[key], field.Type, path+"."+key); err != nil {
				return err
			}
		}

	case reflect.Slice:
		rawSlice, ok := raw.([]any)
		if !ok {
			return nil
		}
		for i, item := range rawSlice {
			if err := findUnexpectedKey(item, typ.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}

	return nil
}

// getAllowedKeys retrieves allowed keys from the yaml tags of specified struct type
func getAllowedKeys(typ reflect.Type) map[string]reflect.StructField {
	allowedKeys := make(map[string]reflect.StructField)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		yamlTag, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if yamlTag != "" && yamlTag != "-" {
			allowedKeys[yamlTag] = field
		}
	}
	return allowedKeys
}
