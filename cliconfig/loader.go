// Package cliconfig loads command configuration structs from CLI flags,
// environment variables and an optional config file.
//
// Fields are bound with struct tags:
//
//	cli:"time-limit"      the flag (or config file key) to read
//	cli:"arg:0"           a positional argument; arg:* takes all of them
//	env:"PROCCTL_PID"     fallback for positional arguments
//	validate:"required"   fail when the value is empty
//	normalize:"filepath"  expand ~ and $VARS and make the path absolute
//	normalize:"list"      split comma separated slice entries
package cliconfig

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/buildkite/procctl/internal/osutil"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

type Loader struct {
	// The context that is passed when using a urfave/cli action
	CLI *cli.Context

	// The struct that the config values will be loaded into
	Config any

	// Paths checked, in order, when --config isn't given
	DefaultConfigFilePaths []string

	// The file that was used when loading this configuration
	File *File
}

// Matches "arg:index" (specific non-flag arg) or "arg:*" (all non-flag args).
var argCLINameRE = regexp.MustCompile(`^arg:(\d+|\*)$`)

// Load fills in the config struct and returns any warnings.
func (l *Loader) Load() (warnings []string, err error) {
	if path := l.CLI.String("config"); path != "" {
		file := File{Path: path}

		// A file asked for by name has to exist.
		if !file.Exists() {
			absolutePath, _ := file.AbsolutePath()
			return warnings, fmt.Errorf("a configuration file could not be found at: %q", absolutePath)
		}
		l.File = &file
	} else {
		for _, path := range l.DefaultConfigFilePaths {
			file := File{Path: path}
			if file.Exists() {
				l.File = &file
				break
			}
		}
	}

	if l.File != nil {
		if err := l.File.Load(); err != nil {
			return warnings, fmt.Errorf("loading config file: %w", err)
		}
	}

	fields, err := reflections.FieldsDeep(l.Config)
	if err != nil {
		return warnings, fmt.Errorf("listing config fields: %w", err)
	}

	for _, fieldName := range fields {
		cliName, _ := reflections.GetFieldTag(l.Config, fieldName, "cli")
		if cliName != "" {
			if err := l.setFieldValueFromCLI(fieldName, cliName); err != nil {
				return warnings, fmt.Errorf("setting config field %s: %w", fieldName, err)
			}
		}

		if normalization, _ := reflections.GetFieldTag(l.Config, fieldName, "normalize"); normalization != "" {
			if err := l.normalizeField(fieldName, normalization); err != nil {
				return warnings, fmt.Errorf("normalizing config field %s: %w", fieldName, err)
			}
		}

		if deprecation, _ := reflections.GetFieldTag(l.Config, fieldName, "deprecated"); deprecation != "" {
			if !l.fieldValueIsEmpty(fieldName) {
				warnings = append(warnings,
					fmt.Sprintf("The config option `%s` has been deprecated: %s", cliName, deprecation))
			}
		}

		if rules, _ := reflections.GetFieldTag(l.Config, fieldName, "validate"); rules != "" {
			label := cliName
			if label == "" || argCLINameRE.MatchString(label) {
				label = strings.ToLower(fieldName)
			}
			if err := l.validateField(fieldName, label, rules); err != nil {
				return warnings, err
			}
		}
	}

	if l.File != nil && l.File.Path != "" {
		absolutePath, _ := l.File.AbsolutePath()
		warnings = append(warnings, fmt.Sprintf("Loaded config from %s", absolutePath))
	}

	return warnings, nil
}

func (l Loader) setFieldValueFromCLI(fieldName, cliName string) error {
	fieldKind, err := reflections.GetFieldKind(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the kind of struct field %q: %w", fieldName, err)
	}
	fieldType, err := reflections.GetFieldType(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the type of struct field %q: %w", fieldName, err)
	}

	var value any

	if argMatch := argCLINameRE.FindStringSubmatch(cliName); argMatch != nil {
		value, err = l.argValue(fieldName, fieldKind, argMatch[1])
		if err != nil {
			return err
		}
	} else {
		// Config file values are the defaults; anything set on the
		// command line or through a flag's env var wins.
		if l.File != nil {
			if raw, ok := l.File.Config[cliName]; ok {
				value, err = convertString(raw, fieldKind, fieldType)
				if err != nil {
					return fmt.Errorf("config file value for %s: %w", cliName, err)
				}
			}
		}

		if value == nil || l.cliValueIsSet(cliName) {
			value, err = l.flagValue(cliName, fieldKind, fieldType)
			if err != nil {
				return err
			}
		}
	}

	if value == nil {
		return nil
	}
	if err := reflections.SetField(l.Config, fieldName, value); err != nil {
		return fmt.Errorf("setting value field %q to %q: %w", fieldName, value, err)
	}
	return nil
}

func (l Loader) argValue(fieldName string, kind reflect.Kind, index string) (any, error) {
	args := []string(l.CLI.Args())

	if index == "*" {
		if kind != reflect.Slice {
			return nil, fmt.Errorf("arg:* can only be bound to a slice field")
		}
		return args, nil
	}

	i, err := strconv.Atoi(index)
	if err != nil {
		return nil, fmt.Errorf("converting arg index to int: %w", err)
	}
	if i < len(args) {
		return convertString(args[i], kind, "")
	}

	// Fall back to an environment variable, if the field names one.
	if envName, _ := reflections.GetFieldTag(l.Config, fieldName, "env"); envName != "" {
		if envValue, ok := os.LookupEnv(envName); ok {
			return convertString(envValue, kind, "")
		}
	}
	return nil, nil
}

func (l Loader) flagValue(cliName string, kind reflect.Kind, fieldType string) (any, error) {
	switch kind {
	case reflect.String:
		return l.CLI.String(cliName), nil
	case reflect.Slice:
		return l.CLI.StringSlice(cliName), nil
	case reflect.Bool:
		return l.CLI.Bool(cliName), nil
	case reflect.Int:
		return l.CLI.Int(cliName), nil
	case reflect.Int64:
		switch fieldType {
		case "int64":
			return l.CLI.Int64(cliName), nil
		case "time.Duration":
			return l.CLI.Duration(cliName), nil
		}
		return nil, fmt.Errorf("unsupported field type %s for kind int64", fieldType)
	}
	return nil, fmt.Errorf("unable to handle type: %s", kind)
}

func convertString(raw string, kind reflect.Kind, fieldType string) (any, error) {
	switch kind {
	case reflect.String:
		return raw, nil
	case reflect.Slice:
		return strings.Split(raw, ","), nil
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int:
		return strconv.Atoi(raw)
	case reflect.Int64:
		if fieldType == "time.Duration" {
			return time.ParseDuration(raw)
		}
		return strconv.ParseInt(raw, 10, 64)
	}
	return nil, fmt.Errorf("unable to convert string to type %s", kind)
}

// Errorf returns an error pointing the user at the command's help.
func (l Loader) Errorf(format string, v ...any) error {
	suffix := fmt.Sprintf(" See: `%s %s --help`", l.CLI.App.Name, l.CLI.Command.Name)
	return fmt.Errorf(format+suffix, v...)
}

func (l Loader) cliValueIsSet(cliName string) bool {
	if l.CLI.IsSet(cliName) {
		return true
	}

	// cli.Context#IsSet only checks to see if the command was set via the cli, not
	// via the environment. So here we do some hacks to find out the name of the
	// EnvVar, and return true if it was set.
	for _, flag := range l.CLI.Command.Flags {
		name, _ := reflections.GetField(flag, "Name")
		envVar, _ := reflections.GetField(flag, "EnvVar")
		if name != cliName {
			continue
		}
		if envVarStr, ok := envVar.(string); ok && envVarStr != "" {
			for _, env := range strings.Split(envVarStr, ",") {
				if os.Getenv(strings.TrimSpace(env)) != "" {
					return true
				}
			}
		}
	}
	return false
}

func (l Loader) fieldValueIsEmpty(fieldName string) bool {
	value, _ := reflections.GetField(l.Config, fieldName)
	if value == nil {
		return true
	}
	return reflect.ValueOf(value).IsZero() || isEmptySlice(value)
}

func isEmptySlice(value any) bool {
	v := reflect.ValueOf(value)
	return v.Kind() == reflect.Slice && v.Len() == 0
}

func (l Loader) validateField(fieldName, label, validationRules string) error {
	for _, rule := range strings.Split(validationRules, ",") {
		switch rule {
		case "required":
			if l.fieldValueIsEmpty(fieldName) {
				return l.Errorf("Missing %s.", label)
			}

		case "file-exists":
			value, _ := reflections.GetField(l.Config, fieldName)
			if path, ok := value.(string); ok && path != "" {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("couldn't find %s located at %s: %w", label, path, err)
				}
			}

		default:
			return fmt.Errorf("unknown config validation rule %q", rule)
		}
	}
	return nil
}

func (l Loader) normalizeField(fieldName, normalization string) error {
	value, _ := reflections.GetField(l.Config, fieldName)

	switch normalization {
	case "filepath":
		path, ok := value.(string)
		if !ok {
			return fmt.Errorf("filepath normalization only works on string fields")
		}
		normalized, err := osutil.NormalizeFilePath(path)
		if err != nil {
			return err
		}
		return reflections.SetField(l.Config, fieldName, normalized)

	case "list":
		items, ok := value.([]string)
		if !ok {
			return fmt.Errorf("list normalization only works on []string fields")
		}
		normalized := []string{}
		for _, item := range items {
			for part := range strings.SplitSeq(item, ",") {
				if part = strings.TrimSpace(part); part != "" {
					normalized = append(normalized, part)
				}
			}
		}
		return reflections.SetField(l.Config, fieldName, normalized)
	}

	return fmt.Errorf("unknown normalization %q", normalization)
}
