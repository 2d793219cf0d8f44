package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/samber/lo"
)

// ConfigFileKey names the mandatory argument holding the config file path.
const ConfigFileKey = "config_file"

// ParseArgs reads "--key value" pairs. Later duplicates win.
func ParseArgs(argv []string) (map[string]string, error) {
	res := map[string]string{}
	for i := 0; i < len(argv); i += 2 {
		key, found := strings.CutPrefix(argv[i], "--")
		if !found || key == "" {
			return nil, model.NewError(model.CodeParameter, "argument %q is not a --key", argv[i])
		}
		if i+1 >= len(argv) {
			return nil, model.NewError(model.CodeParameter, "argument --%s has no value", key)
		}
		res[key] = argv[i+1]
	}

	if res[ConfigFileKey] == "" {
		return nil, model.NewError(model.CodeParameter, "--%s is required", ConfigFileKey)
	}
	return res, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// Apply sets each dotted path of overrides. Only string, bool, integer
// and duration fields can be set.
func (cfg *Config) Apply(overrides map[string]string) error {
	keys := lo.Keys(overrides)
	slices.Sort(keys)

	for _, path := range keys {
		if err := cfg.Set(path, overrides[path]); err != nil {
			return err
		}
	}
	return nil
}

// Set parses raw into the field at path.
func (cfg *Config) Set(path, raw string) error {
	field, err := cfg.field(path)
	if err != nil {
		return err
	}

	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return model.NewError(model.CodeParameter, "%s: %s", path, err)
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.String:
		field.SetString(raw)
	case field.Kind() == reflect.Bool:
		switch raw {
		case "true":
			field.SetBool(true)
		case "false":
			field.SetBool(false)
		default:
			return model.NewError(model.CodeParameter, "%s: expected true or false, got %q", path, raw)
		}
	case field.CanInt():
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.NewError(model.CodeParameter, "%s: %s", path, err)
		}
		field.SetInt(n)
	default:
		return model.NewError(model.CodeParameter, "%s: %s fields can not be overridden", path, field.Kind())
	}
	return nil
}

// Get returns the value at path.
func (cfg *Config) Get(path string) (any, error) {
	field, err := cfg.field(path)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

func (cfg *Config) field(path string) (reflect.Value, error) {
	elem := reflect.ValueOf(cfg).Elem()

	for _, sel := range strings.Split(path, ".") {
		if elem.Kind() != reflect.Struct {
			return reflect.Value{}, model.NewError(model.CodeParameter, "invalid config path %s", path)
		}

		next, found := fieldByTag(elem, strings.ToLower(sel))
		if !found {
			return reflect.Value{}, model.NewError(model.CodeParameter, "invalid config path %s: unknown key %s", path, sel)
		}
		elem = next
	}

	if elem.Kind() == reflect.Struct {
		return reflect.Value{}, model.NewError(model.CodeParameter, "config path %s is a section", path)
	}
	return elem, nil
}

func fieldByTag(elem reflect.Value, name string) (reflect.Value, bool) {
	t := elem.Type()
	for i := range t.NumField() {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if strings.ToLower(tag) == name {
			return elem.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func (cfg Config) String() string {
	return fmt.Sprintf("worker %s of %s:%s at %s:%d", cfg.Worker.ID, cfg.Application.Name, cfg.Application.Version, cfg.Worker.Host, cfg.Worker.Port)
}
