package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no explicit file is given.
const DefaultEnvFile = ".env"

var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(Nodes(nil)): func(v string) (any, error) {
		return ParseNodes(v)
	},
	reflect.TypeOf(Applications(nil)): func(v string) (any, error) {
		return ParseApplications(v)
	},
	reflect.TypeOf(NodeLabels(nil)): func(v string) (any, error) {
		return ParseNodeLabels(v)
	},
	reflect.TypeOf(netip.Prefix{}): func(v string) (any, error) {
		return netip.ParsePrefix(strings.TrimSpace(v))
	},
}

// Source builds the flat key/value source from envFile overlaid by the
// process environment. A missing envFile is an error only when mustExist
// is set.
func Source(envFile string, mustExist bool) (map[string]string, error) {
	source := make(map[string]string)
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			for k, v := range fileValues {
				source[k] = v
			}
		case errors.Is(err, fs.ErrNotExist) && !mustExist:
		default:
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			source[k] = v
		}
	}
	return source, nil
}

// Load resolves the config from envFile and the process environment.
func Load(envFile string, mustExist bool, scope Scope) (*Config, error) {
	source, err := Source(envFile, mustExist)
	if err != nil {
		return nil, err
	}
	return Resolve(source, scope)
}

// Resolve decodes source into a Config. It is pure: the same source always
// yields the same result and nothing outside source is consulted.
func Resolve(source map[string]string, scope Scope) (*Config, error) {
	cfg := &Config{}
	sections := []any{&cfg.Cluster, &cfg.GitOps, &cfg.Artifacts}
	if scope == ScopeFull {
		cfg.Infra = &InfraConfig{}
		sections = append(sections,
			&cfg.Infra.Proxmox,
			&cfg.Infra.VM,
			&cfg.Infra.Inventory,
			&cfg.Infra.Kubernetes,
			&cfg.Infra.SSH,
			&cfg.Infra.Host,
			&cfg.Infra.Labels,
			&cfg.Infra.Network,
			&cfg.Infra.Storage,
			&cfg.Infra.GPU,
		)
	}

	var missing, invalid []string
	for _, section := range sections {
		m, i := decodeSection(section, source)
		missing = append(missing, m...)
		invalid = append(invalid, i...)
	}
	// Cross-field checks need every required key decoded.
	if len(missing) == 0 && len(invalid) == 0 {
		invalid = validate(cfg)
	}

	var errs []error
	if len(missing) > 0 {
		sort.Strings(missing)
		errs = append(errs, &MissingConfigurationError{Keys: missing})
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		errs = append(errs, &InvalidConfigurationError{Problems: invalid})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	normalize(cfg)
	cfg.Timeouts = timeoutsFrom(source)
	return cfg, nil
}

// decodeSection parses one flat struct and sorts env errors into missing
// keys and invalid values.
func decodeSection(section any, source map[string]string) (missing, invalid []string) {
	err := env.ParseWithOptions(section, env.Options{
		Environment: source,
		FuncMap:     parsers,
	})
	if err == nil {
		return nil, nil
	}

	var inner []error
	var agg env.AggregateError
	if errors.As(err, &agg) {
		inner = agg.Errors
	} else {
		inner = []error{err}
	}

	for _, e := range inner {
		var (
			notSet  env.EnvVarIsNotSetError
			empty   env.EmptyEnvVarError
			parse   env.ParseError
			noParse env.NoParserError
		)
		switch {
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		case errors.As(e, &parse):
			invalid = append(invalid, fmt.Sprintf("%s: %v", keyFor(section, parse.Name), parse.Err))
		case errors.As(e, &noParse):
			invalid = append(invalid, fmt.Sprintf("%s: unsupported type %s", keyFor(section, noParse.Name), noParse.Type))
		default:
			invalid = append(invalid, e.Error())
		}
	}
	return missing, invalid
}

// keyFor maps a struct field name back to its configuration key.
func keyFor(section any, field string) string {
	t := reflect.TypeOf(section)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	sf, ok := t.FieldByName(field)
	if !ok {
		return field
	}
	key, _, _ := strings.Cut(sf.Tag.Get("env"), ",")
	if key == "" {
		return field
	}
	return key
}

func normalize(cfg *Config) {
	if cfg.Infra == nil {
		return
	}
	cfg.Infra.Host.Packages = compact(cfg.Infra.Host.Packages)
	cfg.Infra.Host.KernelModules = compact(cfg.Infra.Host.KernelModules)
	cfg.Infra.Labels.ProtectedPrefixes = compact(cfg.Infra.Labels.ProtectedPrefixes)
	cfg.Infra.GPU.Nodes = compact(cfg.Infra.GPU.Nodes)
	cfg.Infra.GPU.PCIDevices = compact(cfg.Infra.GPU.PCIDevices)
	if cfg.Infra.Labels.Nodes == nil {
		cfg.Infra.Labels.Nodes = NodeLabels{}
	}
}
