package panelstart

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable aliases, highest priority first
var (
	portKeys     = []string{"LAVALINK_PORT", "SERVER_PORT", "PORT"}
	hostKeys     = []string{"LAVALINK_HOST", "SERVER_ADDRESS"}
	passwordKeys = []string{"LAVALINK_PASSWORD", "LAVALINK_SERVER_PASSWORD"}
	flagKeys     = []string{"JAVA_FLAGS", "JAVA_OPTS"}
	tokenKeys    = []string{"DISCORD_TOKEN", "TOKEN", "BOT_TOKEN"}
)

// LaunchConfig is the resolved configuration shared by every launch stage.
// It is built once by Resolve and passed by value afterwards.
type LaunchConfig struct {
	// BindHost is the address the sidecar binds to and the bot connects to
	BindHost string
	// BindPort is the sidecar's HTTP/WebSocket port
	BindPort int
	// Password is the sidecar's shared secret
	Password string
	// RuntimeFlags are extra JVM arguments placed before -jar
	RuntimeFlags []string
	// WorkDir is the absolute project root
	WorkDir string
	// EnvFile is the env file that was loaded, empty if none
	EnvFile string
	// FileEnv holds the values read from EnvFile
	FileEnv map[string]string
	// TokenPresent reports whether a bot token was found
	TokenPresent bool
}

// ResolveOptions are the inputs to Resolve
type ResolveOptions struct {
	// Root is the project root; defaults to the current directory
	Root string
	// Environ is the process environment in os.Environ form
	Environ []string
	// EnvFile overrides env file discovery when set
	EnvFile string
}

// Resolve derives a LaunchConfig from the process environment, an optional env
// file and the compiled defaults. It never fails: problems are returned as
// warnings and the affected setting falls back to its default.
func Resolve(opts ResolveOptions) (LaunchConfig, []Warning) {
	var warnings []Warning

	root := opts.Root
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	envFile := opts.EnvFile
	if envFile == "" {
		if found, ok := LocateEnvFile(root); ok {
			envFile = found
		}
	}

	var fileEnv map[string]string
	if envFile == "" {
		warnings = append(warnings, Warning{Stage: StageResolve, Err: ErrEnvFileMissing})
	} else {
		values, err := readEnvFile(envFile)
		if err != nil {
			if os.IsNotExist(err) {
				err = ErrEnvFileMissing
			}
			warnings = append(warnings, Warning{Stage: StageResolve, Err: &StageError{Stage: StageResolve, Path: envFile, Err: err}})
			envFile = ""
		} else {
			fileEnv = values
		}
	}

	env := &layeredEnv{process: environMap(opts.Environ), file: fileEnv}

	cfg := LaunchConfig{
		BindHost: DefaultBindHost,
		BindPort: DefaultBindPort,
		Password: DefaultPassword,
		WorkDir:  root,
		EnvFile:  envFile,
		FileEnv:  fileEnv,
	}

	if v, ok := env.lookup(hostKeys); ok {
		cfg.BindHost = v
	}
	if v, ok := env.lookup(passwordKeys); ok {
		cfg.Password = v
	}
	if v, ok := env.lookup(flagKeys); ok {
		cfg.RuntimeFlags = strings.Fields(v)
	}

	for _, candidate := range env.candidates(portKeys) {
		port, err := parsePort(candidate.value)
		if err != nil {
			warnings = append(warnings, Warning{Stage: StageResolve, Err: fmt.Errorf("ignoring %s=%q: %w", candidate.key, candidate.value, err)})
			continue
		}
		cfg.BindPort = port
		break
	}

	if _, ok := env.lookup(tokenKeys); ok {
		cfg.TokenPresent = true
	} else {
		warnings = append(warnings, Warning{Stage: StageResolve, Err: fmt.Errorf("%w: set one of %s", ErrCredentialMissing, strings.Join(tokenKeys, ", "))})
	}

	return cfg, warnings
}

// Address returns host:port of the sidecar
func (c LaunchConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort)
}

// Environ returns the environment for the primary process: base, plus any env
// file keys base does not set, plus the resolved sidecar coordinates.
func (c LaunchConfig) Environ(base []string) []string {
	overrides := map[string]string{
		"LAVALINK_HOST":     c.BindHost,
		"LAVALINK_PORT":     strconv.Itoa(c.BindPort),
		"LAVALINK_PASSWORD": c.Password,
	}
	return mergeEnviron(base, c.FileEnv, overrides)
}

// SidecarEnviron returns the environment for the sidecar. It extends Environ with
// the Spring Boot property names the jar reads its bind address and password from.
func (c LaunchConfig) SidecarEnviron(base []string) []string {
	overrides := map[string]string{
		"LAVALINK_HOST":            c.BindHost,
		"LAVALINK_PORT":            strconv.Itoa(c.BindPort),
		"LAVALINK_PASSWORD":        c.Password,
		"SERVER_ADDRESS":           c.BindHost,
		"SERVER_PORT":              strconv.Itoa(c.BindPort),
		"LAVALINK_SERVER_PASSWORD": c.Password,
	}
	return mergeEnviron(base, c.FileEnv, overrides)
}

// layeredEnv looks keys up in the process environment before the env file
type layeredEnv struct {
	process map[string]string
	file    map[string]string
}

type envCandidate struct {
	key   string
	value string
}

// candidates returns every non-blank value for keys, process environment first,
// each layer in alias order.
func (e *layeredEnv) candidates(keys []string) []envCandidate {
	var out []envCandidate
	for _, layer := range []map[string]string{e.process, e.file} {
		for _, key := range keys {
			if v := strings.TrimSpace(layer[key]); v != "" {
				out = append(out, envCandidate{key: key, value: v})
			}
		}
	}
	return out
}

func (e *layeredEnv) lookup(keys []string) (string, bool) {
	c := e.candidates(keys)
	if len(c) == 0 {
		return "", false
	}
	return c[0].value, true
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port is not a number")
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// readEnvFile parses an env file with godotenv. A file godotenv rejects as a
// whole is retried line by line, dropping the lines that do not parse.
func readEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	values, err := godotenv.Parse(bytes.NewReader(data))
	if err == nil {
		return values, nil
	}

	values = make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		parsed, err := godotenv.Unmarshal(line)
		if err != nil {
			continue
		}
		for k, v := range parsed {
			values[k] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// environMap converts os.Environ form into a map; later entries win
func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// mergeEnviron layers fill (only for unset keys) and overrides on top of base.
// The result is sorted by key so child environments are reproducible.
func mergeEnviron(base []string, fill, overrides map[string]string) []string {
	m := environMap(base)
	for k, v := range fill {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	for k, v := range overrides {
		m[k] = v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
