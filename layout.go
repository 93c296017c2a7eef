package panelstart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FileMoveTask moves one flattened file back to its nested location
type FileMoveTask struct {
	// FlattenedName is the file name at the root, separators included
	FlattenedName string
	// TargetRelPath is the intended path relative to the root
	TargetRelPath string
}

// Normalizer repairs a project tree whose nested files were extracted as
// single root-level files named like `src\cogs\music.py`. It is idempotent:
// existing destinations are never overwritten, so a second pass moves nothing.
type Normalizer struct {
	// Root is the project root
	Root string
	// Sentinel is a slash-separated path whose presence means the tree is intact
	Sentinel string
	// Prefix is the top-level directory flattened names must start with
	Prefix string
	// Separator is the literal separator baked into flattened names
	Separator string

	logger zerolog.Logger
}

// NormalizerOption configures a Normalizer
type NormalizerOption func(*Normalizer)

// WithSentinel sets the file whose presence skips the repair
func WithSentinel(rel string) NormalizerOption {
	return func(n *Normalizer) {
		n.Sentinel = rel
	}
}

// WithPrefix sets the required top-level directory of flattened names
func WithPrefix(prefix string) NormalizerOption {
	return func(n *Normalizer) {
		n.Prefix = prefix
	}
}

// WithSeparator sets the separator literal to split flattened names on
func WithSeparator(sep string) NormalizerOption {
	return func(n *Normalizer) {
		n.Separator = sep
	}
}

// WithNormalizerLogger sets the logger used to report moves and failures
func WithNormalizerLogger(logger zerolog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// NewNormalizer creates a Normalizer for root with default settings
func NewNormalizer(root string, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		Root:      root,
		Sentinel:  SourceDir + "/" + EntryPointName,
		Prefix:    SourceDir,
		Separator: `\`,
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Scan lists the moves a Normalize call would attempt, in directory order.
// It returns nothing when the sentinel already exists.
func (n *Normalizer) Scan() ([]FileMoveTask, error) {
	if n.Separator == "" {
		return nil, fmt.Errorf("separator not specified")
	}

	if isRegularFile(filepath.Join(n.Root, filepath.FromSlash(n.Sentinel))) {
		return nil, nil
	}

	entries, err := os.ReadDir(n.Root)
	if err != nil {
		return nil, &StageError{Stage: StageNormalize, Path: n.Root, Err: err}
	}

	var tasks []FileMoveTask
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.Contains(name, n.Separator) || !strings.HasPrefix(name, n.Prefix+n.Separator) {
			continue
		}
		parts := strings.Split(name, n.Separator)
		tasks = append(tasks, FileMoveTask{
			FlattenedName: name,
			TargetRelPath: strings.Join(parts, "/"),
		})
	}

	return tasks, nil
}

// Normalize performs the moves found by Scan and returns how many files were
// moved. Each move is independent: failures are logged, collected into a
// MultiError and do not stop the remaining moves.
func (n *Normalizer) Normalize() (int, error) {
	tasks, err := n.Scan()
	if err != nil {
		return 0, err
	}

	moved := 0
	merr := &MultiError{}

	for _, task := range tasks {
		ok, err := n.move(task)
		if err != nil {
			n.logger.Warn().Err(err).Str("file", task.FlattenedName).Msg("could not restore flattened file")
			merr.Add(err)
			continue
		}
		if ok {
			moved++
			n.logger.Debug().Str("file", task.FlattenedName).Str("target", task.TargetRelPath).Msg("restored flattened file")
		}
	}

	return moved, merr.Err()
}

// move returns false without error when the destination already exists
func (n *Normalizer) move(task FileMoveTask) (bool, error) {
	src := filepath.Join(n.Root, task.FlattenedName)

	if err := validateRelPath(task.TargetRelPath); err != nil {
		return false, &StageError{Stage: StageNormalize, Path: src, Err: err}
	}

	dst := filepath.Join(n.Root, filepath.FromSlash(task.TargetRelPath))
	if _, err := os.Lstat(dst); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), DirMode); err != nil {
		return false, &StageError{Stage: StageNormalize, Path: src, Err: fmt.Errorf("creating parent directory: %w", err)}
	}

	if err := os.Rename(src, dst); err != nil {
		return false, &StageError{Stage: StageNormalize, Path: src, Err: err}
	}

	return true, nil
}

// validateRelPath rejects paths that are empty, absolute, or contain empty,
// "." or ".." components.
func validateRelPath(rel string) error {
	if rel == "" || strings.HasPrefix(rel, "/") {
		return ErrUnsafePath
	}
	for _, part := range strings.Split(rel, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrUnsafePath
		}
	}
	return nil
}
