// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"rubypack/internal/cachediff"
	"rubypack/internal/migrate"
	"rubypack/internal/store"
)

// ReasonNewlyCreated is the recreate reason for a layer with no prior cache.
const ReasonNewlyCreated = "newly created"

// State is the controller's verdict for a layer.
type State int

const (
	// StateValid means the cached contents are reused untouched.
	StateValid State = iota
	// StateRecreate means the layer directory was cleared and repopulated.
	StateRecreate
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateRecreate:
		return "recreate"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decision pairs the verdict with its operator-facing explanation.
type Decision struct {
	State State
	// Reason is empty for StateValid.
	Reason string
}

// Definition identifies a layer and its capability flags.
type Definition struct {
	Name  string
	Flags store.Flags
}

// Installer is the external collaborator that (re)populates a layer
// directory. Install must leave dir fully populated on success; the
// controller writes metadata strictly afterwards.
type Installer[M any] interface {
	Install(ctx context.Context, desired M, dir string) error
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc[M any] func(ctx context.Context, desired M, dir string) error

func (f InstallerFunc[M]) Install(ctx context.Context, desired M, dir string) error {
	return f(ctx, desired, dir)
}

// Result reports what the controller did for one layer.
type Result[M any] struct {
	Decision Decision
	// Dir is the layer's content directory.
	Dir string
	// Stored holds the previous build's resolved metadata when the cache was
	// valid, letting callers read non-cache data they wrote last build. It is
	// the zero value after a recreate.
	Stored M
}

// Controller orchestrates the cache cycle for a single layer.
type Controller[M any] struct {
	def    Definition
	store  *store.Store
	chain  *migrate.Chain[M]
	logger *log.Logger
}

// NewController wires a layer definition to the durable store and the
// metadata type's migration chain.
func NewController[M any](def Definition, st *store.Store, chain *migrate.Chain[M], logger *log.Logger) *Controller[M] {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller[M]{def: def, store: st, chain: chain, logger: logger}
}

// Ensure runs load → migrate → diff → act for the layer. The desired record
// is compared against the stored one; on any mismatch the installer is
// invoked and the new record persisted. Store I/O failures and installer
// failures are fatal; everything cache-level degrades to a recreate.
func (c *Controller[M]) Ensure(ctx context.Context, desired M, installer Installer[M]) (Result[M], error) {
	if err := ctx.Err(); err != nil {
		return Result[M]{}, fmt.Errorf("layer %s: %w", c.def.Name, err)
	}

	dir := c.store.LayerDir(c.def.Name)
	decision, stored, err := c.decide(desired)
	if err != nil {
		return Result[M]{}, err
	}

	if decision.State == StateValid {
		c.logger.Info("Using cached layer", "layer", c.def.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result[M]{}, fmt.Errorf("layer %s: %w", c.def.Name, err)
		}
		return Result[M]{Decision: decision, Dir: dir, Stored: stored}, nil
	}

	if decision.Reason != ReasonNewlyCreated {
		c.logger.Info(fmt.Sprintf("Clearing cache (%s)", decision.Reason), "layer", c.def.Name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return Result[M]{}, fmt.Errorf("clear layer %s: %w", c.def.Name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result[M]{}, fmt.Errorf("create layer %s: %w", c.def.Name, err)
	}

	if err := installer.Install(ctx, desired, dir); err != nil {
		// No metadata is written: the next build must retry, never trust a
		// half-built layer.
		return Result[M]{}, fmt.Errorf("install layer %s: %w", c.def.Name, err)
	}

	if err := c.store.Save(c.def.Name, desired, c.def.Flags); err != nil {
		return Result[M]{}, err
	}
	return Result[M]{Decision: decision, Dir: dir}, nil
}

// decide classifies the stored metadata against the desired record. The
// returned error is non-nil only for fatal store I/O failures.
func (c *Controller[M]) decide(desired M) (Decision, M, error) {
	var zero M

	raw, err := c.store.Load(c.def.Name)
	switch {
	case errors.Is(err, store.ErrNotExist):
		return Decision{State: StateRecreate, Reason: ReasonNewlyCreated}, zero, nil
	case err != nil:
		var corrupt *store.CorruptError
		if errors.As(err, &corrupt) {
			return Decision{State: StateRecreate, Reason: fmt.Sprintf("invalid metadata: %v", corrupt.Err)}, zero, nil
		}
		return Decision{}, zero, err
	}

	resolved, err := c.chain.Resolve(raw)
	if err != nil {
		return Decision{State: StateRecreate, Reason: fmt.Sprintf("invalid metadata: %v", err)}, zero, nil
	}

	changes := cachediff.Changes(desired, resolved)
	if len(changes) == 0 {
		return Decision{State: StateValid}, resolved, nil
	}
	return Decision{State: StateRecreate, Reason: cachediff.Join(changes)}, zero, nil
}
