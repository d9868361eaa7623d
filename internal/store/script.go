package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ScriptOutput is the only accepted shape of a query script's stdout.
type ScriptOutput struct {
	Camera     *bool `json:"camera" validate:"required"`
	Microphone *bool `json:"microphone" validate:"required"`
}

var scriptValidator = validator.New(validator.WithRequiredStructEnabled())

// DecodeScriptOutput parses script output. Unknown fields, missing fields,
// trailing data and non-boolean values are all rejected.
func DecodeScriptOutput(data []byte) (ScriptOutput, error) {
	var out ScriptOutput

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return ScriptOutput{}, fmt.Errorf("decode script output: %w", err)
	}
	if dec.More() {
		return ScriptOutput{}, fmt.Errorf("decode script output: trailing data")
	}
	if err := scriptValidator.Struct(out); err != nil {
		return ScriptOutput{}, fmt.Errorf("validate script output: %w", err)
	}
	return out, nil
}

// State converts decoded output to a settled permission state.
func (o ScriptOutput) State() ir.PermissionState {
	return ir.PermissionState{
		Camera:     o.Camera != nil && *o.Camera,
		Microphone: o.Microphone != nil && *o.Microphone,
	}
}

// ScriptReader answers permission queries by running an external query
// script as `<script> <identifier>`.
type ScriptReader struct {
	resolver IdentifierResolver
	runner   hostexec.Runner
	script   string
	logger   *slog.Logger
}

// NewScriptReader creates a ScriptReader. A nil logger uses slog.Default().
func NewScriptReader(resolver IdentifierResolver, runner hostexec.Runner, script string, logger *slog.Logger) *ScriptReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptReader{
		resolver: resolver,
		runner:   runner,
		script:   script,
		logger:   logger.With("component", "store", "strategy", "script"),
	}
}

// Inspect returns the identifier and permission state of a bundle. Any
// script failure or malformed output fails closed to "not granted".
func (r *ScriptReader) Inspect(ctx context.Context, bundlePath string, services []ir.ServiceKind) (string, ir.PermissionState, error) {
	identifier, ok := r.resolver.Resolve(ctx, bundlePath)
	if !ok {
		return "", ir.PermissionState{}, nil
	}

	res, err := r.runner.Run(ctx, r.script, identifier)
	if err != nil {
		return identifier, ir.PermissionState{}, fmt.Errorf("%w: query script: %v", ErrQueryFailed, err)
	}

	out, err := DecodeScriptOutput([]byte(strings.TrimSpace(res.Stdout)))
	if err != nil {
		r.logger.Debug("query script output rejected", "client", identifier, "error", err)
		return identifier, ir.PermissionState{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	full := out.State()
	var state ir.PermissionState
	for _, svc := range services {
		state = state.With(svc, full.Get(svc))
	}
	return identifier, state, nil
}
