package config

import (
	"fmt"
	"strings"
)

const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
	BackendAuto   = "auto"
	BackendNone   = "none"
)

const (
	PolicyUnified = "unified"
	PolicyLegacy  = "legacy"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendCPU
	}
	switch backend {
	case BackendCPU, BackendWebGPU, BackendAuto, BackendNone:
		return backend, nil
	case "gpu", "wgpu":
		return BackendWebGPU, nil
	case "off", "disabled":
		return BackendNone, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s|%s|%s)",
			raw,
			BackendCPU,
			BackendWebGPU,
			BackendAuto,
			BackendNone,
		)
	}
}

func NormalizePolicy(raw string) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(raw))
	if policy == "" {
		policy = PolicyUnified
	}
	switch policy {
	case PolicyUnified, PolicyLegacy:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid launch policy %q (expected %s|%s)", raw, PolicyUnified, PolicyLegacy)
	}
}
