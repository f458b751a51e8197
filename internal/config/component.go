package config

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ComponentConfig is one component's declared option overrides, decoded from
// the JSON blob the topology attaches to it. It keeps every decoded key;
// Normalize drops the keys a component is not allowed to override.
type ComponentConfig struct {
	raw map[string]any
}

// ParseComponentConfig decodes a component's JSON-encoded option blob. An
// empty or nil blob yields an empty ComponentConfig (valid: most components
// override nothing).
func ParseComponentConfig(data []byte) (*ComponentConfig, error) {
	if len(data) == 0 {
		return &ComponentConfig{raw: map[string]any{}}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("streamcore: parse component config: %w", err)
	}
	return &ComponentConfig{raw: decoded}, nil
}

// Normalize overlays a component's declared options onto the topology
// options, per spec §4.10 and §3: every key in the component blob that is
// NOT in the overridable allow-list is stripped before the overlay, so the
// component can never shadow a worker-global setting.
func Normalize(topology *TopologyConfig, component *ComponentConfig) map[string]any {
	effective := make(map[string]any, len(topology.All())+len(component.raw))
	for k, v := range topology.All() {
		effective[k] = v
	}

	for k, v := range component.raw {
		if !IsOverridable(k) {
			continue
		}
		effective[k] = v
	}

	return effective
}

// Decode re-decodes a normalized effective config map into a typed struct
// using mapstructure, so callers needn't hand-roll type assertions over
// map[string]any.
func Decode(effective map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("streamcore: build config decoder: %w", err)
	}
	if err := dec.Decode(effective); err != nil {
		return fmt.Errorf("streamcore: decode effective config: %w", err)
	}
	return nil
}
