package resource

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the serializable part of Options, so that strategies and
// behaviors can be tuned from a config file.
//
//	strategy: optimistic
//	verbose: true
//	create:
//	  behavior: merge
//	  strategy: incremental
//	remove:
//	  behavior: exhaust
type Profile struct {
	Strategy Strategy    `yaml:"strategy" json:"strategy,omitempty"`
	Verbose  bool        `yaml:"verbose" json:"verbose,omitempty"`
	Create   KindProfile `yaml:"create" json:"create,omitempty"`
	Update   KindProfile `yaml:"update" json:"update,omitempty"`
	Remove   KindProfile `yaml:"remove" json:"remove,omitempty"`
}

// KindProfile is the serializable form of KindOptions.
type KindProfile struct {
	Behavior Behavior `yaml:"behavior" json:"behavior,omitempty"`
	Strategy Strategy `yaml:"strategy" json:"strategy,omitempty"`
}

// ParseProfile decodes a YAML profile and validates it.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads and parses the YAML profile at path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// Validate checks strategy and behavior names. Empty values are allowed and
// mean "use the default".
func (p Profile) Validate() error {
	if err := validateStrategy(p.Strategy); err != nil {
		return err
	}
	kinds := map[Kind]KindProfile{
		KindCreate: p.Create,
		KindUpdate: p.Update,
		KindRemove: p.Remove,
	}
	for _, kind := range Kinds {
		kp := kinds[kind]
		if err := validateStrategy(kp.Strategy); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		if err := validateBehavior(kp.Behavior); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}
	return nil
}

// ApplyProfile copies the non-empty fields of p onto o. Verbose is only
// ever switched on.
func (o *Options[T, ID]) ApplyProfile(p Profile) {
	if p.Strategy != "" {
		o.Strategy = p.Strategy
	}
	if p.Verbose {
		o.Verbose = true
	}

	applyKind(&o.Create.Behavior, &o.Create.Strategy, p.Create)
	applyKind(&o.Update.Behavior, &o.Update.Strategy, p.Update)
	applyKind(&o.Remove.Behavior, &o.Remove.Strategy, p.Remove)
}

func applyKind(behavior *Behavior, strategy *Strategy, p KindProfile) {
	if p.Behavior != "" {
		*behavior = p.Behavior
	}
	if p.Strategy != "" {
		*strategy = p.Strategy
	}
}
