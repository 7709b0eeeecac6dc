// Package bot binds personas to chat identities: each ConversationInstance
// owns one transcript, its persistence, and the generation cycle that
// streams model output through the bracket command interpreter. The
// Registry is the sole authority for creating, caching, and evicting
// instances.
package bot

import (
	"encoding/json"

	"banter/internal/config"
)

// Persona is the character sheet interpolated into the system prompt.
// Immutable per instance; changing a persona means resetting the instance.
type Persona struct {
	Name        string   `json:"name"`
	Age         string   `json:"age,omitempty"`
	Occupation  string   `json:"occupation,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
	Appearance  string   `json:"appearance,omitempty"`
	Memories    []string `json:"memories,omitempty"`
}

// PersonaFromConfig builds the persona from the config character sheet.
func PersonaFromConfig(cfg config.PersonaConfig) Persona {
	return Persona{
		Name:        cfg.Name,
		Age:         cfg.Age,
		Occupation:  cfg.Occupation,
		Nationality: cfg.Nationality,
		Appearance:  cfg.Appearance,
		Memories:    append([]string(nil), cfg.Memories...),
	}
}

// String renders the persona as the JSON block shown to the model.
func (p Persona) String() string {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return p.Name
	}
	return string(data)
}
