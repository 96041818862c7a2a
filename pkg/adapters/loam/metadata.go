package loam

// ArtifactMetadata is the front matter of an artifact document. The three
// artifact halves are kept raw and decoded by the compiler parser, so that
// Markdown front matter, YAML and JSON documents share one path.
type ArtifactMetadata struct {
	GameID  string `json:"gameId" mapstructure:"gameId"`
	Version string `json:"version" mapstructure:"version"`
	Title   string `json:"title,omitempty" mapstructure:"title"`

	StateSchema  map[string]any `json:"stateSchema,omitempty" mapstructure:"stateSchema"`
	Graph        map[string]any `json:"graph" mapstructure:"graph"`
	Instructions map[string]any `json:"instructions" mapstructure:"instructions"`
}
