package domain

// Metadata is the external, immutable document a token's MetadataURI
// resolves to. It may be unavailable; views degrade per token rather
// than fail wholesale.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}
