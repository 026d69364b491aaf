package murmur

// Settings carries the client-shaped configuration forwarded to the
// backend with every chat request. The backend's settings endpoint
// speaks provider-shaped keys (openai_model, openai_api_key, ...);
// the backend package maps between the two.
type Settings struct {
	Model      string
	APIKey     string
	BaseURL    string
	MCPCommand string
}

// IsZero reports whether no setting is populated.
func (s Settings) IsZero() bool {
	return s == Settings{}
}
