package testutil

// FixedKeyGenerator generates the same session key every time.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: FixedKeyGenerator is stateless and safe for concurrent use.
type FixedKeyGenerator struct {
	key string
}

// NewFixedKeyGenerator creates a new fixed session key generator.
// If key is empty, Generate() returns "test-session-default".
func NewFixedKeyGenerator(key string) *FixedKeyGenerator {
	if key == "" {
		key = "test-session-default"
	}
	return &FixedKeyGenerator{key: key}
}

// Generate returns the fixed key.
//
// Implements formsync.KeyGenerator.
func (g *FixedKeyGenerator) Generate() string {
	return g.key
}
