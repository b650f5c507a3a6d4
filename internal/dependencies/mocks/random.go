package mocks

import (
	"github.com/idanmel/skyarena/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// TokenResults is a queue of results to return from Token
	TokenResults []string
	tokenIndex   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Token returns the next queued result, or empty string if none remaining
func (r *MockRandom) Token(length int) string {
	if r.tokenIndex >= len(r.TokenResults) {
		return ""
	}
	result := r.TokenResults[r.tokenIndex]
	r.tokenIndex++
	return result
}

// QueueTokens adds values to the Token result queue
func (r *MockRandom) QueueTokens(values ...string) {
	r.TokenResults = append(r.TokenResults, values...)
}
