package fake_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyaneshwarpardhi/shopsynth/internal/fake"
)

func TestSameSeedSameOutput(t *testing.T) {
	a, b := fake.New(42), fake.New(42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.FirstName(), b.FirstName())
		assert.Equal(t, a.City(), b.City())
		assert.Equal(t, a.ProductName(), b.ProductName())
	}
}

func TestEmail(t *testing.T) {
	f := fake.New(1)
	email := f.Email("Anne Marie", "O'Neil", "3f2a")
	assert.True(t, strings.HasPrefix(email, "anne.marie.oneil.3f2a@"), email)
	assert.Equal(t, strings.ToLower(email), email)
	assert.Equal(t, 1, strings.Count(email, "@"))
}

func TestPasswordHashIsHex(t *testing.T) {
	h := fake.New(7).PasswordHash()
	assert.Len(t, h, 64)
	assert.Equal(t, strings.ToLower(h), h)
}

func TestTitleAndClean(t *testing.T) {
	f := fake.New(1)
	assert.Equal(t, "Home & Garden", f.Title("home & garden"))
	assert.Equal(t, "\u00e9clair", fake.Clean(" e\u0301clair "))
}

func TestSentence(t *testing.T) {
	s := fake.New(3).Sentence(4)
	assert.True(t, strings.HasSuffix(s, "."))
	assert.GreaterOrEqual(t, len(strings.Fields(s)), 4)
}
