package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqualIsFalseWhenEitherOperandIsNull(t *testing.T) {
	assert.False(t, Null().Equal(Integer(1)))
	assert.False(t, Integer(1).Equal(Null()))
	assert.False(t, Null().Equal(Null()))
}

func TestEqualIsFalseOnMismatchedVariants(t *testing.T) {
	assert.False(t, Integer(1).Equal(String("1")))
}

func TestCompareOrdering(t *testing.T) {
	assert.True(t, Integer(1).Less(Integer(2)))
	assert.True(t, Integer(2).Greater(Integer(1)))
	assert.True(t, Double(1.5).LessOrEqual(Double(1.5)))
	assert.False(t, Boolean(true).Less(Boolean(false)))
}

func TestLikeOnlyMatchesStringSubstrings(t *testing.T) {
	assert.True(t, String("hello world").Like(String("lo wo")))
	assert.False(t, String("hello").Like(Integer(1)))
	assert.False(t, Null().Like(String("x")))
}

func TestEncodeKeyDistinguishesVariants(t *testing.T) {
	assert.NotEqual(t, Integer(1).encodeKey(), String("1").encodeKey())
	now := time.Now()
	assert.Equal(t, DateTime(now).encodeKey(), DateTime(now).encodeKey())
}
