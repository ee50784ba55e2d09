package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() *Schema {
	s := NewSchema("person")
	_ = s.AddColumn(ColumnDefinition{Name: "id", Type: KindInteger})
	_ = s.AddColumn(ColumnDefinition{Name: "name", Type: KindString})
	_ = s.AddColumn(ColumnDefinition{Name: "age", Type: KindInteger})
	_ = s.SetPrimaryKey([]string{"id"})
	return s
}

func TestAddColumnBumpsVersion(t *testing.T) {
	s := NewSchema("t")
	v0 := s.Version
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "a", Type: KindInteger}))
	assert.Greater(t, s.Version, v0)
}

func TestAddColumnRejectsDuplicateName(t *testing.T) {
	s := NewSchema("t")
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "a", Type: KindInteger}))
	assert.Error(t, s.AddColumn(ColumnDefinition{Name: "a", Type: KindString}))
}

func TestValidationRequiresNonNullableColumnUnlessDefaulted(t *testing.T) {
	s := NewSchema("t")
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "required", Type: KindString}))

	errs := s.ValidationErrors(map[string]Value{})
	assert.Len(t, errs, 1)

	errs = s.ValidationErrors(map[string]Value{"required": Null()})
	assert.Len(t, errs, 1)

	errs = s.ValidationErrors(map[string]Value{"required": String("x")})
	assert.Empty(t, errs)
}

func TestValidationAllowsMissingWhenDefaultPresent(t *testing.T) {
	s := NewSchema("t")
	def := Integer(42)
	require.NoError(t, s.AddColumn(ColumnDefinition{Name: "n", Type: KindInteger, Default: &def}))
	assert.Empty(t, s.ValidationErrors(map[string]Value{}))
}

func TestEvolveRequiresStrictlyGreaterVersion(t *testing.T) {
	s := personSchema()
	_, err := s.Evolve(s.Version)
	assert.Error(t, err)

	next, err := s.Evolve(s.Version + 1)
	require.NoError(t, err)
	assert.Equal(t, s.Version+1, next.Version)
	assert.Equal(t, s.Name, next.Name)
}
