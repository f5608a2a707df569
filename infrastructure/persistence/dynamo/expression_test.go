package dynamo

import (
	"testing"

	"libreria/infrastructure/persistence/store"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpression(t *testing.T) {
	compiled, err := buildUpdateExpression(store.Item{
		"title": "Dune",
		"stock": 4,
		"price": 9.95,
	})
	require.NoError(t, err)
	require.NotNil(t, compiled)

	// Keys are numbered in sorted order, so the expression is deterministic.
	assert.Equal(t, "SET #n1 = :v1, #n2 = :v2, #n3 = :v3", compiled.Expression)
	assert.Equal(t, map[string]string{
		"#n1": "price",
		"#n2": "stock",
		"#n3": "title",
	}, compiled.Names)

	title, ok := compiled.Values[":v3"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "Dune", title.Value)

	stock, ok := compiled.Values[":v2"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "4", stock.Value)
}

func TestBuildUpdateExpressionEmptyPatch(t *testing.T) {
	compiled, err := buildUpdateExpression(store.Item{})
	require.NoError(t, err)
	assert.Nil(t, compiled)
}

func TestBuildNotExistsCondition(t *testing.T) {
	t.Run("nil options", func(t *testing.T) {
		assert.Nil(t, buildNotExistsCondition(nil))
	})

	t.Run("unconditional", func(t *testing.T) {
		assert.Nil(t, buildNotExistsCondition(&store.PutOptions{}))
	})

	t.Run("if-not-exists guards the composite key", func(t *testing.T) {
		cond := buildNotExistsCondition(&store.PutOptions{IfNotExists: true})
		require.NotNil(t, cond)
		assert.Equal(t, "attribute_not_exists(#c1) AND attribute_not_exists(#c2)", cond.Expression)
		assert.Equal(t, map[string]string{"#c1": "pk", "#c2": "sk"}, cond.Names)
	})

	t.Run("explicit attributes", func(t *testing.T) {
		cond := buildNotExistsCondition(&store.PutOptions{UniqueAttributes: []string{"email"}})
		require.NotNil(t, cond)
		assert.Equal(t, "attribute_not_exists(#c1)", cond.Expression)
		assert.Equal(t, map[string]string{"#c1": "email"}, cond.Names)
	})
}
