package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"libreria/infrastructure/persistence/store"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compiledUpdate is the output of the update-expression compiler: a SET
// instruction referencing only numbered placeholders, plus the matching
// name and value maps. Raw attribute names never appear in the expression,
// which keeps reserved words out of the query language.
type compiledUpdate struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// buildUpdateExpression compiles a patch into a SET expression. Patch keys
// are visited in sorted order so the numbering is stable: one #nN/:vN pair
// per key. Returns nil for an empty patch.
func buildUpdateExpression(patch store.Item) (*compiledUpdate, error) {
	if len(patch) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &compiledUpdate{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}

	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		name := fmt.Sprintf("#n%d", i+1)
		value := fmt.Sprintf(":v%d", i+1)

		av, err := attributevalue.Marshal(patch[k])
		if err != nil {
			return nil, fmt.Errorf("marshal patch attribute %s: %w", k, err)
		}

		out.Names[name] = k
		out.Values[value] = av
		sets = append(sets, name+" = "+value)
	}

	out.Expression = "SET " + strings.Join(sets, ", ")
	return out, nil
}

// compiledCondition is an attribute_not_exists chain with one name
// placeholder per guarded attribute.
type compiledCondition struct {
	Expression string
	Names      map[string]string
}

// buildNotExistsCondition compiles the uniqueness precondition for a
// conditional put. With no explicit attributes the legacy form guards the
// composite key itself.
func buildNotExistsCondition(opts *store.PutOptions) *compiledCondition {
	if !opts.Conditional() {
		return nil
	}

	attrs := opts.UniqueAttributes
	if len(attrs) == 0 {
		attrs = []string{store.AttrPartitionKey, store.AttrSortKey}
	}

	out := &compiledCondition{
		Names: make(map[string]string, len(attrs)),
	}

	clauses := make([]string, 0, len(attrs))
	for i, attr := range attrs {
		name := fmt.Sprintf("#c%d", i+1)
		out.Names[name] = attr
		clauses = append(clauses, "attribute_not_exists("+name+")")
	}

	out.Expression = strings.Join(clauses, " AND ")
	return out
}
