package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// condition is a single "#name = :name" equality term.
type condition struct {
	attr  string
	value types.AttributeValue
}

// expression is a conjunction of equality terms with its placeholder maps.
type expression struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// equalityExpr joins terms with AND. Terms with a nil value are skipped so an
// absent filter field never reaches the backend. Returns nil when no term is left.
func equalityExpr(terms ...condition) *expression {
	var clauses []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for _, t := range terms {
		if t.value == nil {
			continue
		}
		names["#"+t.attr] = t.attr
		values[":"+t.attr] = t.value
		clauses = append(clauses, "#"+t.attr+" = :"+t.attr)
	}
	if len(clauses) == 0 {
		return nil
	}
	return &expression{
		Expr:   joinStrings(clauses, " AND "),
		Names:  names,
		Values: values,
	}
}

// filterTerms returns the equality terms for the fields of f that are set.
func filterTerms(f Filter) []condition {
	return []condition{
		{attr: AttrID, value: stringValue(f.ID)},
		{attr: "carMark", value: stringValue(f.CarMark)},
		{attr: "carYear", value: numberValue(f.CarYear)},
		{attr: "passengerAmount", value: numberValue(f.PassengerAmount)},
	}
}

// ExistsCondition returns the condition expression requiring the item to exist.
func ExistsCondition() string {
	return "attribute_exists(#id)"
}

// NotExistsCondition returns the condition expression requiring the item to be absent.
func NotExistsCondition() string {
	return "attribute_not_exists(#id)"
}

// keyNames returns expression attribute names for the key conditions.
func keyNames() map[string]string {
	return map[string]string{"#id": AttrID}
}

func stringValue(s string) types.AttributeValue {
	if s == "" {
		return nil
	}
	return &types.AttributeValueMemberS{Value: s}
}

func numberValue(n *int) types.AttributeValue {
	if n == nil {
		return nil
	}
	return &types.AttributeValueMemberN{Value: strconv.Itoa(*n)}
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
