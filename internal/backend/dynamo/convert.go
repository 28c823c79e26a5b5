package dynamo

import (
	"math"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

// BindParams converts workload parameters into PartiQL positional
// parameters. PartiQL has no named parameters, so maps are rejected.
func BindParams(params value.Value) ([]types.AttributeValue, error) {
	switch params.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindList:
		items, _ := params.AsList()
		out := make([]types.AttributeValue, len(items))
		for i, item := range items {
			av, err := ToAttribute(item)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return out, nil
	case value.KindMap:
		return nil, dberr.Argument("named parameters are not supported by PartiQL, pass a list")
	}
	return nil, dberr.Argument("query parameters must be a list, got %s", params.Kind())
}

// ToAttribute converts a value into a DynamoDB attribute.
func ToAttribute(v value.Value) (types.AttributeValue, error) {
	switch v.Kind() {
	case value.KindNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case value.KindInt:
		i, _ := v.AsInt()
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(i, 10)}, nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, dberr.New(dberr.KindSerialization, "cannot store %v as a DynamoDB number", f)
		}
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'g', -1, 64)}, nil
	case value.KindString:
		s, _ := v.AsString()
		return &types.AttributeValueMemberS{Value: s}, nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return &types.AttributeValueMemberB{Value: b}, nil
	case value.KindList:
		items, _ := v.AsList()
		out := make([]types.AttributeValue, len(items))
		for i, item := range items {
			av, err := ToAttribute(item)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case value.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]types.AttributeValue, len(m))
		for k, item := range m {
			av, err := ToAttribute(item)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	}
	return nil, dberr.New(dberr.KindSerialization, "cannot convert %s value to a DynamoDB attribute", v.Kind())
}

// FromAttribute converts a DynamoDB attribute into a value. Sets become
// sorted lists.
func FromAttribute(av types.AttributeValue) value.Value {
	switch t := av.(type) {
	case nil:
		return value.Null
	case *types.AttributeValueMemberNULL:
		return value.Null
	case *types.AttributeValueMemberBOOL:
		return value.Bool(t.Value)
	case *types.AttributeValueMemberN:
		return parseNumber(t.Value)
	case *types.AttributeValueMemberS:
		return value.String(t.Value)
	case *types.AttributeValueMemberB:
		return value.Bytes(t.Value)
	case *types.AttributeValueMemberL:
		items := make([]value.Value, len(t.Value))
		for i, item := range t.Value {
			items[i] = FromAttribute(item)
		}
		return value.List(items...)
	case *types.AttributeValueMemberM:
		return Item(t.Value)
	case *types.AttributeValueMemberSS:
		ss := append([]string(nil), t.Value...)
		sort.Strings(ss)
		items := make([]value.Value, len(ss))
		for i, s := range ss {
			items[i] = value.String(s)
		}
		return value.List(items...)
	case *types.AttributeValueMemberNS:
		items := make([]value.Value, len(t.Value))
		for i, n := range t.Value {
			items[i] = parseNumber(n)
		}
		sort.Slice(items, func(i, j int) bool {
			a, _ := items[i].AsFloat()
			b, _ := items[j].AsFloat()
			return a < b
		})
		return value.List(items...)
	case *types.AttributeValueMemberBS:
		items := make([]value.Value, len(t.Value))
		for i, b := range t.Value {
			items[i] = value.Bytes(b)
		}
		return value.List(items...)
	}
	return value.Opaque(av)
}

// Item converts a returned item.
func Item(item map[string]types.AttributeValue) value.Value {
	m := make(map[string]value.Value, len(item))
	for k, av := range item {
		m[k] = FromAttribute(av)
	}
	return value.Map(m)
}

func parseNumber(s string) value.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	return value.String(s)
}
