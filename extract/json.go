package extract

import "github.com/tidwall/gjson"

// FromJSON decodes a raw provider payload into a Node tree. Object keys keep
// their document order. Numbers and booleans carry no text and decode to
// null nodes. Invalid JSON yields a null root.
func FromJSON(data []byte) *Node {
	if !gjson.ValidBytes(data) {
		return Null()
	}
	return fromResult(gjson.ParseBytes(data))
}

func fromResult(r gjson.Result) *Node {
	switch {
	case r.IsObject():
		m := Mapping()
		r.ForEach(func(key, value gjson.Result) bool {
			m.Set(key.String(), fromResult(value))
			return true
		})
		return m
	case r.IsArray():
		seq := Sequence()
		r.ForEach(func(_, value gjson.Result) bool {
			seq.Append(fromResult(value))
			return true
		})
		return seq
	case r.Type == gjson.String:
		return String(r.Str)
	default:
		return Null()
	}
}
