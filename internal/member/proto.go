package member

import (
	"reflect"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// ProtoQuery lets callers name fields of generated protobuf messages by
// their proto name ("display_name") or JSON name ("displayName"). Lookups on
// other types, and names that already are Go names, pass through to Base.
type ProtoQuery struct {
	Base Query
}

func NewProtoQuery(base Query) *ProtoQuery {
	if base == nil {
		base = NewReflectQuery(nil)
	}
	return &ProtoQuery{Base: base}
}

func (q *ProtoQuery) Fields(owner reflect.Type, name string, scope Scope) ([]*Field, error) {
	if goName, ok := protoGoFieldName(owner, name); ok {
		name = goName
	}
	return q.Base.Fields(owner, name, scope)
}

func (q *ProtoQuery) Routines(owner reflect.Type, name string, scope Scope) ([]*Routine, error) {
	return q.Base.Routines(owner, name, scope)
}

// protoGoFieldName maps a proto field name on a generated message struct to
// the Go field carrying it. Oneof members live in wrapper types and are not
// mapped.
func protoGoFieldName(owner reflect.Type, name string) (string, bool) {
	st := ownerStruct(owner)
	if st == nil || st.Kind() != reflect.Struct || !reflect.PointerTo(st).Implements(protoMessageType) {
		return "", false
	}
	msg, ok := reflect.New(st).Interface().(proto.Message)
	if !ok {
		return "", false
	}
	fields := msg.ProtoReflect().Descriptor().Fields()
	fd := fields.ByName(protoreflect.Name(name))
	if fd == nil {
		fd = fields.ByJSONName(name)
	}
	if fd == nil || fd.ContainingOneof() != nil && !fd.HasOptionalKeyword() {
		return "", false
	}
	want := "name=" + string(fd.Name())
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		tag, ok := sf.Tag.Lookup("protobuf")
		if !ok {
			continue
		}
		for _, part := range strings.Split(tag, ",") {
			if part == want {
				return sf.Name, true
			}
		}
	}
	return "", false
}
