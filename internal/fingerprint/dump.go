package fingerprint

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"reflect"
)

// dumpNode serializes an AST node into a field-annotated textual form that
// carries only structural content. Positions and comment groups are excluded,
// so reformatting a file never changes the dump.
func dumpNode(node ast.Node) []byte {
	var buf bytes.Buffer
	dumpValue(&buf, reflect.ValueOf(node))
	return buf.Bytes()
}

var (
	posType     = reflect.TypeOf(token.Pos(0))
	tokenType   = reflect.TypeOf(token.Token(0))
	commentType = reflect.TypeOf((*ast.CommentGroup)(nil))
	objectType  = reflect.TypeOf((*ast.Object)(nil))
	scopeType   = reflect.TypeOf((*ast.Scope)(nil))
)

func dumpValue(buf *bytes.Buffer, v reflect.Value) {
	if !v.IsValid() {
		buf.WriteString("nil")
		return
	}

	switch v.Type() {
	case posType:
		// Positions are layout, not logic.
		return
	case tokenType:
		buf.WriteString(v.Interface().(token.Token).String())
		return
	case commentType, objectType, scopeType:
		return
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			buf.WriteString("nil")
			return
		}
		dumpValue(buf, v.Elem())

	case reflect.Struct:
		buf.WriteString(v.Type().String())
		buf.WriteByte('{')
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			ft := t.Field(i).Type
			if ft == posType || ft == commentType || ft == objectType || ft == scopeType {
				continue
			}
			buf.WriteString(t.Field(i).Name)
			buf.WriteByte(':')
			dumpValue(buf, v.Field(i))
			buf.WriteByte(' ')
		}
		buf.WriteByte('}')

	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("nil")
			return
		}
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			dumpValue(buf, v.Index(i))
			buf.WriteByte(' ')
		}
		buf.WriteByte(']')

	case reflect.String:
		fmt.Fprintf(buf, "%q", v.String())

	case reflect.Bool:
		fmt.Fprintf(buf, "%t", v.Bool())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(buf, "%d", v.Int())

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(buf, "%d", v.Uint())

	default:
		fmt.Fprintf(buf, "%v", v.Interface())
	}
}
