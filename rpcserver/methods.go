package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errType = reflect.TypeOf((*error)(nil)).Elem()

// methodHandler wraps a registered Go function (context.Context first arg,
// error last return) so it can be invoked with raw JSON-RPC params.
type methodHandler struct {
	fn       reflect.Value
	argTypes []reflect.Type
}

// getMethodTypes validates that fn is a function whose first arg is
// context.Context and whose last return is error (with at most two
// returns), and builds a methodHandler for it. Whether the other args and
// returns are JSON (un)marshallable is not checked here.
func getMethodTypes(fn any) (methodHandler, error) {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return methodHandler{}, fmt.Errorf("method must be a function")
	}

	if fnType.NumIn() == 0 || !fnType.In(0).Implements(ctxType) {
		return methodHandler{}, fmt.Errorf("method must accept context.Context as its first argument")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 || !fnType.Out(numOut-1).Implements(errType) {
		return methodHandler{}, fmt.Errorf("method must return error as its last return value")
	}

	argTypes := make([]reflect.Type, fnType.NumIn()-1)
	for i := range argTypes {
		argTypes[i] = fnType.In(i + 1)
	}

	return methodHandler{
		fn:       reflect.ValueOf(fn),
		argTypes: argTypes,
	}, nil
}

// call unmarshals params into the handler's argument types and invokes it.
func (m methodHandler) call(ctx context.Context, params []json.RawMessage) (any, error) {
	if len(params) > len(m.argTypes) {
		return nil, errors.New("too much arguments")
	}

	args := make([]reflect.Value, 0, len(m.argTypes)+1)
	args = append(args, reflect.ValueOf(ctx))

	for i, argType := range m.argTypes {
		argPtr := reflect.New(argType)
		if i < len(params) {
			if err := json.Unmarshal(params[i], argPtr.Interface()); err != nil {
				return nil, err
			}
		}
		args = append(args, argPtr.Elem())
	}

	out := m.fn.Call(args)

	var resErr error
	if errVal := out[len(out)-1]; !errVal.IsNil() {
		resErr = errVal.Interface().(error)
	}

	if len(out) == 1 {
		return nil, resErr
	}
	return out[0].Interface(), resErr
}
