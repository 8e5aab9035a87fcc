// Package encoding decodes fixed layout records, laid out with natural C
// alignment and host byte order, from a byte stream.
package encoding

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var (
	ErrNotPointer      = errors.New("decode target is not a pointer")
	ErrNilPointer      = errors.New("decode target is nil")
	ErrInvalidSkip     = errors.New("invalid skip")
	ErrUnsupportedType = errors.New("unsupported type")
)

type handler func(Stream, unsafe.Pointer) error

type handlerData struct {
	handler handler
	size    structSize
	align   int
}

var decodeProcess sync.Map

func Decode(stream Stream, val any) error {
	typ := reflect2.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNilPointer
	}
	data, err := getUnmarshalData(typ.(reflect2.PtrType).Elem())
	if err != nil {
		return err
	}
	return data.handler(stream, ptr)
}

// DecodeSize reports how many bytes Decode consumes for val.
func DecodeSize(val any) int {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return 0
	} else if typ.Kind() == reflect.Ptr {
		typ = typ.(reflect2.PtrType).Elem()
	}
	data, err := getUnmarshalData(typ)
	if err != nil {
		return 0
	}
	return data.size.Size()
}

func getUnmarshalData(typ reflect2.Type) (*handlerData, error) {
	key := typ.RType()
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData), nil
	}
	data, err := decode(typ)
	if err != nil {
		return nil, err
	}
	decodeProcess.Store(key, data)
	return data, nil
}

func decode(typ reflect2.Type) (*handlerData, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		size := int(typ.Type1().Size())
		return &handlerData{
			handler: func(stream Stream, ptr unsafe.Pointer) error {
				_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
				return err
			},
			size:  structSize{size},
			align: typ.Type1().Align(),
		}, nil
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType))
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType))
	}
	return nil, ErrUnsupportedType
}
