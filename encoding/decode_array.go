package encoding

import (
	"unsafe"

	"github.com/modern-go/reflect2"
)

func decodeArray(typ reflect2.ArrayType) (*handlerData, error) {
	count := typ.Len()
	elem, err := getUnmarshalData(typ.Elem())
	if err != nil {
		return nil, err
	}
	elemSize := int(typ.Elem().Type1().Size())
	size := make(structSize, 0, count*len(elem.size))
	for i := 0; i < count; i++ {
		size = size.Add(elem.size)
	}
	if elem.size.Size() == elemSize {
		totalSize := size.Size()
		return &handlerData{
			handler: func(stream Stream, ptr unsafe.Pointer) error {
				_, err := stream.Read(unsafe.Slice((*byte)(ptr), totalSize))
				return err
			},
			size:  size,
			align: elem.align,
		}, nil
	}
	return &handlerData{
		handler: func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				err := elem.handler(stream, ptr)
				if err != nil {
					return err
				}
				ptr = unsafe.Add(ptr, elemSize)
			}
			return nil
		},
		size:  size,
		align: elem.align,
	}, nil
}
