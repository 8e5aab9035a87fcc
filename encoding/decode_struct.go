package encoding

import (
	"unsafe"

	"github.com/modern-go/reflect2"
)

type structData struct {
	handler handler
	offset  uintptr
	pad     int
}

func decodeStruct(typ reflect2.StructType) (*handlerData, error) {
	count := typ.NumField()
	fields := make([]structData, 0, count)
	size := make(structSize, 0, count)
	var maxAlign int
	var needMarshal bool
	for i := 0; i < count; i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			needMarshal = true
			continue
		}
		data, err := getUnmarshalData(field.Type())
		if err != nil {
			return nil, err
		}
		offset := size.Size()
		pad := align(offset, data.align) - offset
		if pad > 0 {
			size = append(size, pad)
		}
		if uintptr(offset+pad) != field.Offset() || data.size.Size() != int(field.Type().Type1().Size()) {
			needMarshal = true
		}
		size = size.Add(data.size)
		fields = append(fields, structData{data.handler, field.Offset(), pad})
		maxAlign = max(maxAlign, data.align)
	}
	totalSize := size.Size()
	tail := align(totalSize, maxAlign) - totalSize
	if tail > 0 {
		size = append(size, tail)
	}
	if !needMarshal && size.Size() == int(typ.Type1().Size()) {
		totalSize := size.Size()
		return &handlerData{
			handler: func(stream Stream, ptr unsafe.Pointer) error {
				_, err := stream.Read(unsafe.Slice((*byte)(ptr), totalSize))
				return err
			},
			size:  size,
			align: maxAlign,
		}, nil
	}
	return &handlerData{
		handler: func(stream Stream, ptr unsafe.Pointer) error {
			for _, data := range fields {
				if data.pad > 0 {
					if err := stream.Skip(data.pad); err != nil {
						return err
					}
				}
				if err := data.handler(stream, unsafe.Add(ptr, data.offset)); err != nil {
					return err
				}
			}
			if tail > 0 {
				return stream.Skip(tail)
			}
			return nil
		},
		size:  size,
		align: maxAlign,
	}, nil
}
