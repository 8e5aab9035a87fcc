package debugger

type Library struct {
	Name string
	Base uint64
	Size uint64
}

type Thread struct {
	TID   int
	Entry uint64
}

type SourceFile struct {
	Base uint64
	Name string
}

type ProcessInfo struct {
	Name string
	Path string
	Base uint64
	PID  int
	TID  int
}
