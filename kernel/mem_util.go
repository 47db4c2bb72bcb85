package kernel

import (
	"reflect"
	"unsafe"
)

// Memset sets size bytes at the given address to the supplied value. Boot
// passes this to pmm.New as the zero-fill callback for every frame it hands
// out, so a freshly allocated frame never leaks whatever was left in
// physical memory from a previous owner. The implementation is based on
// bytes.Repeat; instead of using a for loop, this function uses log2(size)
// copy calls which should give us a speed boost as page addresses are
// always aligned.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	// overlay a slice on top of this address region
	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	// Set first element and make log2(size) optimized copies
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. pgfault.writeUTrapframe uses it
// to place a UTrapframe on an environment's exception stack through the
// mapped frame's physical address, the same way a real page-fault upcall
// installer would without going through a Go slice the destination
// environment doesn't own.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: src,
	}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: dst,
	}))

	copy(dstSlice, srcSlice)
}
