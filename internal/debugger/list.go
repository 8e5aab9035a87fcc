package debugger

import "iter"

// Handle is a stable reference to one element of a List. It stays valid
// until the element is removed.
type Handle[T any] struct {
	Value T
	prev  *Handle[T]
	next  *Handle[T]
	list  *List[T]
}

// List is an ordered container owning copies of its elements.
type List[T any] struct {
	first *Handle[T]
	last  *Handle[T]
	count int
}

func (l *List[T]) Len() int {
	return l.count
}

func (l *List[T]) First() *Handle[T] {
	return l.first
}

func (l *List[T]) Last() *Handle[T] {
	return l.last
}

func (l *List[T]) Append(v T) *Handle[T] {
	h := &Handle[T]{Value: v, list: l}
	if l.last == nil {
		l.first = h
	} else {
		h.prev = l.last
		l.last.next = h
	}
	l.last = h
	l.count++
	return h
}

func (l *List[T]) At(index int) *Handle[T] {
	if index < 0 || index >= l.count {
		return nil
	}
	h := l.first
	for ; index > 0; index-- {
		h = h.next
	}
	return h
}

// Remove drops the element at index. Out of range indexes are a no-op and
// report false.
func (l *List[T]) Remove(index int) bool {
	h := l.At(index)
	if h == nil {
		return false
	}
	l.unlink(h)
	return true
}

func (l *List[T]) RemoveHandle(h *Handle[T]) bool {
	if h == nil || h.list != l {
		return false
	}
	l.unlink(h)
	return true
}

func (l *List[T]) unlink(h *Handle[T]) {
	if h.prev != nil {
		h.prev.next = h.next
	} else {
		l.first = h.next
	}
	if h.next != nil {
		h.next.prev = h.prev
	} else {
		l.last = h.prev
	}
	h.prev = nil
	h.next = nil
	h.list = nil
	l.count--
}

func (l *List[T]) All() iter.Seq2[int, *Handle[T]] {
	return func(yield func(int, *Handle[T]) bool) {
		i := 0
		for h := l.first; h != nil; h = h.next {
			if !yield(i, h) {
				return
			}
			i++
		}
	}
}

// Find returns the first element matching fn and its index, or nil and -1.
func (l *List[T]) Find(fn func(*T) bool) (*Handle[T], int) {
	for i, h := range l.All() {
		if fn(&h.Value) {
			return h, i
		}
	}
	return nil, -1
}

func (l *List[T]) Values() []T {
	values := make([]T, 0, l.count)
	for _, h := range l.All() {
		values = append(values, h.Value)
	}
	return values
}

// Release hands every element to fn, if any, and empties the list.
func (l *List[T]) Release(fn func(*T)) {
	for h := l.first; h != nil; {
		next := h.next
		if fn != nil {
			fn(&h.Value)
		}
		h.prev, h.next, h.list = nil, nil, nil
		h = next
	}
	l.first, l.last, l.count = nil, nil, 0
}

func (h *Handle[T]) Next() *Handle[T] {
	return h.next
}

func (h *Handle[T]) Prev() *Handle[T] {
	return h.prev
}
