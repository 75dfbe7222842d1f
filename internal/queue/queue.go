package queue

import "errors"

// Queue is a FIFO queue.
type Queue[E any] struct {
	elements []E
}

func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

// Len returns the number of queued elements.
func (q *Queue[E]) Len() int {
	return len(q.elements)
}

var ErrEmpty = errors.New("queue is empty")

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	q.elements = q.elements[1:]
	return e
}

// Worklist is a FIFO queue that holds each element at most once.
type Worklist[E comparable] struct {
	q       Queue[E]
	pending map[E]bool
}

// Push enqueues e unless it is already waiting.
func (w *Worklist[E]) Push(e E) {
	if w.pending == nil {
		w.pending = make(map[E]bool)
	}
	if w.pending[e] {
		return
	}
	w.pending[e] = true
	w.q.Push(e)
}

func (w *Worklist[E]) Empty() bool {
	return w.q.Empty()
}

func (w *Worklist[E]) Pop() E {
	e := w.q.Pop()
	delete(w.pending, e)
	return e
}
