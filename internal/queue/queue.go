// Package queue implements the bounded binary heaps used by neighbor search.
package queue

// Item is a candidate offset together with its distance to the query.
type Item struct {
	Offset   int
	Distance float64
}

// PriorityQueue is a value-based binary heap of Items.
// A max heap keeps the farthest candidate on top, which is what a bounded
// k-nearest-neighbor search evicts first.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a new priority queue with minimum priority.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax initializes a new priority queue with maximum priority.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the top element of the heap.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts item into a heap holding at most k elements.
// On a max heap the farthest element is replaced when the heap is full and
// item is closer. It reports whether item was kept.
func (pq *PriorityQueue) PushBounded(item Item, k int) bool {
	if len(pq.items) < k {
		pq.Push(item)
		return true
	}
	if k == 0 || !pq.before(pq.items[0], item) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// Pop removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// before reports whether a ranks above b. Ties are broken by offset so that
// results do not depend on insertion order.
func (pq *PriorityQueue) before(a, b Item) bool {
	if a.Distance != b.Distance {
		if pq.isMaxHeap {
			return a.Distance > b.Distance
		}
		return a.Distance < b.Distance
	}
	if pq.isMaxHeap {
		return a.Offset > b.Offset
	}
	return a.Offset < b.Offset
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.before(pq.items[i], pq.items[p]) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.before(pq.items[r], pq.items[l]) {
			best = r
		}
		if !pq.before(pq.items[best], pq.items[i]) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
