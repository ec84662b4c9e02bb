package il

// poolPageSize matches the teacher's ssa/pool.go page size: large enough to
// amortize allocation, small enough that a short-lived function doesn't pay
// for a full page it never uses.
const poolPageSize = 128

// pool is a page-allocated arena of T, avoiding one heap allocation per
// node the way Go's built-in `new` would. Copied in structure from the
// teacher's internal/engine/wazevo/ssa/pool.go.
type pool[T any] struct {
	pages     []*[poolPageSize]T
	allocated int
	index     int
}

func newPool[T any]() pool[T] {
	var p pool[T]
	p.index = poolPageSize
	return p
}

func (p *pool[T]) allocate() *T {
	if p.index == poolPageSize {
		p.pages = append(p.pages, new([poolPageSize]T))
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

func (p *pool[T]) view(i int) *T {
	page, idx := i/poolPageSize, i%poolPageSize
	return &p.pages[page][idx]
}

func (p *pool[T]) reset() {
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}

func (p *pool[T]) Allocated() int { return p.allocated }
