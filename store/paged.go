package store

// PageFunc loads up to limit items in ascending key order starting at from.
// from itself is included only when inclusive is set.
type PageFunc func(from []byte, inclusive bool, limit int) ([]Item, error)

const DefaultPageSize = 256

// NewPagedCursor returns a cursor that reads through fetch one page at a
// time. Engines that cannot keep a result set open while other statements
// run on the same connection use it to iterate.
func NewPagedCursor(fetch PageFunc, pageSize int) Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &pagedCursor{fetch: fetch, pageSize: pageSize}
}

type pagedCursor struct {
	fetch    PageFunc
	pageSize int

	page []Item
	pos  int
	more bool
	err  error
}

func (c *pagedCursor) load(from []byte, inclusive bool) error {
	if from == nil {
		from = []byte{}
	}
	c.page, c.err = c.fetch(from, inclusive, c.pageSize)
	c.pos = 0
	c.more = c.err == nil && len(c.page) == c.pageSize
	return c.err
}

func (c *pagedCursor) Seek(key []byte) error {
	return c.load(key, true)
}

func (c *pagedCursor) Next() {
	if !c.Valid() {
		return
	}
	c.pos++
	if c.pos < len(c.page) || !c.more {
		return
	}
	c.load(c.page[len(c.page)-1].Key, false)
}

func (c *pagedCursor) Valid() bool {
	return c.err == nil && c.pos < len(c.page)
}

func (c *pagedCursor) Item() (Item, error) {
	if c.err != nil {
		return Item{}, c.err
	}
	return c.page[c.pos], nil
}

// Close reports the error, if any, that ended iteration early.
func (c *pagedCursor) Close() error {
	c.page = nil
	return c.err
}
