package registry

import "errors"

var (
	// ErrNotRegistered is returned when removing a module that is not registered.
	ErrNotRegistered = errors.New("module is not registered")
	// ErrLimitIsZero is returned when a paged listing is requested with a zero limit.
	ErrLimitIsZero = errors.New("limit must be positive")
	// ErrEmptyAddress is returned when registering an empty module address.
	ErrEmptyAddress = errors.New("module address is empty")
)

// Registry is the ordered set of aware-module addresses.
//
// It keeps an index map next to the ordered slice so membership tests,
// insertion and removal are all O(1). Removal swaps the last element into
// the freed slot and shrinks the slice.
type Registry struct {
	addrs []string
	index map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a module address.
// It returns false without error when the address is already present.
func (r *Registry) Register(address string) (bool, error) {
	if address == "" {
		return false, ErrEmptyAddress
	}

	if _, ok := r.index[address]; ok {
		return false, nil
	}

	r.index[address] = len(r.addrs)
	r.addrs = append(r.addrs, address)

	return true, nil
}

// Remove deletes a module address using swap-with-last.
func (r *Registry) Remove(address string) error {
	position, ok := r.index[address]
	if !ok {
		return ErrNotRegistered
	}

	last := len(r.addrs) - 1
	if position != last {
		moved := r.addrs[last]
		r.addrs[position] = moved
		r.index[moved] = position
	}

	r.addrs = r.addrs[:last]
	delete(r.index, address)

	return nil
}

// Contains reports whether the address is registered.
func (r *Registry) Contains(address string) bool {
	_, ok := r.index[address]

	return ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.addrs)
}

// Page returns a bounded slice of addresses starting at offset, plus the
// total count. An offset beyond the end yields an empty page, not an error.
func (r *Registry) Page(offset, limit uint64) ([]string, uint64, error) {
	if limit == 0 {
		return nil, 0, ErrLimitIsZero
	}

	total := uint64(len(r.addrs))
	if offset >= total {
		return []string{}, total, nil
	}

	end := total
	if limit < total-offset {
		end = offset + limit
	}

	page := make([]string, end-offset)
	copy(page, r.addrs[offset:end])

	return page, total, nil
}

// Addresses returns a copy of all registered addresses in registry order.
func (r *Registry) Addresses() []string {
	return append([]string(nil), r.addrs...)
}

// Restore replaces the registry contents with the given addresses,
// silently dropping empty strings and duplicates.
func (r *Registry) Restore(addresses []string) {
	r.addrs = r.addrs[:0]
	r.index = make(map[string]int, len(addresses))

	for _, address := range addresses {
		_, _ = r.Register(address)
	}
}
