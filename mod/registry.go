package mod

import "sync"

// registryBuckets is the fixed bucket count for Registry_t's hash table.
const registryBuckets = 64

type registryEntry struct {
	name string
	mod  *Module_t
	next *registryEntry
}

type registryBucket struct {
	sync.RWMutex
	first *registryEntry
}

// Registry_t maps a module name to its Module_t, grounded on biscuit's
// hashtable package's bucket-chaining shape but with a plain per-bucket
// RWMutex in place of hashtable's lock-free-read atomic-pointer trick — a
// module registry is touched on load/unload/lookup, never a per-packet hot
// path, so the extra unsafe-pointer machinery buys nothing here.
type Registry_t struct {
	buckets [registryBuckets]registryBucket
}

func (r *Registry_t) bucketFor(name string) *registryBucket {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return &r.buckets[h%registryBuckets]
}

// Put registers m under name, replacing any previous entry of that name.
func (r *Registry_t) Put(name string, m *Module_t) {
	b := r.bucketFor(name)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.name == name {
			e.mod = m
			return
		}
	}
	b.first = &registryEntry{name: name, mod: m, next: b.first}
}

// Get returns the module registered under name, if any.
func (r *Registry_t) Get(name string) (*Module_t, bool) {
	b := r.bucketFor(name)
	b.RLock()
	defer b.RUnlock()
	for e := b.first; e != nil; e = e.next {
		if e.name == name {
			return e.mod, true
		}
	}
	return nil, false
}

// Del removes the entry registered under name, if any.
func (r *Registry_t) Del(name string) {
	b := r.bucketFor(name)
	b.Lock()
	defer b.Unlock()
	var prev *registryEntry
	for e := b.first; e != nil; e = e.next {
		if e.name == name {
			if prev == nil {
				b.first = e.next
			} else {
				prev.next = e.next
			}
			return
		}
		prev = e
	}
}

// All returns every registered module, in no particular order.
func (r *Registry_t) All() []*Module_t {
	var out []*Module_t
	for i := range r.buckets {
		b := &r.buckets[i]
		b.RLock()
		for e := b.first; e != nil; e = e.next {
			out = append(out, e.mod)
		}
		b.RUnlock()
	}
	return out
}
