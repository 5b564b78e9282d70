// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

// TreeEntry is one entry produced by a [TreeIterator]. Path is
// canonical: "" for the repository root, "/dir/name" otherwise.
type TreeEntry struct {
	Path  string
	Entry catalog.DirectoryEntry
}

// pending is an entry waiting to be yielded by its cursor.
type pending struct {
	path  string
	entry catalog.DirectoryEntry
}

// cursor walks one catalog. Its queue is a stack: children are pushed
// in reverse name order so they pop in name order.
type cursor struct {
	catalog *catalog.Catalog
	queue   []pending
}

func (c *cursor) exhausted() bool { return len(c.queue) == 0 }

func (c *cursor) pop() pending {
	last := c.queue[len(c.queue)-1]
	c.queue = c.queue[:len(c.queue)-1]
	return last
}

// TreeIterator walks a catalog tree depth-first in pre-order,
// children in name order. Crossing a mountpoint yields the nested
// catalog's root entry in place of the mountpoint, so every path is
// produced once.
//
// The iterator pins the catalogs on the current path and releases
// each one as soon as its last entry has been produced. A catalog the
// iterator mounted itself is closed on release; one that was already
// retrieved through the Repository, or is pinned by another iterator,
// stays mounted. Call [TreeIterator.Close] when abandoning a walk
// early.
type TreeIterator struct {
	resolver resolver
	stack    []*cursor

	// visited holds every catalog hash entered, to stop on corrupt
	// references that loop.
	visited map[string]bool
	err     error
}

func newTreeIterator(ctx context.Context, rv resolver) (*TreeIterator, error) {
	iterator := &TreeIterator{resolver: rv, visited: make(map[string]bool)}

	if err := iterator.pushPinned(ctx, rv.root); err != nil {
		return nil, err
	}
	return iterator, nil
}

// pushPinned pins the catalog with the given hash and pushes a cursor
// on it. The pin is released if the push fails.
func (it *TreeIterator) pushPinned(ctx context.Context, hash objectstore.ContentHash) error {
	pinned, err := it.resolver.repository.pin(ctx, hash)
	if err != nil {
		return err
	}
	if err := it.push(ctx, pinned); err != nil {
		return errors.Join(err, it.resolver.repository.release(pinned))
	}
	return nil
}

// push opens a cursor on mounted, seeded with the catalog's own root
// entry.
func (it *TreeIterator) push(ctx context.Context, mounted *catalog.Catalog) error {
	key := mounted.Hash().String()
	if it.visited[key] {
		return fmt.Errorf("%w: catalog %s entered twice", ErrCatalogCycle, key)
	}
	it.visited[key] = true

	mountPath := mounted.MountPath()
	self, err := mounted.FindEntry(ctx, pathhash.Of(mountPath))
	if err != nil {
		return fmt.Errorf("root entry of catalog %s: %w", displayPath(mountPath), err)
	}
	it.stack = append(it.stack, &cursor{
		catalog: mounted,
		queue:   []pending{{path: mountPath, entry: self}},
	})
	return nil
}

// Next returns the next entry, or io.EOF once the tree is exhausted.
// After any other error the iterator is unusable and should be
// closed.
func (it *TreeIterator) Next(ctx context.Context) (TreeEntry, error) {
	if it.err != nil {
		return TreeEntry{}, it.err
	}

	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		current := top.pop()

		if current.entry.IsNestedCatalogMountpoint() {
			if err := it.enter(ctx, top.catalog, current.path); err != nil {
				return TreeEntry{}, it.fail(err)
			}
			continue
		}

		if current.entry.IsDirectory() {
			children, err := top.catalog.ListPath(ctx, current.path)
			if err != nil {
				return TreeEntry{}, it.fail(err)
			}
			for i := len(children) - 1; i >= 0; i-- {
				top.queue = append(top.queue, pending{
					path:  current.path + "/" + children[i].Name,
					entry: children[i],
				})
			}
		}

		if err := it.dropExhausted(); err != nil {
			return TreeEntry{}, it.fail(err)
		}
		return TreeEntry{Path: current.path, Entry: current.entry}, nil
	}

	it.err = io.EOF
	return TreeEntry{}, io.EOF
}

// enter pins the catalog attached at mountpoint and pushes it.
func (it *TreeIterator) enter(ctx context.Context, parent *catalog.Catalog, mountpoint string) error {
	reference, found, err := parent.FindNestedForPath(ctx, mountpoint)
	if err != nil {
		return err
	}
	if !found || reference.MountPath != mountpoint {
		return fmt.Errorf("%w: mountpoint %s", ErrNestedCatalogNotFound, displayPath(mountpoint))
	}

	return it.pushPinned(ctx, reference.Hash)
}

// dropExhausted pops finished cursors from the top of the stack and
// releases their catalogs.
func (it *TreeIterator) dropExhausted() error {
	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		if !top.exhausted() {
			return nil
		}
		it.stack = it.stack[:len(it.stack)-1]
		if err := it.resolver.repository.release(top.catalog); err != nil {
			return err
		}
	}
	return nil
}

func (it *TreeIterator) fail(err error) error {
	it.err = err
	return err
}

// Close releases every catalog still on the stack. It is safe to
// call more than once and after exhaustion.
func (it *TreeIterator) Close() error {
	var errs []error
	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if err := it.resolver.repository.release(top.catalog); err != nil {
			errs = append(errs, err)
		}
	}
	if it.err == nil {
		it.err = io.EOF
	}
	return errors.Join(errs...)
}

// All returns the remaining entries as a sequence. The iterator is
// closed when the sequence ends, including on early break. An error
// other than io.EOF is yielded once as the final element.
func (it *TreeIterator) All(ctx context.Context) iter.Seq2[TreeEntry, error] {
	return func(yield func(TreeEntry, error) bool) {
		defer it.Close()
		for {
			entry, err := it.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(TreeEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}
