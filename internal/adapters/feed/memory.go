package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/singpath/progressd/internal/domain/model"
)

// Memory is an in-memory Feed backed by a path tree. It backs the test
// suites and the scenario simulator; production deployments plug a real
// store client behind the same interface.
type Memory struct {
	mu     sync.Mutex
	root   *node
	subs   map[int]*subscription
	nextID int
	closed bool
}

// node is one tree position: either a leaf scalar or a branch.
type node struct {
	children map[string]*node
	leaf     json.RawMessage
}

type subMode int

const (
	modeValue subMode = iota
	modeChild
	modeQuery
)

type subscription struct {
	id   int
	mode subMode
	path []string

	// child subscriptions
	kind ChildEvent

	// query subscriptions
	orderBy []string
	equalTo json.RawMessage

	// diffing state
	lastValue string
	lastKids  map[string]string

	out     *pump
	removed *pump // query unmatches
}

// NewMemory creates an empty in-memory feed.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		root: &node{},
		subs: make(map[int]*subscription),
	}
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	for _, seed := range cfg.seeds {
		if err := m.ApplyPatch(context.Background(), seed); err != nil {
			// seeds are produced by tests; a bad one is a programming error
			panic(err)
		}
	}
	return m
}

// Close shuts the feed down, ending every observation.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, sub := range m.subs {
		sub.close()
		delete(m.subs, id)
	}
	return nil
}

// Set writes a single value, nil removing the subtree at path.
func (m *Memory) Set(ctx context.Context, path string, value any) error {
	return m.ApplyPatch(ctx, model.Patch{path: value})
}

// ApplyPatch writes every key of the patch atomically and notifies the
// affected observers once.
func (m *Memory) ApplyPatch(ctx context.Context, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		parts, err := splitPath(k)
		if err != nil {
			return err
		}
		normalized, err := normalize(patch[k])
		if err != nil {
			return fmt.Errorf("patch key %s: %w", k, err)
		}
		m.write(parts, normalized)
	}

	for _, sub := range m.subs {
		m.notify(sub)
	}
	return nil
}

// Value reads the current snapshot at path once.
func (m *Memory) Value(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	parts, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return Snapshot{Key: parts[len(parts)-1], Value: render(m.nodeAt(parts))}, nil
}

// ObserveValue emits the current snapshot at path and then one snapshot
// per change.
func (m *Memory) ObserveValue(ctx context.Context, path string) (<-chan Snapshot, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		mode: modeValue,
		path: parts,
		out:  newPump(),
	}
	cur := render(m.nodeAt(parts))
	sub.lastValue = string(cur)
	sub.out.push(Snapshot{Key: parts[len(parts)-1], Value: cur})
	m.register(ctx, sub)
	return sub.out.out, nil
}

// ObserveChildren emits one snapshot per direct-child transition of the
// given kind. ChildAdded replays the existing children.
func (m *Memory) ObserveChildren(ctx context.Context, path string, kind ChildEvent) (<-chan Snapshot, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		mode: modeChild,
		path: parts,
		kind: kind,
		out:  newPump(),
	}
	sub.lastKids = m.childrenAt(parts)
	if kind == ChildAdded {
		for _, key := range sortedKeys(sub.lastKids) {
			sub.out.push(Snapshot{Key: key, Value: json.RawMessage(sub.lastKids[key])})
		}
	}
	m.register(ctx, sub)
	return sub.out.out, nil
}

// QueryChildren observes the children of path whose value at orderBy
// equals equalTo.
func (m *Memory) QueryChildren(ctx context.Context, path, orderBy, equalTo string) (*Query, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	fieldParts, err := splitPath(orderBy)
	if err != nil {
		return nil, err
	}
	want, err := json.Marshal(equalTo)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		mode:    modeQuery,
		path:    parts,
		orderBy: fieldParts,
		equalTo: want,
		out:     newPump(),
		removed: newPump(),
	}
	sub.lastKids = m.matchingAt(sub)
	for _, key := range sortedKeys(sub.lastKids) {
		sub.out.push(Snapshot{Key: key, Value: json.RawMessage(sub.lastKids[key])})
	}
	// queued behind the backlog, so it cannot close before the last
	// backlog snapshot reached the consumer
	synced := make(chan struct{})
	sub.out.mark(synced)
	m.register(ctx, sub)
	return &Query{Added: sub.out.out, Removed: sub.removed.out, Synced: synced}, nil
}

// register adds the subscription and arranges its removal when ctx ends.
// Callers hold m.mu.
func (m *Memory) register(ctx context.Context, sub *subscription) {
	sub.id = m.nextID
	m.nextID++
	m.subs[sub.id] = sub
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[sub.id]; ok {
			delete(m.subs, sub.id)
			sub.close()
		}
	}()
}

func (s *subscription) close() {
	s.out.close()
	if s.removed != nil {
		s.removed.close()
	}
}

// notify diffs the tree against the subscription's last-seen state and
// pushes the resulting events. Callers hold m.mu.
func (m *Memory) notify(sub *subscription) {
	switch sub.mode {
	case modeValue:
		cur := render(m.nodeAt(sub.path))
		if string(cur) == sub.lastValue {
			return
		}
		sub.lastValue = string(cur)
		sub.out.push(Snapshot{Key: sub.path[len(sub.path)-1], Value: cur})

	case modeChild:
		cur := m.childrenAt(sub.path)
		m.diffChildren(sub, cur)

	case modeQuery:
		cur := m.matchingAt(sub)
		for _, key := range sortedKeys(sub.lastKids) {
			if _, ok := cur[key]; !ok {
				sub.removed.push(Snapshot{Key: key, Value: json.RawMessage(sub.lastKids[key])})
			}
		}
		for _, key := range sortedKeys(cur) {
			if _, ok := sub.lastKids[key]; !ok {
				sub.out.push(Snapshot{Key: key, Value: json.RawMessage(cur[key])})
			}
		}
		sub.lastKids = cur
	}
}

func (m *Memory) diffChildren(sub *subscription, cur map[string]string) {
	for _, key := range sortedKeys(sub.lastKids) {
		if _, ok := cur[key]; !ok && sub.kind == ChildRemoved {
			sub.out.push(Snapshot{Key: key, Value: json.RawMessage(sub.lastKids[key])})
		}
	}
	for _, key := range sortedKeys(cur) {
		prev, existed := sub.lastKids[key]
		switch {
		case !existed && sub.kind == ChildAdded:
			sub.out.push(Snapshot{Key: key, Value: json.RawMessage(cur[key])})
		case existed && prev != cur[key] && sub.kind == ChildChanged:
			sub.out.push(Snapshot{Key: key, Value: json.RawMessage(cur[key])})
		}
	}
	sub.lastKids = cur
}

// tree helpers; callers hold m.mu.

func (m *Memory) nodeAt(parts []string) *node {
	n := m.root
	for _, p := range parts {
		if n == nil {
			return nil
		}
		n = n.children[p]
	}
	return n
}

func (m *Memory) childrenAt(parts []string) map[string]string {
	out := make(map[string]string)
	n := m.nodeAt(parts)
	if n == nil {
		return out
	}
	for key, child := range n.children {
		out[key] = string(render(child))
	}
	return out
}

func (m *Memory) matchingAt(sub *subscription) map[string]string {
	out := make(map[string]string)
	n := m.nodeAt(sub.path)
	if n == nil {
		return out
	}
	for key, child := range n.children {
		field := child
		for _, p := range sub.orderBy {
			if field == nil {
				break
			}
			field = field.children[p]
		}
		if field != nil && string(render(field)) == string(sub.equalTo) {
			out[key] = string(render(child))
		}
	}
	return out
}

func (m *Memory) write(parts []string, value any) {
	replacement := buildNode(value)
	if replacement == nil {
		m.remove(parts)
		return
	}
	n := m.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := n.children[p]
		if !ok {
			child = &node{}
			if n.children == nil {
				n.children = make(map[string]*node)
			}
			// a scalar written over by a deeper path loses its leaf
			n.leaf = nil
			n.children[p] = child
		}
		n = child
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	n.leaf = nil
	n.children[parts[len(parts)-1]] = replacement
}

func (m *Memory) remove(parts []string) {
	chain := make([]*node, 0, len(parts))
	n := m.root
	for _, p := range parts {
		chain = append(chain, n)
		next, ok := n.children[p]
		if !ok {
			return
		}
		n = next
	}
	delete(chain[len(chain)-1].children, parts[len(parts)-1])
	// prune now-empty branches
	for i := len(chain) - 1; i > 0; i-- {
		if len(chain[i].children) == 0 && chain[i].leaf == nil {
			delete(chain[i-1].children, parts[i-1])
		}
	}
}

// buildNode converts a normalized value into a subtree, nil meaning
// "remove".
func buildNode(v any) *node {
	switch tv := v.(type) {
	case nil:
		return nil
	case map[string]any:
		n := &node{children: make(map[string]*node)}
		for key, sub := range tv {
			if child := buildNode(sub); child != nil {
				n.children[key] = child
			}
		}
		if len(n.children) == 0 {
			return nil
		}
		return n
	default:
		raw, err := json.Marshal(tv)
		if err != nil {
			// normalized values round-tripped through encoding/json
			panic(err)
		}
		return &node{leaf: raw}
	}
}

// render serializes a subtree, nil meaning absent.
func render(n *node) json.RawMessage {
	if n == nil {
		return nil
	}
	if n.leaf != nil {
		return n.leaf
	}
	if len(n.children) == 0 {
		return nil
	}
	obj := make(map[string]json.RawMessage, len(n.children))
	for key, child := range n.children {
		if raw := render(child); raw != nil {
			obj[key] = raw
		}
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return raw
}

// normalize round-trips a Go value through encoding/json so the tree
// only ever stores maps and scalars.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
