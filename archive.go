package reflar

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

// Reserved document keys.
const (
	KeyMainID = "%main_id"
	KeyData   = "%data"
	KeyType   = "%type"
	KeyRef    = "&"
	KeyExtra  = "%extra"
	KeyValue  = "data"
)

// Archive is a cursor into a document plus the state shared by every cursor
// of the same session. Views created with Scoped share that state.
//
// An Archive is not safe for concurrent use.
type Archive struct {
	ctx *globalContext
	cur *document.Node
}

type identity struct {
	addr unsafe.Pointer
	typ  reflect.Type
}

type patch struct {
	id  uint64
	set func(obj reflect.Value) error
}

type globalContext struct {
	opts Options
	log  *slog.Logger

	root  *document.Node
	data  *document.Node
	extra ExtraBuffer

	// save session
	ids     map[identity]uint64
	written map[uint64]bool
	nextID  uint64

	// load session
	mainID  uint64
	objects map[uint64]reflect.Value
	unique  map[uint64]bool
	patches []patch
	commits []func()

	savePrepared bool
	loadPrepared bool
}

func NewArchive(opts Options) *Archive {
	opts = opts.withDefaults()
	return &Archive{ctx: &globalContext{opts: opts, log: opts.Logger}}
}

func (a *Archive) Options() Options { return a.ctx.opts }

func (a *Archive) Registry() registry.Registry { return a.ctx.opts.Registry }

// Root returns the document root, nil before a session has been prepared.
func (a *Archive) Root() *document.Node { return a.ctx.root }

func (a *Archive) Cursor() *document.Node { return a.cur }

func (a *Archive) Extra() *ExtraBuffer { return &a.ctx.extra }

// Scoped returns a view of the same session positioned at n.
func (a *Archive) Scoped(n *document.Node) *Archive {
	return &Archive{ctx: a.ctx, cur: n}
}

// PrepareSave starts a save session on an empty document. It fails while a
// save or a load session is open; Clear ends both.
func (a *Archive) PrepareSave() error {
	c := a.ctx
	if c.savePrepared || c.loadPrepared {
		return ErrAlreadyPrepared
	}
	c.root = document.NewMapping()
	c.root.Entry(KeyMainID)
	c.data = c.root.Entry(KeyData)
	c.data.SetMapping()
	c.extra.Reset(nil)
	c.ids = make(map[identity]uint64)
	c.written = make(map[uint64]bool)
	c.nextID = 0
	c.savePrepared = true
	a.cur = c.root
	c.log.Debug("save session prepared")
	return nil
}

// PrepareLoad starts a load session on the current document and positions
// the cursor at the main object's body.
func (a *Archive) PrepareLoad() error {
	c := a.ctx
	if c.loadPrepared {
		return ErrAlreadyPrepared
	}
	if c.root == nil {
		return malformedf("no document")
	}
	id, body, err := c.mainBody()
	if err != nil {
		return err
	}
	c.mainID = id
	c.objects = make(map[uint64]reflect.Value)
	c.unique = make(map[uint64]bool)
	c.patches = nil
	c.commits = nil
	c.loadPrepared = true
	a.cur = body
	c.log.Debug("load session prepared", "main_id", id, "objects", c.data.Len())
	return nil
}

func (c *globalContext) mainBody() (uint64, *document.Node, error) {
	n, err := c.root.Lookup(KeyMainID)
	if err != nil {
		return 0, nil, malformed(err)
	}
	id, err := n.Uint(64)
	if err != nil {
		return 0, nil, malformed(fmt.Errorf("%s: %w", KeyMainID, err))
	}
	data, err := c.root.Lookup(KeyData)
	if err != nil {
		return 0, nil, malformed(err)
	}
	if data.Kind() != document.Mapping {
		return 0, nil, malformedf("%s is a %v", KeyData, data.Kind())
	}
	c.data = data
	body, err := c.body(id)
	if err != nil {
		return 0, nil, err
	}
	return id, body, nil
}

func (c *globalContext) body(id uint64) (*document.Node, error) {
	body, ok := c.data.Get(strconv.FormatUint(id, 10))
	if !ok {
		return nil, malformedf("no body for id %d", id)
	}
	if body.Kind() != document.Mapping {
		return nil, malformedf("body of id %d is a %v", id, body.Kind())
	}
	return body, nil
}

// Clear drops the document, the extra buffer and all session state.
func (a *Archive) Clear() {
	c := a.ctx
	c.root = nil
	c.data = nil
	c.extra.Reset(nil)
	c.ids = nil
	c.written = nil
	c.nextID = 0
	c.objects = nil
	c.unique = nil
	c.patches = nil
	c.commits = nil
	c.savePrepared = false
	c.loadPrepared = false
	a.cur = nil
	c.log.Debug("archive cleared")
}

// MainType returns the registered name recorded for the main object.
func (a *Archive) MainType() (string, error) {
	n, err := a.MainProperty(KeyType)
	if err != nil {
		return "", err
	}
	name, err := n.Str()
	if err != nil {
		return "", malformed(err)
	}
	return name, nil
}

// MainProperty returns an entry of the main object's body without loading
// the object.
func (a *Archive) MainProperty(key string) (*document.Node, error) {
	if a.ctx.root == nil {
		return nil, malformedf("no document")
	}
	_, body, err := a.ctx.mainBody()
	if err != nil {
		return nil, err
	}
	n, err := body.Lookup(key)
	if err != nil {
		return nil, malformed(err)
	}
	return n, nil
}

// Save writes v under key of the cursor. It is meant for custom hooks.
func (a *Archive) Save(key string, v any) error {
	if err := a.checkCursor(); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		a.cur.Entry(key).SetNull()
		return nil
	}
	return atPath(key, a.saveValue(a.cur.Entry(key), rv, fieldOpts{}))
}

// Load reads the entry under key of the cursor into the value ptr points to.
func (a *Archive) Load(key string, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: got %T", ErrNotPointer, ptr)
	}
	if err := a.checkCursor(); err != nil {
		return err
	}
	n, err := a.cur.Lookup(key)
	if err != nil {
		return malformed(err)
	}
	return atPath(key, a.loadValue(n, rv.Elem(), fieldOpts{}))
}

// WriteBlob appends b to the extra buffer and stores its location in n.
func (a *Archive) WriteBlob(n *document.Node, b []byte) {
	off := a.ctx.extra.Write(b)
	loc := n.Entry(KeyExtra)
	loc.SetSequence()
	loc.Append().SetUint(uint64(off))
	loc.Append().SetUint(uint64(len(b)))
}

// ReadBlob returns the bytes whose location WriteBlob stored in n. The
// result aliases the extra buffer.
func (a *Archive) ReadBlob(n *document.Node) ([]byte, error) {
	loc, err := n.Lookup(KeyExtra)
	if err != nil {
		return nil, malformed(err)
	}
	if loc.Kind() != document.Sequence || loc.Len() != 2 {
		return nil, malformedf("%s must be [offset, size]", KeyExtra)
	}
	off, err := loc.At(0).Uint(64)
	if err != nil {
		return nil, malformed(err)
	}
	size, err := loc.At(1).Uint(64)
	if err != nil {
		return nil, malformed(err)
	}
	return a.ctx.extra.Slice(int(off), int(size))
}

// Encode renders the document in the configured format and returns it with
// the extra buffer.
func (a *Archive) Encode() (doc, extra []byte, err error) {
	if a.ctx.root == nil {
		return nil, nil, malformedf("no document")
	}
	doc, err = a.ctx.opts.Format.Encode(a.ctx.root)
	if errors.Is(err, document.ErrInvalidText) {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnsupportedFieldType, err)
	}
	if err != nil {
		return nil, nil, malformed(err)
	}
	return doc, a.ctx.extra.Bytes(), nil
}

// Decode clears the archive and installs the document parsed from doc and
// the given extra buffer, ready for PrepareLoad.
func (a *Archive) Decode(doc, extra []byte) error {
	root, err := a.ctx.opts.Format.Decode(doc)
	if err != nil {
		return malformed(err)
	}
	a.SetDocument(root, extra)
	return nil
}

// SetDocument clears the archive and installs root and extra.
func (a *Archive) SetDocument(root *document.Node, extra []byte) {
	a.Clear()
	a.ctx.root = root
	a.ctx.extra.Reset(extra)
	a.cur = root
}

// typeOf returns the registered description of a statically known type,
// registering it on first use when the registry allows it.
func (a *Archive) typeOf(rt reflect.Type) (registry.Type, error) {
	reg := a.ctx.opts.Registry
	if t, ok := reg.TypeOf(rt); ok {
		return t, nil
	}
	if e, ok := reg.(interface {
		Ensure(reflect.Type) (registry.Type, error)
	}); ok {
		t, err := e.Ensure(rt)
		if err != nil {
			return nil, unsupportedf("%v: %v", rt, err)
		}
		a.ctx.log.Debug("registered type on first use", "type", t.Name())
		return t, nil
	}
	return nil, unsupportedf("%v is not registered", rt)
}

func (a *Archive) lookupType(name string) (registry.Type, error) {
	t, ok := a.ctx.opts.Registry.Lookup(name)
	if !ok {
		return nil, unsupportedf("unknown type name %q", name)
	}
	return t, nil
}

func typeName(n *document.Node) (string, bool, error) {
	tn, ok := n.Get(KeyType)
	if !ok {
		return "", false, nil
	}
	name, err := tn.Str()
	if err != nil {
		return "", false, malformed(fmt.Errorf("%s: %w", KeyType, err))
	}
	return name, true, nil
}

var errNoSession = errors.New("reflar: no session prepared")

func (a *Archive) checkCursor() error {
	if a.cur == nil {
		return errNoSession
	}
	return nil
}
