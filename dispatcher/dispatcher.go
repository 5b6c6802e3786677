package dispatcher

import (
	"encoding/binary"

	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/object"
	"redapid/program"
	"redapid/reactor"
	"redapid/session"
	"redapid/value"
	"redapid/wire"
)

// HandlerFunc decodes a request payload, performs the operation, and
// encodes a response payload. It returns apierrors.Success on success; any
// other Code is written into the response header's error_code nibble and
// the payload is ignored (empty response), per §4.9's fixed dispatch
// table description.
type HandlerFunc func(d *Dispatcher, payload []byte) ([]byte, apierrors.Code)

// entry is one row of the fixed function-id table (§4.9): the expected
// request payload length (an exact match is required; mismatches yield
// INVALID_PARAMETER) and the operation itself.
type entry struct {
	name        string
	expectedLen int
	handler     HandlerFunc
}

// Dispatcher owns the live inventory and session registry and routes
// decoded wire frames to the fixed function-id table. It does no I/O of
// its own — the reactor feeds it frames read from the peer socket and
// writes back whatever Dispatch returns.
type Dispatcher struct {
	inv      *inventory.Table
	sessions *session.Manager
	uid      uint32
	home     string
	spawner  program.Spawner

	// react and srv are attached once the reactor's event loop exists
	// (AttachReactor), after New has already built the function table;
	// every handler that needs them checks for nil so the dispatcher
	// remains independently testable without a live epoll loop.
	react *reactor.Reactor
	srv   *reactor.Server

	// watcher is non-nil once StartConfigWatcher has run; handleProgramDefine
	// adds newly created program directories to it.
	watcher *program.Watcher

	table map[uint8]entry

	// enumeration cursors back FuncObjectNextEntry/FuncObjectRewind: a
	// snapshot of live ids for a kind, taken on Rewind, walked one id per
	// NextEntry call. Mirrors the Tinkerforge RED Brick "get_next_entry"
	// generator-style enumeration the original daemon exposes per object
	// kind.
	cursorIDs map[object.Kind][]uint16
	cursorPos map[object.Kind]int
}

// New builds a Dispatcher over inv and sessions, registering the fixed
// function-id table. uid is the device identity read from
// /proc/red_brick_uid at startup (§6); home is the directory programs()
// are rooted under (<home>/programs/<identifier>).
func New(inv *inventory.Table, sessions *session.Manager, uid uint32, home string) *Dispatcher {
	d := &Dispatcher{
		inv:       inv,
		sessions:  sessions,
		uid:       uid,
		home:      home,
		table:     make(map[uint8]entry),
		cursorIDs: make(map[object.Kind][]uint16),
		cursorPos: make(map[object.Kind]int),
	}
	d.spawner = program.NewDefaultSpawner(inv, d.watchProcess)
	d.registerObjectTable()
	d.registerString()
	d.registerList()
	d.registerFile()
	d.registerDirectory()
	d.registerProcess()
	d.registerProgram()
	d.registerSession()
	d.registerIdentity()
	return d
}

// AttachReactor wires the dispatcher to the live event loop and its
// listening sockets, enabling process-wake registration and callback
// delivery. Called once by the composition root after both have been
// constructed; left unset, the dispatcher still answers requests (used
// by its own tests), it just never emits callbacks or watches spawns.
func (d *Dispatcher) AttachReactor(react *reactor.Reactor, srv *reactor.Server) {
	d.react = react
	d.srv = srv
}

func (d *Dispatcher) register(id uint8, name string, expectedLen int, h HandlerFunc) {
	d.table[id] = entry{name: name, expectedLen: expectedLen, handler: h}
}

// Dispatch routes one decoded request frame. It returns the response frame
// to write back and whether a response should be sent at all (false when
// the request's response_expected flag was clear, per §6's transport
// convention).
func (d *Dispatcher) Dispatch(req wire.Frame) (wire.Frame, bool) {
	e, ok := d.table[req.Header.FunctionID]
	if !ok {
		return wire.Response(req.Header, apierrors.InvalidParameter, nil), req.Header.ResponseExpected
	}
	if e.expectedLen >= 0 && len(req.Payload) != e.expectedLen {
		return wire.Response(req.Header, apierrors.InvalidParameter, nil), req.Header.ResponseExpected
	}

	respPayload, code := e.handler(d, req.Payload)
	if code != apierrors.Success {
		respPayload = nil
	}
	return wire.Response(req.Header, code, respPayload), req.Header.ResponseExpected
}

// --- small payload codec helpers, little-endian throughout (§6) ---

func getUint16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func getUint32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
func putUint16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func putUint32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }

func (d *Dispatcher) lookup(kind object.Kind, id uint16) (object.Object, apierrors.Code) {
	o, err := d.inv.Get(kind, id)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return o, apierrors.Success
}

// asString / asList narrow a looked-up object.Object to its concrete type,
// returning InternalError when the id resolves to the wrong kind despite a KindString/KindList
// query (defensive only: inventory.Get already enforces kind).
func asString(o object.Object) (*value.String, apierrors.Code) {
	s, ok := o.(*value.String)
	if !ok {
		return nil, apierrors.InternalError
	}
	return s, apierrors.Success
}

func asList(o object.Object) (*value.List, apierrors.Code) {
	l, ok := o.(*value.List)
	if !ok {
		return nil, apierrors.InternalError
	}
	return l, apierrors.Success
}
