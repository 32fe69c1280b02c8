package telemetrybus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/settings"
)

// ClientConfig addresses and identifies a Client to a telemetry bus server.
type ClientConfig struct {
	Addr     string
	Identity string
}

// Client is a telemetry bus peer: it keeps a local Store synced with a
// remote server over the wire protocol in wire.go/wire_codec.go, and
// additionally satisfies runtime.Bus so internal/runtime.Manager can use it
// directly as a settings mirror without either package importing the other.
type Client struct {
	Store  Store
	Logger *logrus.Logger
	Config ClientConfig

	conn   net.Conn
	connMu *sync.Mutex

	subMu sync.Mutex
	subs  map[string][]*subscription

	idMu      sync.Mutex
	nextLocal int
}

// localIDBase separates locally-minted entry IDs (for Put calls made
// before any server has assigned a real one) from the small integers a
// server hands out starting near zero, so the two ID spaces never collide
// in the badger-backed Store.
const localIDBase = 1 << 20

func (c *Client) allocateLocalID() int {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	if c.nextLocal == 0 {
		c.nextLocal = localIDBase
	}
	id := c.nextLocal
	c.nextLocal++
	return id
}

type subscription struct {
	fn func(settings.Value)
}

func (c *Client) Open(ctx context.Context) error {
	if c.Config.Addr == "" {
		c.Config.Addr = ":1735"
	}

	if c.Config.Identity == "" {
		hostname, err := os.Hostname()
		if err == nil {
			c.Config.Identity = hostname
		} else {
			c.Config.Identity = "synapse-core"
		}
	}

	if c.Store == nil {
		store, err := OpenBadgerDB(badger.DefaultOptions("").WithInMemory(true))
		if err != nil {
			return fmt.Errorf("no store was specified, tried to use badger in memory but got: %w", err)
		}

		c.Store = store
	}

	c.connMu = new(sync.Mutex)
	c.subs = make(map[string][]*subscription)

	return nil
}

func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) getConn() (net.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		conn, err := net.Dial("tcp", c.Config.Addr)
		if err != nil {
			return nil, fmt.Errorf("couldn't dial into server: %w", err)
		}

		c.conn = conn

		if err := c.handshake(); err != nil {
			conn.Close()
			c.conn = nil
			return nil, fmt.Errorf("handshake failed: %w", err)
		}

		go func() {
			c.listen()
			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
		}()
	}

	return c.conn, nil
}

func (c *Client) Ping() error {
	conn, err := c.getConn()
	if err != nil {
		return fmt.Errorf("unable to get connection to server: %w", err)
	}

	_, err = (&ntMessageType{Type: keepAliveMessageType}).Encode(conn)
	if err != nil {
		return fmt.Errorf("unable to encode ping to server: %w", err)
	}

	return err
}

// PutEntry stores entry locally. Subscribers of its name are not notified:
// they only hear about remote writes. A live server connection propagates
// the write; absent one, the write stays local — callers on a disconnected
// bus still read their own writes back through Get, they just don't reach
// peers until the next reconnect's handshake resync.
func (c *Client) PutEntry(entry Entry) error {
	id, seq, err := c.Store.GetIDSeq(entry.Name)
	if err != nil {
		entry.ID = c.allocateLocalID()
		if err := c.Store.Create(entry); err != nil {
			return fmt.Errorf("couldn't create local entry: %w", err)
		}
		c.sendAssignment(entry)
		return nil
	}

	if err := c.Store.UpdateValue(id, seq+1, entry.Value); err != nil {
		return fmt.Errorf("couldn't update entry value: %w", err)
	}
	c.sendUpdate(id, seq+1, entry.Value)

	return nil
}

// sendAssignment and sendUpdate push a local write to a connected server.
// A disconnected bus (getConn failing) is not an error here: Put always
// succeeds locally, matching the store-then-sync behavior the rest of this
// package applies to inbound server messages.
func (c *Client) sendAssignment(entry Entry) {
	conn, err := c.getConn()
	if err != nil {
		return
	}
	if err := writeEntryAssignment(conn, entry); err != nil && c.Logger != nil {
		c.Logger.WithError(err).Warn("couldn't send entry assignment")
	}
}

func (c *Client) sendUpdate(id, seq int, value EntryValue) {
	conn, err := c.getConn()
	if err != nil {
		return
	}
	if _, err := (&ntMessageType{Type: entryUpdateMessageType}).Encode(conn); err != nil {
		if c.Logger != nil {
			c.Logger.WithError(err).Warn("couldn't send entry update message type")
		}
		return
	}
	update := ntEntryUpdate{ID: uint16(id), SequenceNumber: uint16(seq), EntryValue: ntFromEntryValue(value)}
	if _, err := update.Encode(conn); err != nil && c.Logger != nil {
		c.Logger.WithError(err).Warn("couldn't send entry update")
	}
}

func (c *Client) GetEntry(name string) (Entry, error) {
	value, err := c.Store.GetByName(name)
	if err != nil {
		return Entry{}, fmt.Errorf("couldn't get entry by name: %w", err)
	}

	return value, nil
}

func (c *Client) DeleteEntry(name string) error {
	id, err := c.Store.DeleteByName(name)
	if err != nil {
		return fmt.Errorf("couldn't delete entry: %w", err)
	}

	conn, err := c.getConn()
	if err != nil {
		return nil
	}
	if _, err := (&ntMessageType{Type: entryDeleteMessageType}).Encode(conn); err != nil {
		if c.Logger != nil {
			c.Logger.WithError(err).Warn("couldn't send entry delete message type")
		}
		return nil
	}
	if _, err := (&ntEntryDelete{ID: uint16(id)}).Encode(conn); err != nil && c.Logger != nil {
		c.Logger.WithError(err).Warn("couldn't send entry delete")
	}

	return nil
}

// Put implements runtime.Bus, storing value under key as a telemetry entry.
func (c *Client) Put(key string, value settings.Value) error {
	ev, err := settingsValueToEntryValue(value)
	if err != nil {
		return err
	}
	return c.PutEntry(Entry{Name: key, Value: ev})
}

// Get implements runtime.Bus.
func (c *Client) Get(key string) (settings.Value, bool) {
	entry, err := c.GetEntry(key)
	if err != nil {
		return settings.Value{}, false
	}
	v, err := entryValueToSettingsValue(entry.Value)
	if err != nil {
		return settings.Value{}, false
	}
	return v, true
}

// Subscribe implements runtime.Bus: fn is invoked every time key's entry is
// created or updated by a remote write (entryAssignmentMessageType or
// entryUpdateMessageType arriving over the wire). The returned func
// unregisters fn.
func (c *Client) Subscribe(key string, fn func(settings.Value)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	sub := &subscription{fn: fn}
	c.subs[key] = append(c.subs[key], sub)

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		list := c.subs[key]
		for i, s := range list {
			if s == sub {
				c.subs[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

func (c *Client) notify(name string, ev EntryValue) {
	v, err := entryValueToSettingsValue(ev)
	if err != nil {
		return
	}

	c.subMu.Lock()
	subs := append([]*subscription{}, c.subs[name]...)
	c.subMu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

const protocolVersion = 0x0300

func (c *Client) handshake() error {
	// handshake callers should have a connMu lock acquired

	conn := c.conn

	if c.Logger != nil {
		c.Logger.Infof("identifying as %q to server at %q", c.Config.Identity, conn.RemoteAddr().String())
	}
	if err := writeClientHello(conn, protocolVersion, c.Config.Identity); err != nil {
		return fmt.Errorf("couldn't send client hello to server: %w", err)
	}

	seen, identity, err := readServerHello(conn)
	if err != nil {
		return fmt.Errorf("couldn't read server hello: %w", err)
	}

	if c.Logger != nil {
		c.Logger.Infof("connected to server %q (seen = %t)", identity, seen)
	}

	// load every entry assignment the server has, then send back anything
	// the server is missing from the local store.

	var messageType ntMessageType
	var assignment ntEntryAssignment
	serverNames := make(map[string]struct{})

	for {
		if _, err := messageType.Decode(conn); err != nil {
			return fmt.Errorf("couldn't decode server message type: %w", err)
		}

		if messageType.Type == serverHelloCompleteMessageType {
			break
		} else if messageType.Type != entryAssignmentMessageType {
			return fmt.Errorf("server responded with unexpected message type %x instead of %x", messageType.Type, entryAssignmentMessageType)
		}

		if _, err := assignment.Decode(conn); err != nil {
			return fmt.Errorf("couldn't decode assignment: %w", err)
		}

		entry := entryFromAssignment(assignment)
		if err := c.Store.Create(entry); err != nil {
			return fmt.Errorf("couldn't create server assignment %q: %w", assignment.ID, err)
		}
		c.notify(entry.Name, entry.Value)

		serverNames[assignment.Name] = struct{}{}
	}

	if c.Logger != nil {
		c.Logger.Infof("saved %d entry assignments from server", len(serverNames))
	}

	clientNames, err := c.Store.GetNames()
	if err != nil {
		return fmt.Errorf("couldn't get existing entry names from store: %w", err)
	}

	var clientCreateCount int
	for _, name := range clientNames {
		if _, ok := serverNames[name]; ok {
			continue
		}

		entry, err := c.Store.GetByName(name)
		if err != nil {
			return fmt.Errorf("couldn't get client entry %q: %w", name, err)
		}

		if err := writeEntryAssignment(conn, entry); err != nil {
			return fmt.Errorf("couldn't write entry assignment: %w", err)
		}

		clientCreateCount++
	}

	if c.Logger != nil {
		c.Logger.Infof("client sent server %d missing entry assignments", clientCreateCount)
	}

	if _, err := (&ntMessageType{Type: clientHelloCompleteMessageType}).Encode(conn); err != nil {
		return fmt.Errorf("couldn't write client hello message: %w", err)
	}

	if c.Logger != nil {
		c.Logger.Infof("completed handshake with server %q", identity)
	}

	return nil
}

func (c *Client) listen() {
	for {
		err := c.handleResponse()
		if errors.Is(err, io.EOF) {
			if c.Logger != nil {
				c.Logger.Errorf("server closed connection")
			}
			return
		} else if err != nil {
			if c.Logger != nil {
				c.Logger.Errorf("couldn't handle response: %s", err)
			}
		}
	}
}

const clearAllEntriesMagic = 0xD06CB27A

func (c *Client) handleResponse() error {
	var messageType ntMessageType
	if _, err := messageType.Decode(c.conn); err != nil {
		return fmt.Errorf("couldn't decode message type: %w", err)
	}

	switch messageType.Type {
	case keepAliveMessageType:
	case entryAssignmentMessageType:
		var assignment ntEntryAssignment
		if _, err := assignment.Decode(c.conn); err != nil {
			return fmt.Errorf("couldn't decode entry assignment: %w", err)
		}

		entry := entryFromAssignment(assignment)
		if err := c.Store.Create(entry); err != nil {
			return fmt.Errorf("couldn't create entry assignment: %w", err)
		}
		c.notify(entry.Name, entry.Value)

		if c.Logger != nil {
			c.Logger.WithField("name", entry.Name).Info("created entry")
		}
	case entryUpdateMessageType:
		var entryUpdate ntEntryUpdate
		if _, err := entryUpdate.Decode(c.conn); err != nil {
			return fmt.Errorf("couldn't decode entry update: %w", err)
		}

		ev := entryValueFromNt(entryUpdate.EntryValue, entryUpdate.SequenceNumber)
		if err := c.Store.UpdateValue(int(entryUpdate.ID), int(entryUpdate.SequenceNumber), ev); err != nil {
			return fmt.Errorf("couldn't update entry: %w", err)
		}

		if name, err := c.Store.GetName(int(entryUpdate.ID)); err == nil {
			c.notify(name, ev)
		}

		if c.Logger != nil {
			c.Logger.WithField("id", entryUpdate.ID).Info("updated entry")
		}
	case entryFlagsUpdateMessageType:
		var flagsUpdate ntEntryFlagsUpdate
		if _, err := flagsUpdate.Decode(c.conn); err != nil {
			return fmt.Errorf("couldn't decode entry flags update: %w", err)
		}

		err := c.Store.UpdateOptions(int(flagsUpdate.ID), entryOptionsFromNt(flagsUpdate.EntryFlags))
		if err != nil {
			return fmt.Errorf("couldn't update options: %w", err)
		}

		if c.Logger != nil {
			c.Logger.WithField("id", flagsUpdate.ID).Info("updated entry flags")
		}
	case entryDeleteMessageType:
		var del ntEntryDelete
		if _, err := del.Decode(c.conn); err != nil {
			return fmt.Errorf("couldn't decode entry delete: %w", err)
		}

		if err := c.Store.Delete(int(del.ID)); err != nil {
			return fmt.Errorf("couldn't delete entry: %w", err)
		}

		if c.Logger != nil {
			c.Logger.WithField("id", del.ID).Info("deleted entry")
		}
	case clearAllEntriesMessageType:
		var clear ntClearAllEntries
		if _, err := clear.Decode(c.conn); err != nil {
			return fmt.Errorf("couldn't decode clear all entries: %w", err)
		}

		if clear.Magic == clearAllEntriesMagic {
			if err := c.Store.Clear(); err != nil {
				return fmt.Errorf("unable to clear store: %w", err)
			}
		}

		if c.Logger != nil {
			c.Logger.Info("cleared all entries")
		}
	default:
		return fmt.Errorf("got unknown message type: %d", messageType.Type)
	}

	return nil
}

// these translation functions are kept deliberately separate from the
// settings.Value conversions below: they decouple wire entries from our
// native store shape, the settings.Value layer decouples the store shape
// from the runtime.Bus contract.

func entryFromAssignment(nt ntEntryAssignment) Entry {
	return Entry{
		ID:             int(nt.ID),
		SequenceNumber: int(nt.SequenceNumber),
		Name:           nt.Name,
		Options:        entryOptionsFromNt(nt.EntryFlags),
		Value:          entryValueFromNt(nt.EntryValue, nt.SequenceNumber),
	}
}

func assignmentFromEntry(id int, entry Entry) ntEntryAssignment {
	return ntEntryAssignment{
		Name:           entry.Name,
		SequenceNumber: uint16(entry.SequenceNumber),
		ID:             uint16(id),
		EntryFlags: ntEntryFlags{
			Persist: entry.Options.Persist,
		},
		EntryValue: ntFromEntryValue(entry.Value),
	}
}

func entryOptionsFromNt(nt ntEntryFlags) EntryOptions {
	return EntryOptions{
		Persist: nt.Persist,
	}
}

func entryValueFromNt(nt ntEntryValue, seq uint16) EntryValue {
	return EntryValue{
		EntryType:    entryTypeFromNt(nt.Type),
		Boolean:      nt.BooleanValue,
		Double:       nt.DoubleValue,
		RawData:      nt.RawDataValue,
		String:       nt.StringValue,
		BooleanArray: nt.BooleanArrayValue,
		DoubleArray:  nt.DoubleArrayValue,
		StringArray:  nt.StringArrayValue,
	}
}

func ntFromEntryValue(v EntryValue) ntEntryValue {
	return ntEntryValue{
		Type:              ntFromEntryType(v.EntryType),
		BooleanValue:      v.Boolean,
		DoubleValue:       v.Double,
		RawDataValue:      v.RawData,
		StringValue:       v.String,
		BooleanArrayValue: v.BooleanArray,
		DoubleArrayValue:  v.DoubleArray,
		StringArrayValue:  v.StringArray,
	}
}

func entryTypeFromNt(nt ntEntryType) EntryType {
	switch nt {
	case booleanEntryType:
		return Boolean
	case doubleEntryType:
		return Double
	case rawDataEntryType:
		return RawData
	case stringEntryType:
		return String
	case booleanArrayEntryType:
		return BooleanArray
	case doubleArrayEntryType:
		return DoubleArray
	case stringArrayEntryType:
		return StringArray
	}

	return EntryType(-1)
}

func ntFromEntryType(t EntryType) ntEntryType {
	switch t {
	case Boolean:
		return booleanEntryType
	case Double:
		return doubleEntryType
	case RawData:
		return rawDataEntryType
	case String:
		return stringEntryType
	case BooleanArray:
		return booleanArrayEntryType
	case DoubleArray:
		return doubleArrayEntryType
	case StringArray:
		return stringArrayEntryType
	}

	return ntEntryType(-1)
}

// settingsValueToEntryValue and entryValueToSettingsValue bridge the closed
// settings.Value kinds onto the wire protocol's entry types. The wire
// format has no native integer type (NT3 predates it), so Int/IntArray
// settings travel as Double/DoubleArray; Range.Validate on the receiving
// Values.Set accepts either Kind via AsFloat, so this only costs an Int
// setting its exact Kind across a bus round-trip, never its value.
func settingsValueToEntryValue(v settings.Value) (EntryValue, error) {
	switch v.Kind {
	case settings.Bool:
		return EntryValue{EntryType: Boolean, Boolean: v.BoolV}, nil
	case settings.Int:
		return EntryValue{EntryType: Double, Double: float64(v.IntV)}, nil
	case settings.Float:
		return EntryValue{EntryType: Double, Double: v.FloatV}, nil
	case settings.String:
		return EntryValue{EntryType: String, String: v.StringV}, nil
	case settings.BoolArray:
		return EntryValue{EntryType: BooleanArray, BooleanArray: v.BoolArrayV}, nil
	case settings.IntArray:
		arr := make([]float64, len(v.IntArrayV))
		for i, x := range v.IntArrayV {
			arr[i] = float64(x)
		}
		return EntryValue{EntryType: DoubleArray, DoubleArray: arr}, nil
	case settings.FloatArray:
		return EntryValue{EntryType: DoubleArray, DoubleArray: v.FloatArrayV}, nil
	case settings.StringArray:
		return EntryValue{EntryType: StringArray, StringArray: v.StringArrayV}, nil
	}
	return EntryValue{}, fmt.Errorf("unsupported settings kind %s for telemetry bus", v.Kind)
}

func entryValueToSettingsValue(ev EntryValue) (settings.Value, error) {
	switch ev.EntryType {
	case Boolean:
		return settings.BoolValue(ev.Boolean), nil
	case Double:
		return settings.FloatValue(ev.Double), nil
	case String:
		return settings.StringValue(ev.String), nil
	case BooleanArray:
		return settings.BoolArrayValue(ev.BooleanArray), nil
	case DoubleArray:
		return settings.FloatArrayValue(ev.DoubleArray), nil
	case StringArray:
		return settings.StringArrayValue(ev.StringArray), nil
	case RawData:
		return settings.Value{}, fmt.Errorf("raw data entries have no settings.Value representation")
	}
	return settings.Value{}, fmt.Errorf("unknown entry type %d", ev.EntryType)
}

func writeClientHello(w io.Writer, protocolRevision uint16, identity string) error {
	if _, err := (&ntMessageType{Type: clientHelloMessageType}).Encode(w); err != nil {
		return fmt.Errorf("couldn't encode client hello message type: %w", err)
	}

	hello := clientHello{ClientProtocolRevision: protocolRevision, Identity: identity}
	if _, err := hello.Encode(w); err != nil {
		return fmt.Errorf("couldn't encode client hello message: %w", err)
	}

	return nil
}

func readServerHello(rd io.Reader) (bool, string, error) {
	var messageType ntMessageType
	if _, err := messageType.Decode(rd); err != nil {
		return false, "", fmt.Errorf("couldn't decode message type: %w", err)
	}

	if messageType.Type != serverHelloMessageType {
		return false, "", fmt.Errorf("server responded with incorrect message type %x instead of %x", messageType.Type, serverHelloMessageType)
	}

	var serverHello ntServerHello
	if _, err := serverHello.Decode(rd); err != nil {
		return false, "", fmt.Errorf("couldn't decode server hello: %w", err)
	}

	return serverHello.Flags.ClientSeen, serverHello.ServerIdentity, nil
}

func writeEntryAssignment(w io.Writer, entry Entry) error {
	if _, err := (&ntMessageType{Type: entryAssignmentMessageType}).Encode(w); err != nil {
		return fmt.Errorf("couldn't encode entry assignment message type: %w", err)
	}

	assignment := assignmentFromEntry(int(createID), entry)

	if _, err := assignment.Encode(w); err != nil {
		return fmt.Errorf("couldn't encode entry assignment: %w", err)
	}

	return nil
}
