// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file adapts the OpenVPN 3 Linux D-Bus services to the
// Service/Session interfaces. All translation of the service's error
// conventions lives here and nowhere else.
package vpn

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// OpenVPN 3 Linux D-Bus service names and object paths.
const (
	configService    = "net.openvpn.v3.configuration"
	configObjectPath = "/net/openvpn/v3/configuration"
	configInterface  = "net.openvpn.v3.configuration"

	sessionService    = "net.openvpn.v3.sessions"
	sessionObjectPath = "/net/openvpn/v3/sessions"
	sessionInterface  = "net.openvpn.v3.sessions"
)

// credentialsMissingSuffix is the session manager's convention for
// signaling that Ready() needs credentials first: there is no
// structured error code, only this message suffix.
const credentialsMissingSuffix = "Missing user credentials"

// DBusService talks to the OpenVPN 3 configuration and session
// managers over the system bus.
type DBusService struct {
	conn *dbus.Conn
}

// NewDBusService connects to the system bus.
func NewDBusService() (*DBusService, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, common.WrapError(err, "failed to connect to system bus")
	}
	return &DBusService{conn: conn}, nil
}

// Close releases the bus connection.
func (s *DBusService) Close() error {
	return s.conn.Close()
}

// LookupConfig finds an imported configuration by profile name.
func (s *DBusService) LookupConfig(name string) (ConfigRef, bool, error) {
	obj := s.conn.Object(configService, configObjectPath)

	var paths []dbus.ObjectPath
	err := obj.Call(configInterface+".LookupConfigName", 0, name).Store(&paths)
	if err != nil {
		return nil, false, common.WrapError(err, "config lookup failed")
	}
	if len(paths) == 0 {
		return nil, false, nil
	}
	common.LogDebug("Configuration D-Bus path: %s", paths[0])
	return dbusConfig{path: paths[0]}, true, nil
}

// ImportConfig imports a configuration profile. The import is neither
// single-use nor persistent; the configuration manager owns its
// lifetime from here on.
func (s *DBusService) ImportConfig(name, body string) (ConfigRef, error) {
	obj := s.conn.Object(configService, configObjectPath)

	var path dbus.ObjectPath
	err := obj.Call(configInterface+".Import", 0, name, body, false, false).Store(&path)
	if err != nil {
		return nil, common.WrapError(err, "config import failed")
	}
	common.LogDebug("Imported configuration %s at %s", name, path)
	return dbusConfig{path: path}, nil
}

// LookupSession finds an existing session by profile name.
func (s *DBusService) LookupSession(name string) (Session, bool, error) {
	obj := s.conn.Object(sessionService, sessionObjectPath)

	var paths []dbus.ObjectPath
	err := obj.Call(sessionInterface+".LookupConfigName", 0, name).Store(&paths)
	if err != nil {
		return nil, false, common.WrapError(err, "session lookup failed")
	}
	if len(paths) == 0 {
		return nil, false, nil
	}
	common.LogDebug("Session D-Bus path: %s", paths[0])
	return &dbusSession{conn: s.conn, path: paths[0]}, true, nil
}

// NewSession starts a new tunnel for an imported configuration.
func (s *DBusService) NewSession(cfg ConfigRef) (Session, error) {
	obj := s.conn.Object(sessionService, sessionObjectPath)

	var path dbus.ObjectPath
	err := obj.Call(sessionInterface+".NewTunnel", 0, dbus.ObjectPath(cfg.Path())).Store(&path)
	if err != nil {
		return nil, common.WrapError(err, "new tunnel failed")
	}
	common.LogDebug("Session D-Bus path: %s", path)
	return &dbusSession{conn: s.conn, path: path}, nil
}

type dbusConfig struct {
	path dbus.ObjectPath
}

func (c dbusConfig) Path() string { return string(c.path) }

type dbusSession struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

func (s *dbusSession) Path() string { return string(s.path) }

func (s *dbusSession) object() dbus.BusObject {
	return s.conn.Object(sessionService, s.path)
}

// GetStatus reads the session's status property. While the backend
// process is still starting the property read fails at the D-Bus
// level; that failure is surfaced as common.ErrBackendNotReady so the
// poller retries it.
func (s *dbusSession) GetStatus() (Status, error) {
	variant, err := s.object().GetProperty(sessionInterface + ".status")
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", common.ErrBackendNotReady, err)
	}

	fields, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return Status{}, fmt.Errorf("unexpected status payload %T", variant.Value())
	}

	var status Status
	if v, ok := fields["major"]; ok {
		if n, ok := v.Value().(uint32); ok {
			status.Major = StatusMajor(n)
		}
	}
	if v, ok := fields["minor"]; ok {
		if n, ok := v.Value().(uint32); ok {
			status.Minor = StatusMinor(n)
		}
	}
	if v, ok := fields["status_message"]; ok {
		if msg, ok := v.Value().(string); ok {
			status.Message = msg
		}
	}
	return status, nil
}

// Ready asks the backend whether the session can proceed. The session
// manager reports missing credentials by message suffix only; the
// translation to a structured error happens here.
func (s *dbusSession) Ready() error {
	return mapSessionError(s.object().Call(sessionInterface+".Ready", 0).Err)
}

func (s *dbusSession) Connect() error {
	return common.WrapError(s.object().Call(sessionInterface+".Connect", 0).Err, "connect failed")
}

func (s *dbusSession) Disconnect() error {
	return common.WrapError(s.object().Call(sessionInterface+".Disconnect", 0).Err, "disconnect failed")
}

// inputQueueType is one (type, group) pair from the user input queue.
type inputQueueType struct {
	Type  uint32
	Group uint32
}

// FetchInputSlots drains the session's user input queue metadata into
// slot handles, in the order the backend wants them filled.
func (s *dbusSession) FetchInputSlots() ([]InputSlot, error) {
	obj := s.object()

	var pairs []inputQueueType
	err := obj.Call(sessionInterface+".UserInputQueueGetTypeGroup", 0).Store(&pairs)
	if err != nil {
		return nil, common.WrapError(err, "input queue listing failed")
	}

	var slots []InputSlot
	for _, pair := range pairs {
		var ids []uint32
		err := obj.Call(sessionInterface+".UserInputQueueCheck", 0, pair.Type, pair.Group).Store(&ids)
		if err != nil {
			return nil, common.WrapError(err, "input queue check failed")
		}

		for _, id := range ids {
			var (
				qType, qGroup, qID uint32
				name, label        string
				mask               bool
			)
			err := obj.Call(sessionInterface+".UserInputQueueFetch", 0, pair.Type, pair.Group, id).
				Store(&qType, &qGroup, &qID, &name, &label, &mask)
			if err != nil {
				return nil, common.WrapError(err, "input queue fetch failed")
			}
			slots = append(slots, &dbusSlot{
				session: s,
				qType:   qType,
				group:   qGroup,
				id:      qID,
				role:    roleForVariable(name),
				label:   label,
			})
		}
	}
	return slots, nil
}

type dbusSlot struct {
	session *dbusSession
	qType   uint32
	group   uint32
	id      uint32
	role    SlotRole
	label   string
}

func (s *dbusSlot) Role() SlotRole { return s.role }
func (s *dbusSlot) Label() string  { return s.label }

func (s *dbusSlot) Provide(value string) error {
	call := s.session.object().Call(sessionInterface+".UserInputProvide", 0,
		s.qType, s.group, s.id, value)
	return common.WrapError(call.Err, "provide input failed")
}

// roleForVariable maps the backend's declared variable names onto slot
// roles. Unrecognized names stay RoleUnknown and are prompted by label.
func roleForVariable(name string) SlotRole {
	switch name {
	case "username":
		return RoleUsername
	case "password":
		return RolePassword
	case "static_challenge", "auth_pending":
		return RoleChallenge
	default:
		return RoleUnknown
	}
}

// mapSessionError translates Ready()'s message-suffix convention into
// common.ErrCredentialsMissing. Everything else passes through.
func mapSessionError(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasSuffix(strings.TrimSpace(err.Error()), credentialsMissingSuffix) {
		return fmt.Errorf("%w: %v", common.ErrCredentialsMissing, err)
	}
	return err
}
