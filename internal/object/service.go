package object

import (
	"sync"

	"github.com/fbremote/fbremote/internal/wire"
)

// Service is one attached service-manager connection. It mirrors Attachment
// closely - the wire protocol reuses almost the same op set - but carries
// an SPB instead of a DPB and has no transaction/statement/blob children.
type Service struct {
	Handle int32
	Name   string
	SPB    wire.ParamBlock

	mu              sync.Mutex
	running         bool
	requestedLength int64
}

// spbTagLength is the service-parameter tag carrying a k/m/g-scaled size
// limit (e.g. a backup/restore length cap) among a service_start action's
// send items, parsed through bytesize.ParseScaledNumber rather than a bare
// decimal so a client can write "64k" the way fbsvcmgr itself accepts.
const spbTagLength byte = 17

// ServiceManager tracks every attached service connection.
type ServiceManager struct {
	registry *Registry[Service]
}

// NewServiceManager returns an empty manager.
func NewServiceManager() *ServiceManager {
	return &ServiceManager{registry: NewRegistry[Service]()}
}

// Attach registers a new service connection and returns its handle.
func (m *ServiceManager) Attach(name string, spb wire.ParamBlock) *Service {
	svc := &Service{Name: name, SPB: spb}
	svc.Handle = m.registry.Register(svc)
	return svc
}

// Lookup resolves a handle to its service, raising bad-svc on a miss.
func (m *ServiceManager) Lookup(handle int32) (*Service, error) {
	svc, ok := m.registry.Lookup(handle)
	if !ok {
		return nil, errBadSvc(handle)
	}
	return svc, nil
}

// Start marks the service as running an action (service_start). It does
// not check whether an earlier action is still running: a second Start is
// accepted and replaces the recorded length.
//
// sendItems is the action's parameter block; any isc_spb_*_length-style tag
// carrying a k/m/g-scaled size (backup/restore limits and the like) is
// pulled out via ScaledNumber and recorded so RequestedLength can report it
// back through service_info.
func (svc *Service) Start(sendItems []byte) error {
	spb := wire.ParseParamBlock(sendItems)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.running = true
	svc.requestedLength = spb.ScaledNumber(spbTagLength)
	return nil
}

// RequestedLength returns the scaled length limit parsed from the most
// recent Start call's send items, or 0 if none was present.
func (svc *Service) RequestedLength() int64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.requestedLength
}

// Finish marks the service idle again once its action's info has been
// fully queried.
func (svc *Service) Finish() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.running = false
}

// Running reports whether an action is still in progress.
func (svc *Service) Running() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.running
}

// Detach releases handle; idempotent like AttachmentManager.Detach.
func (m *ServiceManager) Detach(handle int32) error {
	m.registry.Release(handle)
	return nil
}
