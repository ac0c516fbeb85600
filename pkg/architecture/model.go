package architecture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/aretw0/interop/internal/logging"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/aretw0/interop/pkg/wrapper"
)

// Endpoint is a deployed interface wrapper as the model sees it.
type Endpoint interface {
	URL() string
	Reply(correlationID string, msg domain.Message) error
	Release(ctx context.Context) error
}

// Deployer turns an interface declaration into a live Endpoint.
type Deployer func(ctx context.Context, c domain.Component, iface domain.Interface, sink ports.EventSink, opts ...wrapper.Option) (Endpoint, error)

// DeployWrapper is the default Deployer, backed by package wrapper.
func DeployWrapper(ctx context.Context, c domain.Component, iface domain.Interface, sink ports.EventSink, opts ...wrapper.Option) (Endpoint, error) {
	h, err := wrapper.Deploy(ctx, c, iface, sink, opts...)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Model is a built architecture: the validated components and one deployed
// wrapper per interface.
type Model struct {
	logger     *slog.Logger
	deploy     Deployer
	wrapOpts   []wrapper.Option
	client     *http.Client
	sink       ports.EventSink
	components []domain.Component
	byID       map[string]domain.Component

	// endpoints is written only during Build.
	endpoints  map[string]Endpoint
	interfaces map[string]domain.Interface
	order      []string

	ctx    context.Context
	cancel context.CancelFunc

	// closed is set by Cleanup; emits are only added while it is false.
	mu     sync.Mutex
	closed bool
	emits  sync.WaitGroup
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithWrapperOptions passes options to every wrapper deployment.
func WithWrapperOptions(opts ...wrapper.Option) Option {
	return func(m *Model) {
		m.wrapOpts = append(m.wrapOpts, opts...)
	}
}

// WithDeployer replaces the wrapper deployer.
func WithDeployer(d Deployer) Option {
	return func(m *Model) {
		if d != nil {
			m.deploy = d
		}
	}
}

// WithHTTPClient sets the client used to send emitted requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Model) {
		if c != nil {
			m.client = c
		}
	}
}

// Build validates components and deploys a wrapper for each of their
// interfaces, reporting to sink.
//
// Validation covers the whole architecture before the first deployment, so a
// structural error never leaves anything deployed. If a deployment fails, the
// wrappers deployed so far are released and the failure is returned as an
// *domain.InvalidArchitectureError.
func Build(ctx context.Context, components []domain.Component, sink ports.EventSink, opts ...Option) (*Model, error) {
	if err := Validate(components); err != nil {
		return nil, err
	}

	m := &Model{
		logger:     logging.NewNop(),
		deploy:     DeployWrapper,
		client:     http.DefaultClient,
		sink:       sink,
		byID:       make(map[string]domain.Component, len(components)),
		endpoints:  make(map[string]Endpoint),
		interfaces: make(map[string]domain.Interface),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wrapOpts = append([]wrapper.Option{wrapper.WithLogger(m.logger)}, m.wrapOpts...)

	for _, c := range components {
		c = c.Clone()
		for i := range c.Interfaces {
			c.Interfaces[i].ComponentID = c.ID
			if c.Interfaces[i].Mode == "" {
				c.Interfaces[i].Mode = domain.ModeIntercept
			}
		}
		m.components = append(m.components, c)
		m.byID[c.ID] = c
	}

	for _, c := range m.components {
		for _, iface := range c.Interfaces {
			ep, err := m.deploy(ctx, c, iface, sink, m.wrapOpts...)
			if err != nil {
				m.logger.Error("Wrapper deployment failed, rolling back", "component", c.ID, "interface", iface.ID, "error", err)
				m.releaseAll(context.WithoutCancel(ctx))
				return nil, &domain.InvalidArchitectureError{
					ComponentID: c.ID,
					Field:       "interfaces",
					Reason:      fmt.Sprintf("interface %q could not be deployed", iface.ID),
					Err:         err,
				}
			}
			m.endpoints[iface.ID] = ep
			m.interfaces[iface.ID] = iface
			m.order = append(m.order, iface.ID)
			m.logger.Info("Interface deployed", "component", c.ID, "interface", iface.ID, "mode", iface.Mode, "url", ep.URL())
		}
	}

	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return m, nil
}

// Components returns the components keyed by id. The map is a copy.
func (m *Model) Components() map[string]domain.Component {
	out := make(map[string]domain.Component, len(m.byID))
	for id, c := range m.byID {
		out[id] = c.Clone()
	}
	return out
}

// Component looks a component up by id.
func (m *Model) Component(id string) (domain.Component, bool) {
	c, ok := m.byID[id]
	if !ok {
		return domain.Component{}, false
	}
	return c.Clone(), true
}

// Interface looks an interface up by id.
func (m *Model) Interface(id string) (domain.Interface, bool) {
	iface, ok := m.interfaces[id]
	return iface, ok
}

// Endpoint returns the deployed endpoint of an interface.
func (m *Model) Endpoint(id string) (Endpoint, bool) {
	ep, ok := m.endpoints[id]
	return ep, ok
}

// URLs returns the wrapper URL of every interface, keyed by interface id.
func (m *Model) URLs() map[string]string {
	out := make(map[string]string, len(m.endpoints))
	for id, ep := range m.endpoints {
		out[id] = ep.URL()
	}
	return out
}

// InterfaceIDs returns the deployed interface ids in declaration order.
func (m *Model) InterfaceIDs() []string {
	return append([]string(nil), m.order...)
}

// Cleanup releases every wrapper, best effort. Individual failures are
// logged and never stop the remaining releases; they are returned joined for
// reporting only.
func (m *Model) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.emits.Wait()
	return m.releaseAll(ctx)
}

func (m *Model) releaseAll(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	ids := make([]string, 0, len(m.endpoints))
	for id := range m.endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ep := m.endpoints[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ep.Release(ctx); err != nil {
				m.logger.Error("Failed to release wrapper", "interface", id, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
