package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardlink/internal/clients/datadog"
	"cardlink/internal/clients/smartconnect"
	"cardlink/internal/config"
	"cardlink/internal/httpapi"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/service"
)

// remoteMargin is added to the transaction timeout when talking to a remote server
const remoteMargin = 30 * time.Second

// Container holds all application dependencies
type Container struct {
	cfg     *config.Config
	logger  *logging.Logger
	catalog *config.TerminalCatalog
	client  *smartconnect.Client
	session *service.Session
	shipper *datadog.Shipper
	mu      sync.RWMutex
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{}
}

// Initialize builds the terminal session and its collaborators from cfg
func (c *Container) Initialize(cfg *config.Config, logger *logging.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg == nil {
		return fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger("cardlink")
	}
	c.cfg = cfg
	c.logger = logger

	catalog, err := config.NewConfigLoader(logger.WithPrefix("config")).LoadTerminalCatalog()
	if err != nil {
		return fmt.Errorf("failed to load terminal catalog: %w", err)
	}
	c.catalog = catalog

	c.client = smartconnect.NewClient(smartconnect.Options{
		Network:     cfg.Terminal.Network,
		Address:     cfg.Terminal.Address,
		DialTimeout: cfg.Terminal.DialTimeout,
	}, logger.WithPrefix("smartconnect"))

	c.session = service.NewSession(c.client, service.Options{
		Component:          domain.Component(cfg.Terminal.Component),
		BindTimeout:        cfg.Terminal.BindTimeout,
		TransactionTimeout: cfg.Terminal.TransactionTimeout,
	}, logger.WithPrefix("session"))

	if cfg.Datadog.Enabled() {
		ddClient := datadog.NewDatadogClient(cfg.Datadog, logger.WithPrefix("datadog"))
		c.shipper = datadog.NewShipper(ddClient, datadog.ShipperConfig{
			Service:   cfg.Datadog.Service,
			Source:    cfg.Datadog.Source,
			Tags:      cfg.Datadog.Tags,
			Component: domain.Component(cfg.Terminal.Component),
		}, logger.WithPrefix("datadog"))
	}

	return nil
}

// Session returns the terminal session
func (c *Container) Session() *service.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// StartShipper attaches the Datadog shipper to the session, if one is configured
func (c *Container) StartShipper(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shipper == nil {
		return nil
	}
	if err := c.shipper.Start(ctx, c.session); err != nil {
		return err
	}
	c.logger.Info("Shipping terminal events to Datadog as service %q", c.cfg.Datadog.Service)
	return nil
}

// Close stops the shipper and releases the terminal binding
func (c *Container) Close() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shipper != nil {
		c.shipper.Stop()
	}
	if c.session != nil {
		c.session.Cleanup()
	}
}

// ClientSet contains all client dependencies for commands
type ClientSet struct {
	Session *service.Session
	Catalog *config.TerminalCatalog
	Config  *config.Config
	Logger  *logging.Logger

	container *Container
}

// GetClientSet returns all clients as a convenient struct
func (c *Container) GetClientSet() *ClientSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &ClientSet{
		Session:   c.session,
		Catalog:   c.catalog,
		Config:    c.cfg,
		Logger:    c.logger,
		container: c,
	}
}

// Terminal returns the in-process session, or a client for the cardlink
// server at serverURL when one is given
func (cs *ClientSet) Terminal(serverURL string) httpapi.TerminalService {
	if serverURL == "" {
		return cs.Session
	}

	var timeout time.Duration
	if cs.Config != nil && cs.Config.Terminal.TransactionTimeout > 0 {
		timeout = cs.Config.Terminal.TransactionTimeout + remoteMargin
	}
	return httpapi.NewClient(serverURL, timeout, cs.Logger.WithPrefix("http-client"))
}

// StartShipper forwards to the container
func (cs *ClientSet) StartShipper(ctx context.Context) error {
	return cs.container.StartShipper(ctx)
}

// Close forwards to the container
func (cs *ClientSet) Close() {
	cs.container.Close()
}
