package httpapi

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"cardlink/internal/config"
	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
)

// TerminalService is the session surface exposed over HTTP
type TerminalService interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	State() domain.ConnectionState
	Busy() bool
	Submit(ctx context.Context, req domain.TransactionRequest) (domain.Success, error)
	Disconnect() (string, error)
	DeviceInfo(ctx context.Context) (domain.DeviceInfo, error)
}

// Server exposes the terminal session to a hosting application over HTTP
type Server struct {
	app     *fiber.App
	svc     TerminalService
	catalog *config.TerminalCatalog
	logger  *logging.Logger
}

// NewServer builds the fiber app and registers the routes. catalog may be nil,
// in which case transaction types are not checked against it.
func NewServer(svc TerminalService, catalog *config.TerminalCatalog, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger("http")
	}

	app := fiber.New(fiber.Config{
		AppName:               "cardlink",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadTimeout:           10 * time.Second,
	})

	s := &Server{app: app, svc: svc, catalog: catalog, logger: logger}

	app.Get("/status", s.status)
	app.Post("/connect", s.connect)
	app.Post("/disconnect", s.disconnect)
	app.Post("/transactions", s.transaction)
	app.Get("/device", s.device)

	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP ingress listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"state":     s.svc.State().String(),
		"connected": s.svc.IsConnected(),
		"busy":      s.svc.Busy(),
	})
}

func (s *Server) connect(c *fiber.Ctx) error {
	if err := s.svc.Connect(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"connected": true, "state": s.svc.State().String()})
}

func (s *Server) disconnect(c *fiber.Ctx) error {
	msg, err := s.svc.Disconnect()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

func (s *Server) transaction(c *fiber.Ctx) error {
	var payload map[string]any
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return s.fail(c, errors.Validation(fmt.Sprintf("request body is not a JSON object: %v", err)))
	}

	req, err := domain.ParseTransactionRequest(payload)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.checkTransactionType(req.TransactionType); err != nil {
		return s.fail(c, err)
	}

	success, err := s.svc.Submit(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"outcome":         domain.OutcomeSuccess.String(),
		"responseCode":    success.ResponseCode,
		"responseMessage": success.ResponseMessage,
	})
}

func (s *Server) device(c *fiber.Ctx) error {
	info, err := s.svc.DeviceInfo(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(info)
}

func (s *Server) checkTransactionType(code int) error {
	if s.catalog == nil || code == 0 {
		return nil
	}
	if _, ok := s.catalog.TransactionTypeName(code); !ok {
		return errors.Validation(fmt.Sprintf("transaction type %d is not supported by the terminal", code))
	}
	return nil
}
