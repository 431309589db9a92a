package httpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
)

// Client talks to a running `cardlink serve` instance. It implements
// TerminalService so CLI commands work the same in-process or remote.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *logging.Logger
}

// NewClient creates a client for the server at baseURL. timeout bounds every
// request and must exceed the server's transaction timeout for /transactions.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewDefaultLogger("http-client")
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

type statusResponse struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Busy      bool   `json:"busy"`
}

type errorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason"`
	ResultCode      int    `json:"resultCode"`
	ErrorCode       int    `json:"errorCode"`
	ResponseMessage string `json:"responseMessage"`
}

func (c *Client) Connect(ctx context.Context) error {
	return c.call(ctx, fiber.MethodPost, "/connect", nil, nil)
}

func (c *Client) Disconnect() (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.call(context.Background(), fiber.MethodPost, "/disconnect", nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) State() domain.ConnectionState {
	st, err := c.status()
	if err != nil {
		c.logger.Warn("Status request failed: %v", err)
		return domain.StateUnbound
	}
	switch st.State {
	case domain.StateBound.String():
		return domain.StateBound
	case domain.StateBinding.String():
		return domain.StateBinding
	default:
		return domain.StateUnbound
	}
}

func (c *Client) IsConnected() bool {
	st, err := c.status()
	return err == nil && st.Connected
}

func (c *Client) Busy() bool {
	st, err := c.status()
	return err == nil && st.Busy
}

// Submit stops waiting when ctx is done. The server keeps the transaction
// running; only this caller gives up on the answer.
func (c *Client) Submit(ctx context.Context, req domain.TransactionRequest) (domain.Success, error) {
	var out domain.Success
	if err := c.call(ctx, fiber.MethodPost, "/transactions", req, &out); err != nil {
		return domain.Success{}, err
	}
	return out, nil
}

func (c *Client) DeviceInfo(ctx context.Context) (domain.DeviceInfo, error) {
	var out domain.DeviceInfo
	if err := c.call(ctx, fiber.MethodGet, "/device", nil, &out); err != nil {
		return domain.DeviceInfo{}, err
	}
	return out, nil
}

func (c *Client) status() (statusResponse, error) {
	var st statusResponse
	err := c.call(context.Background(), fiber.MethodGet, "/status", nil, &st)
	return st, err
}

type reply struct {
	code int
	raw  []byte
	errs []error
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return abandoned(method, path, err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Internal("failed to encode request", err)
		}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if timeout := c.timeoutFor(ctx); timeout > 0 {
		agent.Timeout(timeout)
	}
	if payload != nil {
		agent.ContentType(fiber.MIMEApplicationJSON)
		agent.Body(payload)
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return errors.Internal("failed to build request", err)
	}

	// Bytes releases the agent once the exchange is over
	done := make(chan reply, 1)
	go func() {
		code, raw, errs := agent.Bytes()
		done <- reply{code: code, raw: raw, errs: errs}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return abandoned(method, path, ctx.Err())
	case r = <-done:
	}

	if len(r.errs) > 0 {
		return errors.Connection(fmt.Sprintf("cardlink server at %s unreachable", c.baseURL), r.errs[0])
	}
	if r.code >= fiber.StatusBadRequest {
		return decodeError(r.code, r.raw)
	}
	if out != nil {
		if err := json.Unmarshal(r.raw, out); err != nil {
			return errors.Internal("malformed server response", err)
		}
	}
	return nil
}

// timeoutFor is the client timeout, shortened to ctx's deadline when that comes first
func (c *Client) timeoutFor(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	return timeout
}

func abandoned(method, path string, cause error) error {
	return errors.Wrap(cause, errors.ErrorTypeTimeout, fmt.Sprintf("%s %s abandoned by caller", method, path))
}

// decodeError rebuilds the typed error the server reported
func decodeError(code int, raw []byte) error {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return errors.Internal(fmt.Sprintf("server returned %d: %s", code, strings.TrimSpace(string(raw))), nil)
	}

	message := strings.TrimPrefix(body.Message, body.Error+": ")
	te := errors.New(errors.ErrorType(body.Error), message).WithContext("httpStatus", code)
	switch body.Outcome {
	case domain.OutcomeCancelled.String():
		te.WithOutcome(domain.Cancelled{Reason: body.Reason})
	case domain.OutcomeFailed.String():
		te.WithOutcome(domain.Failed{
			ResultCode:      body.ResultCode,
			ErrorCode:       body.ErrorCode,
			ResponseMessage: body.ResponseMessage,
		})
	}
	return te
}
