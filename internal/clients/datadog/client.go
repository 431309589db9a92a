package datadog

import (
	"context"
	"net/http"
	"time"

	datadogapi "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"cardlink/internal/config"
	"cardlink/internal/logging"
)

type DatadogClient struct {
	config    config.DatadogConfig
	apiClient *datadogapi.APIClient
	logsAPI   *datadogV2.LogsApi
	authCtx   context.Context
	logger    *logging.Logger
}

func NewDatadogClient(cfg config.DatadogConfig, logger *logging.Logger) *DatadogClient {
	if logger == nil {
		logger = logging.NewDefaultLogger("datadog")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	apiCfg := datadogapi.NewConfiguration()
	apiCfg.HTTPClient = httpClient
	apiCfg.Servers = datadogapi.ServerConfigurations{{URL: cfg.BaseURL}}
	apiCfg.OperationServers = map[string]datadogapi.ServerConfigurations{
		"LogsApi.SubmitLog": {{URL: cfg.BaseURL}},
	}

	apiClient := datadogapi.NewAPIClient(apiCfg)

	authCtx := datadogapi.NewDefaultContext(context.Background())
	authCtx = context.WithValue(authCtx, datadogapi.ContextAPIKeys, map[string]datadogapi.APIKey{
		"apiKeyAuth": {Key: cfg.APIKey},
	})

	return &DatadogClient{
		config:    cfg,
		apiClient: apiClient,
		logsAPI:   datadogV2.NewLogsApi(apiClient),
		authCtx:   authCtx,
		logger:    logger,
	}
}

func (c *DatadogClient) SubmitLogs(body []datadogV2.HTTPLogItem, opts *datadogV2.SubmitLogOptionalParameters) (any, *http.Response, error) {
	var (
		resp     any
		httpResp *http.Response
		err      error
	)
	if opts != nil {
		resp, httpResp, err = c.logsAPI.SubmitLog(c.authCtx, body, *opts)
	} else {
		resp, httpResp, err = c.logsAPI.SubmitLog(c.authCtx, body)
	}
	if httpResp != nil && httpResp.Body != nil {
		defer func() { _ = httpResp.Body.Close() }()
	}
	return resp, httpResp, err
}
