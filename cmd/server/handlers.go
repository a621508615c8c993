package main

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/monitor"
	"github.com/yourorg/payment-router/internal/orchestrator"
	"github.com/yourorg/payment-router/internal/payments"
	"github.com/yourorg/payment-router/internal/reporting"
	"github.com/yourorg/payment-router/internal/storage"
)

const merchantHeader = "X-Merchant-Id"

type server struct {
	orc      *orchestrator.Orchestrator
	store    storage.Store
	reporter *reporting.RetrospectiveReporter
	contract *monitor.ContractMonitor
	logger   logrus.FieldLogger
}

type errorBody struct {
	Code    payments.ErrorCode `json:"code"`
	Message string             `json:"message"`
}

func renderError(c *gin.Context, err error) {
	apiErr := payments.ToAPIError(err)
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": errorBody{Code: apiErr.Code, Message: apiErr.Message}})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: payments.CodeInvalidDataFormat, Message: message}})
}

func (s *server) routes(serviceName string, sandbox *mock.Sandbox) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(serviceName), s.requestLogger)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", requireMerchant)
	api.POST("/payments", s.checkContract, s.createPayment)
	api.GET("/payments/:payment_id", s.retrievePayment)
	api.POST("/payments/:payment_id/:flow", s.paymentFlow)
	api.POST("/refunds", s.createRefund)
	api.GET("/refunds/:refund_id", s.retrieveRefund)
	api.GET("/reports/retrospective", s.retrospective)

	if sandbox != nil {
		sandbox.Register(r)
	}
	return r
}

func (s *server) requestLogger(c *gin.Context) {
	c.Next()
	s.logger.WithFields(logrus.Fields{
		"method":      c.Request.Method,
		"path":        c.FullPath(),
		"status":      c.Writer.Status(),
		"merchant_id": c.GetHeader(merchantHeader),
	}).Debug("Request handled")
}

func requireMerchant(c *gin.Context) {
	if c.GetHeader(merchantHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorBody{
			Code: payments.CodeMerchantAccountNotFound, Message: merchantHeader + " header is required",
		}})
		return
	}
	c.Next()
}

// checkContract validates the raw body and puts it back for binding.
func (s *server) checkContract(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}
	valid, violations, err := s.contract.Validate(body)
	if err != nil {
		badRequest(c, "request body is not valid JSON")
		return
	}
	if !valid {
		badRequest(c, monitor.FormatErrors(violations))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Next()
}

// runOperation executes op and renders the result through render.
func runOperation[R any, D any](c *gin.Context, s *server, op payments.Operation[R, D], req *R, render func(D) any) {
	res, err := orchestrator.Execute(c.Request.Context(), s.orc, op, c.GetHeader(merchantHeader), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, render(res.Data))
}

func paymentResponse(d *payments.PaymentData) any { return payments.NewPaymentsResponse(d) }

func refundResponse(d *payments.RefundData) any { return payments.NewRefundResponse(d) }

func (s *server) createPayment(c *gin.Context) {
	var req payments.PaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	runOperation(c, s, payments.PaymentCreate{}, &req, paymentResponse)
}

func (s *server) retrievePayment(c *gin.Context) {
	forceSync, _ := strconv.ParseBool(c.Query("force_sync"))
	req := payments.PaymentsRetrieveRequest{PaymentID: c.Param("payment_id"), ForceSync: forceSync}
	runOperation(c, s, payments.PaymentStatus{}, &req, paymentResponse)
}

type flowHandler func(s *server, c *gin.Context, paymentID string)

// flows maps the :flow path segment to the operation it runs.
var flows = map[string]flowHandler{
	"confirm": func(s *server, c *gin.Context, paymentID string) {
		var req payments.PaymentsRequest
		if !bindOptional(c, &req) {
			return
		}
		req.PaymentID = &paymentID
		runOperation(c, s, payments.PaymentConfirm{}, &req, paymentResponse)
	},
	"complete_authorize": func(s *server, c *gin.Context, paymentID string) {
		var req payments.PaymentsRequest
		if !bindOptional(c, &req) {
			return
		}
		req.PaymentID = &paymentID
		runOperation(c, s, payments.CompleteAuthorize{}, &req, paymentResponse)
	},
	"capture": func(s *server, c *gin.Context, paymentID string) {
		var req payments.PaymentsCaptureRequest
		if !bindOptional(c, &req) {
			return
		}
		req.PaymentID = paymentID
		runOperation(c, s, payments.PaymentCapture{}, &req, paymentResponse)
	},
	"cancel": func(s *server, c *gin.Context, paymentID string) {
		var req payments.PaymentsCancelRequest
		if !bindOptional(c, &req) {
			return
		}
		req.PaymentID = paymentID
		runOperation(c, s, payments.PaymentCancel{}, &req, paymentResponse)
	},
}

// bindOptional binds a JSON body when there is one.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func (s *server) paymentFlow(c *gin.Context) {
	handle, ok := flows[c.Param("flow")]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": errorBody{
			Code: payments.CodeNotSupported, Message: "unknown payment flow " + c.Param("flow"),
		}})
		return
	}
	handle(s, c, c.Param("payment_id"))
}

func (s *server) createRefund(c *gin.Context) {
	var req payments.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	runOperation(c, s, payments.RefundCreate{}, &req, refundResponse)
}

func (s *server) retrieveRefund(c *gin.Context) {
	forceSync, _ := strconv.ParseBool(c.Query("force_sync"))
	req := payments.RefundsRetrieveRequest{RefundID: c.Param("refund_id"), ForceSync: forceSync}
	runOperation(c, s, payments.RefundStatus{}, &req, refundResponse)
}

func (s *server) retrospective(c *gin.Context) {
	attempts, err := s.store.ListAttempts(c.Request.Context(), c.GetHeader(merchantHeader))
	if err != nil {
		renderError(c, err)
		return
	}
	report, err := s.reporter.GenerateRetrospective(attempts)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
