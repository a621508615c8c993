package mock

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const basePath = "/dummy-connector"

// Magic card numbers that steer the sandbox outcome.
const (
	DeclineCard = "4000000000000002"
	ThreeDSCard = "4000003800000446"
)

type sandboxPayment struct {
	PaymentResponse
	capture  bool
	refunded decimal.Decimal
}

// Sandbox is an in-memory stand-in for the dummy connector's HTTP API.
type Sandbox struct {
	mu       sync.Mutex
	payments map[string]*sandboxPayment
	refunds  map[string]RefundResponse
	logger   *logrus.Logger
}

func NewSandbox(logger *logrus.Logger) *Sandbox {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sandbox{
		payments: make(map[string]*sandboxPayment),
		refunds:  make(map[string]RefundResponse),
		logger:   logger,
	}
}

// Register mounts the sandbox routes on r under /dummy-connector.
func (s *Sandbox) Register(r gin.IRouter) {
	g := r.Group(basePath, s.requireAuth)
	g.POST("/payment", s.createPayment)
	g.GET("/payment/:id", s.getPayment)
	g.POST("/payment/:id/complete", s.completePayment)
	g.POST("/payment/:id/capture", s.capturePayment)
	g.POST("/payment/:id/void", s.voidPayment)
	g.POST("/payment/:id/refund", s.refundPayment)
	g.GET("/refunds/:id", s.getRefund)
	r.GET(basePath+"/authenticate/:id", s.authenticationPage)
}

// Handler returns a standalone engine serving only the sandbox.
func (s *Sandbox) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func (s *Sandbox) requireAuth(c *gin.Context) {
	if !strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") || len(c.GetHeader("Authorization")) == len("Bearer ") {
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing api key")
		return
	}
	c.Next()
}

func (s *Sandbox) createPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, err := decimal.NewFromString(req.Amount); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_amount", "amount must be a decimal string")
		return
	}
	if req.PaymentMethodData.Card == nil && req.PaymentMethodData.Wallet == nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "payment_method_data is required")
		return
	}

	p := &sandboxPayment{
		PaymentResponse: PaymentResponse{
			ID:        "dummy_pay_" + uuid.NewString(),
			Amount:    req.Amount,
			Currency:  req.Currency,
			Reference: req.Reference,
		},
		capture:  req.Capture,
		refunded: decimal.Zero,
	}

	if card := req.PaymentMethodData.Card; card != nil {
		switch card.Number {
		case DeclineCard:
			s.logger.WithField("reference", req.Reference).Info("Sandbox declined card payment")
			c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: ErrorBody{
				Code: "card_declined", Message: "Your card was declined.", Reason: "generic_decline",
			}})
			return
		case ThreeDSCard:
			p.Status = PaymentPendingAuthentication
			p.NextAction = &NextAction{RedirectToURL: requestOrigin(c) + basePath + "/authenticate/" + p.ID}
		}
	}
	if p.Status == "" {
		s.settle(p)
	}

	s.mu.Lock()
	s.payments[p.ID] = p
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"payment_id": p.ID, "status": p.Status}).Debug("Sandbox payment created")
	c.JSON(http.StatusOK, p.PaymentResponse)
}

// settle moves a payment past authentication, honoring its capture flag.
func (s *Sandbox) settle(p *sandboxPayment) {
	p.NextAction = nil
	if p.capture {
		p.Status = PaymentSucceeded
		p.AmountCaptured = p.Amount
		return
	}
	p.Status = PaymentAuthorized
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// withPayment runs fn with the payment locked, or writes 404.
func (s *Sandbox) withPayment(c *gin.Context, fn func(p *sandboxPayment)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[c.Param("id")]
	if !ok {
		abortWithError(c, http.StatusNotFound, "payment_not_found", "no such payment")
		return
	}
	fn(p)
}

func (s *Sandbox) getPayment(c *gin.Context) {
	s.withPayment(c, func(p *sandboxPayment) {
		c.JSON(http.StatusOK, p.PaymentResponse)
	})
}

func (s *Sandbox) completePayment(c *gin.Context) {
	s.withPayment(c, func(p *sandboxPayment) {
		if p.Status != PaymentPendingAuthentication {
			abortWithError(c, http.StatusBadRequest, "invalid_state", "payment is not awaiting authentication")
			return
		}
		s.settle(p)
		c.JSON(http.StatusOK, p.PaymentResponse)
	})
}

func (s *Sandbox) capturePayment(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_amount", "amount must be a decimal string")
		return
	}
	s.withPayment(c, func(p *sandboxPayment) {
		if p.Status != PaymentAuthorized {
			abortWithError(c, http.StatusBadRequest, "invalid_state", "payment is not authorized")
			return
		}
		if amount.GreaterThan(decimal.RequireFromString(p.Amount)) || !amount.IsPositive() {
			abortWithError(c, http.StatusBadRequest, "invalid_amount", "capture amount exceeds authorized amount")
			return
		}
		p.Status = PaymentSucceeded
		p.AmountCaptured = amount.String()
		c.JSON(http.StatusOK, p.PaymentResponse)
	})
}

func (s *Sandbox) voidPayment(c *gin.Context) {
	s.withPayment(c, func(p *sandboxPayment) {
		if p.Status != PaymentAuthorized && p.Status != PaymentPendingAuthentication {
			abortWithError(c, http.StatusBadRequest, "invalid_state", "payment cannot be voided")
			return
		}
		p.Status = PaymentVoided
		p.NextAction = nil
		c.JSON(http.StatusOK, p.PaymentResponse)
	})
}

func (s *Sandbox) refundPayment(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		abortWithError(c, http.StatusBadRequest, "invalid_amount", "amount must be a positive decimal string")
		return
	}
	s.withPayment(c, func(p *sandboxPayment) {
		if p.Status != PaymentSucceeded {
			abortWithError(c, http.StatusBadRequest, "invalid_state", "only captured payments can be refunded")
			return
		}
		captured := decimal.RequireFromString(p.AmountCaptured)
		if p.refunded.Add(amount).GreaterThan(captured) {
			abortWithError(c, http.StatusBadRequest, "refund_exceeds_amount", "refund exceeds captured amount")
			return
		}
		p.refunded = p.refunded.Add(amount)
		refund := RefundResponse{
			ID:        "dummy_ref_" + uuid.NewString(),
			PaymentID: p.ID,
			Status:    RefundSucceeded,
			Amount:    amount.String(),
			Currency:  p.Currency,
		}
		s.refunds[refund.ID] = refund
		c.JSON(http.StatusOK, refund)
	})
}

func (s *Sandbox) getRefund(c *gin.Context) {
	s.mu.Lock()
	refund, ok := s.refunds[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		abortWithError(c, http.StatusNotFound, "refund_not_found", "no such refund")
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (s *Sandbox) authenticationPage(c *gin.Context) {
	c.String(http.StatusOK, "dummy connector authentication for %s", c.Param("id"))
}
