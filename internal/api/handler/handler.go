package handler

import (
	"log/slog"

	"github.com/shreed27/AgentHub-sub004/internal/admission"
	"github.com/shreed27/AgentHub-sub004/internal/api/dto"
	"github.com/shreed27/AgentHub-sub004/internal/scheduler"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Admission *admission.Controller
	Scheduler *scheduler.Scheduler
	Pricing   *admission.Pricing
	Payment   dto.PaymentInfo
}

// GatewayHandler handles prompt submission and job lifecycle requests
type GatewayHandler struct {
	logger    *slog.Logger
	admission *admission.Controller
	scheduler *scheduler.Scheduler
	pricing   *admission.Pricing
	payment   dto.PaymentInfo
}

// NewGatewayHandler creates a new GatewayHandler instance
func NewGatewayHandler(deps *Dependencies) *GatewayHandler {
	return &GatewayHandler{
		logger:    deps.Logger,
		admission: deps.Admission,
		scheduler: deps.Scheduler,
		pricing:   deps.Pricing,
		payment:   deps.Payment,
	}
}
